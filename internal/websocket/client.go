package websocket

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"paperchat-be/internal/dto"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	// ClientID owns every conversation this socket may view.
	ClientID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	// active holds the conversation this socket is currently viewing.
	// Written by readPump on switch frames, read by the hub at delivery
	// time.
	active atomic.Value // uuid.UUID
}

// ActiveConversation returns the conversation the socket is viewing,
// uuid.Nil when none.
func (c *Client) ActiveConversation() uuid.UUID {
	if v := c.active.Load(); v != nil {
		return v.(uuid.UUID)
	}
	return uuid.Nil
}

// SetActiveConversation moves the live pointer. Fragments of other
// conversations stop reaching this socket from the next delivery on.
func (c *Client) SetActiveConversation(id uuid.UUID) {
	c.active.Store(id)
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error for client %s: %v", c.ClientID, err)
			}
			break
		}

		var msg dto.SwitchConversationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Action == "switch" {
			c.SetActiveConversation(msg.ConversationId)
			c.Hub.logger.Debug("Client", "switched conversation", map[string]interface{}{
				"client_id":       c.ClientID,
				"conversation_id": msg.ConversationId,
			})
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued frames into the same websocket message.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
