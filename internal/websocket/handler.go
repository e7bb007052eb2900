package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs handles websocket requests from the peer. The optional initial
// conversation id seeds the socket's live pointer so a page reload starts
// receiving its conversation without an explicit switch frame.
func ServeWs(hub *Hub, c *websocket.Conn, clientID uuid.UUID, initialConversation uuid.UUID) {
	client := &Client{Hub: hub, Conn: c, ClientID: clientID, Send: make(chan []byte, 256)}
	if initialConversation != uuid.Nil {
		client.SetActiveConversation(initialConversation)
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // runs in the handler goroutine
}
