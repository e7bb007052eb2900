package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"paperchat-be/internal/dto"
	"paperchat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub routes turn frames to sockets. Delivery is gated at send time on
// each socket's live active-conversation pointer, so a client that
// switched away mid-stream stops receiving fragments for the old
// conversation even though the turn keeps running.
type Hub struct {
	// ClientID -> open sockets (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fanout
	rdb *redis.Client

	// instanceID lets the subscriber drop its own fanout echoes
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ClientID] = append(h.clients[client.ClientID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.ClientID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.ClientID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.ClientID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.ClientID]) == 0 {
					delete(h.clients, client.ClientID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"client_id": client.ClientID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Deliver pushes one turn frame toward the owning client's sockets. Each
// socket's active-conversation pointer is read at delivery time; sockets
// viewing another conversation are skipped.
func (h *Hub) Deliver(clientID uuid.UUID, frame *dto.StreamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Hub", "frame marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliverLocal(clientID, frame.ConversationId, data)

	if h.rdb != nil {
		payload := map[string]interface{}{
			"origin":           h.instanceID,
			"target_client_id": clientID.String(),
			"conversation_id":  frame.ConversationId.String(),
			"message":          json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), "cluster_events", jsonPayload)
	}
}

func (h *Hub) deliverLocal(clientID, conversationID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients, found := h.clients[clientID]
	// copy to release the lock before channel sends
	targets := make([]*Client, len(clients))
	copy(targets, clients)
	h.mu.RUnlock()

	if !found {
		return
	}

	for _, client := range targets {
		if client.ActiveConversation() != conversationID {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping socket", map[string]interface{}{"client_id": clientID})
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to one shared channel and filters on its
	// local clients; the per-socket pointer check still applies.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			Origin         string          `json:"origin"`
			TargetClientID string          `json:"target_client_id"`
			ConversationID string          `json:"conversation_id"`
			Message        json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		if payload.Origin == h.instanceID {
			continue // already delivered locally
		}

		cid, err := uuid.Parse(payload.TargetClientID)
		if err != nil {
			continue
		}
		convID, err := uuid.Parse(payload.ConversationID)
		if err != nil {
			continue
		}

		h.deliverLocal(cid, convID, payload.Message)
	}
}
