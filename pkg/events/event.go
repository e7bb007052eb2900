package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type codes published on the bus.
const (
	TypeTurnCompleted       = "TURN_COMPLETED"
	TypeTurnFailed          = "TURN_FAILED"
	TypeConversationDeleted = "CONVERSATION_DELETED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g. "TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic implementation shared by all publishers.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewTurnCompleted marks a successfully committed turn. NewCitations is
// the count appended to the ledger this turn, not the ledger size.
func NewTurnCompleted(conversationId, messageId uuid.UUID, turnIndex, newCitations int) BaseEvent {
	return BaseEvent{
		Type: TypeTurnCompleted,
		Data: map[string]interface{}{
			"conversation_id": conversationId.String(),
			"message_id":      messageId.String(),
			"turn_index":      turnIndex,
			"new_citations":   newCitations,
		},
		OccurredAt: time.Now(),
	}
}

// NewTurnFailed marks a rolled-back turn.
func NewTurnFailed(conversationId uuid.UUID, turnIndex int, reason string) BaseEvent {
	return BaseEvent{
		Type: TypeTurnFailed,
		Data: map[string]interface{}{
			"conversation_id": conversationId.String(),
			"turn_index":      turnIndex,
			"reason":          reason,
		},
		OccurredAt: time.Now(),
	}
}

func NewConversationDeleted(conversationId, clientId uuid.UUID) BaseEvent {
	return BaseEvent{
		Type: TypeConversationDeleted,
		Data: map[string]interface{}{
			"conversation_id": conversationId.String(),
			"client_id":       clientId.String(),
		},
		OccurredAt: time.Now(),
	}
}
