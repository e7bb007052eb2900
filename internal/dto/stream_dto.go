package dto

import "github.com/google/uuid"

// Stream frame types delivered over the websocket during a turn.
const (
	StreamFrameToken    = "token"
	StreamFrameComplete = "complete"
	StreamFrameError    = "error"
	StreamFrameState    = "state"
	StreamFrameDeleted  = "deleted"
)

// StreamFrame is one websocket message of an in-flight turn. Exactly one
// complete or error frame terminates the turn.
type StreamFrame struct {
	Type           string    `json:"type"`
	ConversationId uuid.UUID `json:"conversation_id"`

	// token frames
	Content string `json:"content,omitempty"`

	// state frames
	State string `json:"state,omitempty"`

	// complete frames carry the final rendered turn
	Result *TurnResultResponse `json:"result,omitempty"`

	// error frames
	Error string `json:"error,omitempty"`
}

// SwitchConversationMessage is the client -> server frame that moves the
// socket's live pointer to another conversation.
type SwitchConversationMessage struct {
	Action         string    `json:"action"` // "switch"
	ConversationId uuid.UUID `json:"conversation_id"`
}
