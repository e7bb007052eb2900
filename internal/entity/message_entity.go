package entity

import (
	"time"

	"github.com/google/uuid"
)

// Message is the rendered form shown to clients: citation markers have
// been rewritten to display numbers.
type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           string
	Content        string
	TurnIndex      int
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}

// MessageRaw keeps the generator's original text with stable-identifier
// citation markers intact. Rewriting is always driven off this form, which
// is what makes renumbering idempotent.
type MessageRaw struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           string
	Content        string
	TurnIndex      int
	CreatedAt      time.Time
}
