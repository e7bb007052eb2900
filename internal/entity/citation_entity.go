package entity

import (
	"time"

	"github.com/google/uuid"
)

// Citation is one ledger entry: a conversation-scoped, stably-identified
// reference to a source document. Immutable once created. Position is the
// insertion order across all turns (first appearance wins); the display
// number is derived from position at render time and never stored.
type Citation struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	SourceId       string
	Title          string
	Journal        string
	FirstCitedTurn int
	Position       int
	CreatedAt      time.Time
}
