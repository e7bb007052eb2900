package store

import "time"

// SnapshotMessage is a rendered message inside a conversation snapshot.
type SnapshotMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	TurnIndex int       `json:"turn_index"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotCitation is a rendered ledger entry. DisplayNumber is derived
// from ledger position at render time and never treated as identity.
type SnapshotCitation struct {
	SourceID       string `json:"source_id"`
	Title          string `json:"title"`
	Journal        string `json:"journal"`
	DisplayNumber  int    `json:"display_number"`
	FirstCitedTurn int    `json:"first_cited_turn"`
}

// Snapshot is the last-known-good view of a conversation, kept for instant
// redisplay when the client revisits it. Writes are whole-entry
// replacements keyed by conversation id.
type Snapshot struct {
	ConversationID string             `json:"conversation_id"`
	Messages       []SnapshotMessage  `json:"messages"`
	Citations      []SnapshotCitation `json:"citations"`
	LastUpdated    time.Time          `json:"last_updated"`
}
