package store

import "time"

// Candidate is a passage scored for relevance within one retrieval pass.
type Candidate struct {
	PassageID  string  `json:"passage_id"`
	DocumentID string  `json:"document_id"`
	SourceID   string  `json:"source_id"` // stable external document id (e.g. DOI)
	Title      string  `json:"title"`
	Journal    string  `json:"journal"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`

	// RerankScore is set only when the reranker succeeded for this turn.
	RerankScore    *float64 `json:"rerank_score,omitempty"`
	CarriedForward bool     `json:"carried_forward"`
}

// Session is the ephemeral per-conversation turn state tracked in memory.
// It is never persisted; a restart resets every conversation to idle.
type Session struct {
	ConversationID string `json:"conversation_id"`
	ClientID       string `json:"client_id"`
	State          string `json:"state"`

	// PendingUserMessageID is the optimistically appended user message,
	// kept so a failed turn can be rolled back.
	PendingUserMessageID string `json:"pending_user_message_id"`

	LastQuery string    `json:"last_query"`
	StartedAt time.Time `json:"started_at"`
}

// Conversation session states. A new send is rejected while the state is
// one of the busy states (loading, streaming, updating-citations).
const (
	StateIdle              = "IDLE"
	StateLoading           = "LOADING"
	StateStreaming         = "STREAMING"
	StateUpdatingCitations = "UPDATING_CITATIONS"
	StateSendError         = "SEND_ERROR"
	StateResumeError       = "RESUME_ERROR"
)

// Busy reports whether a generation is in flight for the given state.
func Busy(state string) bool {
	switch state {
	case StateLoading, StateStreaming, StateUpdatingCitations:
		return true
	}
	return false
}
