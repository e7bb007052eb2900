package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Title string `json:"title" validate:"omitempty,max=200"`
}

type CreateConversationResponse struct {
	Id uuid.UUID `json:"id"`
}

type ConversationSummaryResponse struct {
	Id           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	FirstMessage string    `json:"first_message"`
	MessageCount int64     `json:"message_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

type MessageDTO struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	TurnIndex int       `json:"turn_index"`
	CreatedAt time.Time `json:"created_at"`
}

// CitationDTO is one rendered ledger row. DisplayNumber is derived from
// ledger position at render time.
type CitationDTO struct {
	SourceId       string `json:"source_id"`
	Title          string `json:"title"`
	Journal        string `json:"journal"`
	DisplayNumber  int    `json:"display_number"`
	FirstCitedTurn int    `json:"first_cited_turn"`
}

// CitationSourceResponse is the document detail behind one ledger entry.
type CitationSourceResponse struct {
	SourceId      string                 `json:"source_id"`
	Title         string                 `json:"title"`
	Journal       string                 `json:"journal"`
	DisplayNumber int                    `json:"display_number"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type GetConversationResponse struct {
	Id        uuid.UUID     `json:"id"`
	Title     string        `json:"title"`
	State     string        `json:"state"`
	Messages  []MessageDTO  `json:"messages"`
	Citations []CitationDTO `json:"citations"`
	FromCache bool          `json:"from_cache"`
}

// SendMessageRequest submits one turn. Stream defaults to true; with
// stream=false the call blocks and the response carries the full turn
// result instead of websocket frames. SkipRetrieval answers from the
// conversation history alone, SkipRerank keeps similarity order.
type SendMessageRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	Content        string    `json:"content" validate:"required,max=8000"`
	Stream         *bool     `json:"stream,omitempty"`
	SkipRetrieval  bool      `json:"skip_retrieval,omitempty"`
	SkipRerank     bool      `json:"skip_rerank,omitempty"`
}

// Streaming reports the requested delivery mode, defaulting to streaming
// when the field is absent.
func (r *SendMessageRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// SendMessageResponse acknowledges a turn. In streaming mode Result is
// nil and fragments plus the final rendered message arrive over the
// websocket; with stream=false Result holds the completed turn.
type SendMessageResponse struct {
	ConversationId uuid.UUID           `json:"conversation_id"`
	UserMessageId  uuid.UUID           `json:"user_message_id"`
	TurnIndex      int                 `json:"turn_index"`
	State          string              `json:"state"`
	Result         *TurnResultResponse `json:"result,omitempty"`
}

type TurnResultResponse struct {
	ConversationId uuid.UUID     `json:"conversation_id"`
	Sent           *MessageDTO   `json:"sent"`
	Reply          *MessageDTO   `json:"reply"`
	Citations      []CitationDTO `json:"citations"`
}

type DeleteConversationRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
}
