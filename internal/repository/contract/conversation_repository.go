package contract

import (
	"context"
	"time"

	"paperchat-be/internal/entity"
	"paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ConversationSummary is the navigation listing row: no citations, just
// enough to render a sidebar.
type ConversationSummary struct {
	Id           uuid.UUID
	Title        string
	FirstMessage string
	MessageCount int64
	LastUpdated  time.Time
}

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	Update(ctx context.Context, conversation *entity.Conversation) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	ListSummaries(ctx context.Context, clientId uuid.UUID) ([]*ConversationSummary, error)
}
