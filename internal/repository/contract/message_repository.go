package contract

import (
	"context"

	"paperchat-be/internal/entity"
	"paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	Update(ctx context.Context, message *entity.Message) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type MessageRawRepository interface {
	Create(ctx context.Context, message *entity.MessageRaw) error
	Update(ctx context.Context, message *entity.MessageRaw) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MessageRaw, error)
}

type MessageSourceRepository interface {
	CreateBulk(ctx context.Context, sources []*entity.MessageSource) error
	// FindCitedSince returns the passages used as grounded context by
	// assistant messages of the conversation with turn_index >= sinceTurn,
	// passages preloaded. Powers hybrid carry-forward.
	FindCitedSince(ctx context.Context, conversationId uuid.UUID, sinceTurn int) ([]*entity.MessageSource, error)
}
