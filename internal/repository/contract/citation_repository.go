package contract

import (
	"context"

	"paperchat-be/internal/entity"

	"github.com/google/uuid"
)

type CitationRepository interface {
	Create(ctx context.Context, citation *entity.Citation) error
	CreateBulk(ctx context.Context, citations []*entity.Citation) error
	DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error
	// FindByConversation returns the ledger in insertion order (position
	// ascending). Display numbers are 1-based indexes into this slice.
	FindByConversation(ctx context.Context, conversationId uuid.UUID) ([]*entity.Citation, error)
}
