package history

import (
	"context"

	"paperchat-be/internal/constant"
	"paperchat-be/internal/repository/specification"
	"paperchat-be/internal/repository/unitofwork"
	"paperchat-be/pkg/llm"

	"github.com/google/uuid"
)

// Loader replays bounded conversation history for generation context.
// It reads the raw table so assistant turns keep their stable-id citation
// markers; the model sees the same marker dialect it is asked to emit.
type Loader struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewLoader(uowFactory unitofwork.RepositoryFactory) *Loader {
	return &Loader{
		uowFactory: uowFactory,
	}
}

// LoadConversationHistory returns the most recent messages of the
// conversation in chronological order, capped at the history window.
func (l *Loader) LoadConversationHistory(ctx context.Context, conversationId uuid.UUID) ([]llm.Message, error) {
	uow := l.uowFactory.NewUnitOfWork(ctx)

	rawMessages, err := uow.MessageRawRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: constant.HistoryWindow},
	)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(rawMessages))
	for i := len(rawMessages) - 1; i >= 0; i-- {
		msg := rawMessages[i]
		role := constant.MessageRoleUser
		if msg.Role == constant.MessageRoleAssistant {
			role = constant.MessageRoleAssistant
		}
		messages = append(messages, llm.Message{
			Role:    role,
			Content: msg.Content,
		})
	}

	return messages, nil
}
