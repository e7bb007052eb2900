package unitofwork

import (
	"context"

	"paperchat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
	MessageRawRepository() contract.MessageRawRepository
	MessageSourceRepository() contract.MessageSourceRepository
	CitationRepository() contract.CitationRepository
	PassageRepository() contract.PassageRepository
	DocumentRepository() contract.DocumentRepository
}
