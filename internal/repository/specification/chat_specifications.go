package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type OwnedByClient struct {
	ClientID uuid.UUID
}

func (s OwnedByClient) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("client_id = ?", s.ClientID)
}

type ByRole struct {
	Role string
}

func (s ByRole) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("role = ?", s.Role)
}

type BySourceID struct {
	SourceID string
}

func (s BySourceID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_id = ?", s.SourceID)
}
