package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID `gorm:"type:uuid;not null;index"`
	Role           string
	Content        string `gorm:"type:text"`
	TurnIndex      int    `gorm:"default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageRaw preserves the pre-rewrite assistant text (and verbatim user
// text) so citation rewriting can always restart from stable identifiers.
type MessageRaw struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID `gorm:"type:uuid;not null;index"`
	Role           string
	Content        string `gorm:"type:text"`
	TurnIndex      int    `gorm:"default:0"`
	CreatedAt      time.Time
}

func (MessageRaw) TableName() string {
	return "messages_raw"
}
