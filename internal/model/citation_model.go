package model

import (
	"time"

	"github.com/google/uuid"
)

type Citation struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID `gorm:"type:uuid;not null;index:idx_citation_conv_source,unique"`
	SourceId       string    `gorm:"not null;index:idx_citation_conv_source,unique"`
	Title          string
	Journal        string
	FirstCitedTurn int       `gorm:"default:0"`
	Position       int       `gorm:"not null"` // insertion order within the conversation ledger
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (Citation) TableName() string {
	return "citations"
}
