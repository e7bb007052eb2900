package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Document struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId  string    `gorm:"uniqueIndex;not null"` // DOI or equivalent external id
	Title     string
	Journal   string
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (Document) TableName() string {
	return "documents"
}

type Passage struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId uuid.UUID       `gorm:"type:uuid;not null;index"`
	Text       string          `gorm:"type:text"`
	Embedding  pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 / nomic dimensions
	ChunkIndex int             `gorm:"default:0"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
	DeletedAt  gorm.DeletedAt  `gorm:"index"`

	Document *Document `gorm:"foreignKey:DocumentId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (Passage) TableName() string {
	return "passages"
}

// MessageSource links an assistant message to a passage that grounded it.
type MessageSource struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageId uuid.UUID `gorm:"type:uuid;not null;index"`
	PassageId uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Message *Message `gorm:"foreignKey:MessageId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Passage *Passage `gorm:"foreignKey:PassageId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (MessageSource) TableName() string {
	return "message_sources"
}
