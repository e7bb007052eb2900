package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is a source paper. SourceId is the stable external identifier
// (DOI or equivalent) that citation markers reference.
type Document struct {
	Id        uuid.UUID
	SourceId  string
	Title     string
	Journal   string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Passage is a retrievable chunk of a document. Owned by the ingestion
// pipeline; read-only here.
type Passage struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	Text       string
	ChunkIndex int
	CreatedAt  time.Time
}

// MessageSource records that a passage was part of the grounded context of
// an assistant message. These rows power hybrid carry-forward retrieval.
type MessageSource struct {
	Id        uuid.UUID
	MessageId uuid.UUID
	PassageId uuid.UUID
	CreatedAt time.Time

	Passage  *Passage
	Document *Document
}
