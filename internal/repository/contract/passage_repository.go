package contract

import (
	"context"

	"paperchat-be/internal/entity"
	"paperchat-be/internal/repository/specification"
)

// ScoredPassage wraps a Passage with its cosine similarity and parent
// document metadata.
type ScoredPassage struct {
	Passage    *entity.Passage
	Document   *entity.Document
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

// PassageRepository is the read-only chunk store adapter. Writes belong to
// the offline ingestion pipeline.
type PassageRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Passage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Passage, error)
	// SearchSimilarWithScore runs approximate nearest-neighbor search by
	// cosine similarity, filtered by threshold. Zero results is not an error.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*ScoredPassage, error)
}

type DocumentRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
}
