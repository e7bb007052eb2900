package implementation

import (
	"context"
	"errors"

	"paperchat-be/internal/entity"
	"paperchat-be/internal/mapper"
	"paperchat-be/internal/model"
	"paperchat-be/internal/repository/contract"
	"paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type PassageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PassageMapper
}

func NewPassageRepository(db *gorm.DB) contract.PassageRepository {
	return &PassageRepositoryImpl{
		db:     db,
		mapper: mapper.NewPassageMapper(),
	}
}

func (r *PassageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PassageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Passage, error) {
	var m model.Passage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.PassageToEntity(&m), nil
}

func (r *PassageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Passage, error) {
	var models []*model.Passage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Passage, len(models))
	for i, m := range models {
		entities[i] = r.mapper.PassageToEntity(m)
	}
	return entities, nil
}

// SearchSimilarWithScore computes cosine similarity as 1 - cosine distance
// (pgvector's <=> operator) so callers can filter on a 0..1 threshold.
func (r *PassageRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*contract.ScoredPassage, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.Passage
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("passages").
		Select("passages.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("passages.deleted_at IS NULL").
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, nil
	}

	documentIds := make([]uuid.UUID, 0, len(results))
	seen := make(map[uuid.UUID]bool)
	for _, res := range results {
		if !seen[res.DocumentId] {
			seen[res.DocumentId] = true
			documentIds = append(documentIds, res.DocumentId)
		}
	}

	var docs []*model.Document
	if err := r.db.WithContext(ctx).Where("id IN ?", documentIds).Find(&docs).Error; err != nil {
		return nil, err
	}
	docById := make(map[uuid.UUID]*model.Document, len(docs))
	for _, d := range docs {
		docById[d.Id] = d
	}

	scored := make([]*contract.ScoredPassage, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredPassage{
			Passage:    r.mapper.PassageToEntity(&res.Passage),
			Document:   r.mapper.DocumentToEntity(docById[res.DocumentId]),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PassageMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewPassageMapper(),
	}
}

func (r *DocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	var m model.Document
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.DocumentToEntity(&m), nil
}

