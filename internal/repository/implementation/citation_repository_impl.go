package implementation

import (
	"context"

	"paperchat-be/internal/entity"
	"paperchat-be/internal/mapper"
	"paperchat-be/internal/model"
	"paperchat-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CitationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewCitationRepository(db *gorm.DB) contract.CitationRepository {
	return &CitationRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *CitationRepositoryImpl) Create(ctx context.Context, citation *entity.Citation) error {
	m := r.mapper.CitationToModel(citation)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*citation = *r.mapper.CitationToEntity(m)
	return nil
}

func (r *CitationRepositoryImpl) CreateBulk(ctx context.Context, citations []*entity.Citation) error {
	if len(citations) == 0 {
		return nil
	}
	models := make([]*model.Citation, len(citations))
	for i, c := range citations {
		models[i] = r.mapper.CitationToModel(c)
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *CitationRepositoryImpl) DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Delete(&model.Citation{}).Error
}

func (r *CitationRepositoryImpl) FindByConversation(ctx context.Context, conversationId uuid.UUID) ([]*entity.Citation, error) {
	var models []*model.Citation
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("position ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.Citation, len(models))
	for i, m := range models {
		entities[i] = r.mapper.CitationToEntity(m)
	}
	return entities, nil
}
