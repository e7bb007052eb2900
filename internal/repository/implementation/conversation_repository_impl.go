package implementation

import (
	"context"
	"errors"

	"paperchat-be/internal/constant"
	"paperchat-be/internal/entity"
	"paperchat-be/internal/mapper"
	"paperchat-be/internal/model"
	"paperchat-be/internal/repository/contract"
	"paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewConversationRepository(db *gorm.DB) contract.ConversationRepository {
	return &ConversationRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ConversationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ConversationRepositoryImpl) Create(ctx context.Context, conversation *entity.Conversation) error {
	m := r.mapper.ConversationToModel(conversation)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*conversation = *r.mapper.ConversationToEntity(m)
	return nil
}

func (r *ConversationRepositoryImpl) Update(ctx context.Context, conversation *entity.Conversation) error {
	m := r.mapper.ConversationToModel(conversation)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*conversation = *r.mapper.ConversationToEntity(m)
	return nil
}

func (r *ConversationRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Conversation{}, id).Error
}

func (r *ConversationRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	var m model.Conversation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ConversationToEntity(&m), nil
}

func (r *ConversationRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	var models []*model.Conversation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Conversation, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ConversationToEntity(m)
	}
	return entities, nil
}

func (r *ConversationRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Conversation{}).Count(&count).Error
	return count, err
}

func (r *ConversationRepositoryImpl) ListSummaries(ctx context.Context, clientId uuid.UUID) ([]*contract.ConversationSummary, error) {
	var summaries []*contract.ConversationSummary

	var models []*model.Conversation
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientId).
		Order("updated_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	for _, c := range models {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Message{}).
			Where("conversation_id = ?", c.Id).
			Count(&count).Error; err != nil {
			return nil, err
		}

		var first model.Message
		firstMessage := ""
		err := r.db.WithContext(ctx).
			Where("conversation_id = ? AND role = ?", c.Id, constant.MessageRoleUser).
			Order("created_at ASC").
			First(&first).Error
		if err == nil {
			firstMessage = first.Content
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		summaries = append(summaries, &contract.ConversationSummary{
			Id:           c.Id,
			Title:        c.Title,
			FirstMessage: firstMessage,
			MessageCount: count,
			LastUpdated:  c.UpdatedAt,
		})
	}

	return summaries, nil
}
