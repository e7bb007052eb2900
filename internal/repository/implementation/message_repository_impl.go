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

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) Update(ctx context.Context, message *entity.Message) error {
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&model.Message{}, id).Error
}

func (r *MessageRepositoryImpl) DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("conversation_id = ?", conversationId).
		Delete(&model.Message{}).Error
}

func (r *MessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error) {
	var m model.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.MessageToEntity(&m), nil
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var models []*model.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Message, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MessageToEntity(m)
	}
	return entities, nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Message{}).Count(&count).Error
	return count, err
}

type MessageRawRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageRawRepository(db *gorm.DB) contract.MessageRawRepository {
	return &MessageRawRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageRawRepositoryImpl) Create(ctx context.Context, message *entity.MessageRaw) error {
	m := r.mapper.MessageRawToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.MessageRawToEntity(m)
	return nil
}

func (r *MessageRawRepositoryImpl) Update(ctx context.Context, message *entity.MessageRaw) error {
	m := r.mapper.MessageRawToModel(message)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.MessageRawToEntity(m)
	return nil
}

func (r *MessageRawRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.MessageRaw{}, id).Error
}

func (r *MessageRawRepositoryImpl) DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Delete(&model.MessageRaw{}).Error
}

func (r *MessageRawRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MessageRaw, error) {
	var models []*model.MessageRaw
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.MessageRaw, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MessageRawToEntity(m)
	}
	return entities, nil
}

type MessageSourceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PassageMapper
}

func NewMessageSourceRepository(db *gorm.DB) contract.MessageSourceRepository {
	return &MessageSourceRepositoryImpl{
		db:     db,
		mapper: mapper.NewPassageMapper(),
	}
}

func (r *MessageSourceRepositoryImpl) CreateBulk(ctx context.Context, sources []*entity.MessageSource) error {
	if len(sources) == 0 {
		return nil
	}
	models := make([]*model.MessageSource, len(sources))
	for i, s := range sources {
		models[i] = r.mapper.MessageSourceToModel(s)
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *MessageSourceRepositoryImpl) FindCitedSince(ctx context.Context, conversationId uuid.UUID, sinceTurn int) ([]*entity.MessageSource, error) {
	var models []*model.MessageSource
	err := r.db.WithContext(ctx).
		Joins("JOIN messages ON messages.id = message_sources.message_id").
		Where("messages.conversation_id = ? AND messages.role = ? AND messages.turn_index >= ?",
			conversationId, constant.MessageRoleAssistant, sinceTurn).
		Preload("Passage").
		Preload("Passage.Document").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.MessageSource, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MessageSourceToEntity(m)
	}
	return entities, nil
}
