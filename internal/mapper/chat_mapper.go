package mapper

import (
	"time"

	"paperchat-be/internal/entity"
	"paperchat-be/internal/model"

	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Conversation Mappers

func (m *ChatMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:        c.Id,
		ClientId:  c.ClientId,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: c.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:        c.Id,
		ClientId:  c.ClientId,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	var deletedAt *time.Time
	if msg.DeletedAt.Valid {
		t := msg.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !msg.UpdatedAt.IsZero() {
		t := msg.UpdatedAt
		updatedAt = &t
	}

	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		TurnIndex:      msg.TurnIndex,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      msg.DeletedAt.Valid,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if msg.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *msg.DeletedAt, Valid: true}
	}

	var updatedAt time.Time
	if msg.UpdatedAt != nil {
		updatedAt = *msg.UpdatedAt
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		TurnIndex:      msg.TurnIndex,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *ChatMapper) MessageRawToEntity(msg *model.MessageRaw) *entity.MessageRaw {
	if msg == nil {
		return nil
	}
	return &entity.MessageRaw{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		TurnIndex:      msg.TurnIndex,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageRawToModel(msg *entity.MessageRaw) *model.MessageRaw {
	if msg == nil {
		return nil
	}
	return &model.MessageRaw{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		TurnIndex:      msg.TurnIndex,
		CreatedAt:      msg.CreatedAt,
	}
}

// Citation Mappers

func (m *ChatMapper) CitationToEntity(c *model.Citation) *entity.Citation {
	if c == nil {
		return nil
	}
	return &entity.Citation{
		Id:             c.Id,
		ConversationId: c.ConversationId,
		SourceId:       c.SourceId,
		Title:          c.Title,
		Journal:        c.Journal,
		FirstCitedTurn: c.FirstCitedTurn,
		Position:       c.Position,
		CreatedAt:      c.CreatedAt,
	}
}

func (m *ChatMapper) CitationToModel(c *entity.Citation) *model.Citation {
	if c == nil {
		return nil
	}
	return &model.Citation{
		Id:             c.Id,
		ConversationId: c.ConversationId,
		SourceId:       c.SourceId,
		Title:          c.Title,
		Journal:        c.Journal,
		FirstCitedTurn: c.FirstCitedTurn,
		Position:       c.Position,
		CreatedAt:      c.CreatedAt,
	}
}
