package mapper

import (
	"encoding/json"

	"paperchat-be/internal/entity"
	"paperchat-be/internal/model"
)

type PassageMapper struct{}

func NewPassageMapper() *PassageMapper {
	return &PassageMapper{}
}

func (m *PassageMapper) DocumentToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(d.Metadata) > 0 {
		// Best effort: malformed metadata is not fatal for rendering
		_ = json.Unmarshal(d.Metadata, &metadata)
	}

	return &entity.Document{
		Id:        d.Id,
		SourceId:  d.SourceId,
		Title:     d.Title,
		Journal:   d.Journal,
		Metadata:  metadata,
		CreatedAt: d.CreatedAt,
	}
}

func (m *PassageMapper) PassageToEntity(p *model.Passage) *entity.Passage {
	if p == nil {
		return nil
	}
	return &entity.Passage{
		Id:         p.Id,
		DocumentId: p.DocumentId,
		Text:       p.Text,
		ChunkIndex: p.ChunkIndex,
		CreatedAt:  p.CreatedAt,
	}
}

func (m *PassageMapper) MessageSourceToEntity(s *model.MessageSource) *entity.MessageSource {
	if s == nil {
		return nil
	}
	e := &entity.MessageSource{
		Id:        s.Id,
		MessageId: s.MessageId,
		PassageId: s.PassageId,
		CreatedAt: s.CreatedAt,
		Passage:   m.PassageToEntity(s.Passage),
	}
	if s.Passage != nil {
		e.Document = m.DocumentToEntity(s.Passage.Document)
	}
	return e
}

func (m *PassageMapper) MessageSourceToModel(s *entity.MessageSource) *model.MessageSource {
	if s == nil {
		return nil
	}
	return &model.MessageSource{
		Id:        s.Id,
		MessageId: s.MessageId,
		PassageId: s.PassageId,
		CreatedAt: s.CreatedAt,
	}
}
