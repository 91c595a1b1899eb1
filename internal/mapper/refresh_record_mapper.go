package mapper

import (
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/model"
)

type RefreshRecordMapper struct{}

func NewRefreshRecordMapper() *RefreshRecordMapper {
	return &RefreshRecordMapper{}
}

func (m *RefreshRecordMapper) ToEntity(r *model.RefreshRecord) *entity.RefreshRecord {
	if r == nil {
		return nil
	}

	var updatedAt *time.Time
	if !r.UpdatedAt.IsZero() {
		u := r.UpdatedAt
		updatedAt = &u
	}

	return &entity.RefreshRecord{
		Id:               r.Id,
		KnowledgeSpaceId: r.KnowledgeSpaceId,
		RefreshDate:      r.RefreshDate,
		Host:             r.Host,
		Status:           entity.RefreshStatus(r.Status),
		ErrorMsg:         r.ErrorMsg,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *RefreshRecordMapper) ToModel(e *entity.RefreshRecord) *model.RefreshRecord {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.RefreshRecord{
		Id:               e.Id,
		KnowledgeSpaceId: e.KnowledgeSpaceId,
		RefreshDate:      e.RefreshDate,
		Host:             e.Host,
		Status:           string(e.Status),
		ErrorMsg:         e.ErrorMsg,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *RefreshRecordMapper) ToEntities(records []*model.RefreshRecord) []*entity.RefreshRecord {
	entities := make([]*entity.RefreshRecord, len(records))
	for i, r := range records {
		entities[i] = m.ToEntity(r)
	}
	return entities
}
