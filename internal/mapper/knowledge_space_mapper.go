package mapper

import (
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/model"

	"gorm.io/gorm"
)

type KnowledgeSpaceMapper struct{}

func NewKnowledgeSpaceMapper() *KnowledgeSpaceMapper {
	return &KnowledgeSpaceMapper{}
}

func (m *KnowledgeSpaceMapper) ToEntity(s *model.KnowledgeSpace) *entity.KnowledgeSpace {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.KnowledgeSpace{
		Id:             s.Id,
		Name:           s.Name,
		StorageBackend: entity.StorageBackend(s.StorageBackend),
		Refresh:        s.Refresh,
		DocCount:       s.DocCount,
		LastSyncedAt:   s.LastSyncedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      s.DeletedAt.Valid,
	}
}

func (m *KnowledgeSpaceMapper) ToModel(e *entity.KnowledgeSpace) *model.KnowledgeSpace {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	} else if e.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.KnowledgeSpace{
		Id:             e.Id,
		Name:           e.Name,
		StorageBackend: string(e.StorageBackend),
		Refresh:        e.Refresh,
		DocCount:       e.DocCount,
		LastSyncedAt:   e.LastSyncedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}
