package mapper

import (
	"encoding/json"
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var deletedAt *time.Time
	if d.DeletedAt.Valid {
		t := d.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	var params entity.ChunkParams
	if len(d.ChunkParams) > 0 {
		// Ignore unmarshal errors here: a row written by this system always
		// holds valid JSON, and the zero params are a safe fallback for reads.
		_ = json.Unmarshal(d.ChunkParams, &params)
	}

	return &entity.Document{
		Id:               d.Id,
		KnowledgeSpaceId: d.KnowledgeSpaceId,
		Name:             d.Name,
		DocType:          d.DocType,
		SourceType:       entity.SourceType(d.SourceType),
		ContentRef:       d.ContentRef,
		Status:           entity.DocumentStatus(d.Status),
		ChunkParams:      params,
		VectorIds:        d.VectorIds,
		ResultMessage:    d.ResultMessage,
		VersionMarker:    d.VersionMarker,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        updatedAt,
		DeletedAt:        deletedAt,
		IsDeleted:        d.DeletedAt.Valid,
	}
}

func (m *DocumentMapper) ToModel(e *entity.Document) *model.Document {
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

	paramsJSON, _ := json.Marshal(e.ChunkParams)

	return &model.Document{
		Id:               e.Id,
		KnowledgeSpaceId: e.KnowledgeSpaceId,
		Name:             e.Name,
		DocType:          e.DocType,
		SourceType:       string(e.SourceType),
		ContentRef:       e.ContentRef,
		Status:           string(e.Status),
		ChunkParams:      datatypes.JSON(paramsJSON),
		VectorIds:        e.VectorIds,
		ResultMessage:    e.ResultMessage,
		VersionMarker:    e.VersionMarker,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        updatedAt,
		DeletedAt:        deletedAt,
	}
}

func (m *DocumentMapper) ToEntities(docs []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(docs))
	for i, d := range docs {
		entities[i] = m.ToEntity(d)
	}
	return entities
}
