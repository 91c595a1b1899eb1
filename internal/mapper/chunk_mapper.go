package mapper

import (
	"encoding/json"
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChunkMapper struct{}

func NewChunkMapper() *ChunkMapper {
	return &ChunkMapper{}
}

func (m *ChunkMapper) ToEntity(c *model.Chunk) *entity.Chunk {
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

	var meta entity.ChunkMetadata
	if len(c.Metadata) > 0 {
		_ = json.Unmarshal(c.Metadata, &meta)
	}

	return &entity.Chunk{
		Id:               c.Id,
		DocId:            c.DocId,
		KnowledgeSpaceId: c.KnowledgeSpaceId,
		ChunkIndex:       c.ChunkIndex,
		Content:          c.Content,
		Summary:          c.Summary,
		Metadata:         meta,
		VectorId:         c.VectorId,
		FullTextId:       c.FullTextId,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        updatedAt,
		DeletedAt:        deletedAt,
		IsDeleted:        c.DeletedAt.Valid,
	}
}

func (m *ChunkMapper) ToModel(e *entity.Chunk) *model.Chunk {
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

	metaJSON, _ := json.Marshal(e.Metadata)

	return &model.Chunk{
		Id:               e.Id,
		DocId:            e.DocId,
		KnowledgeSpaceId: e.KnowledgeSpaceId,
		ChunkIndex:       e.ChunkIndex,
		Content:          e.Content,
		Summary:          e.Summary,
		Metadata:         datatypes.JSON(metaJSON),
		VectorId:         e.VectorId,
		FullTextId:       e.FullTextId,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        updatedAt,
		DeletedAt:        deletedAt,
	}
}

func (m *ChunkMapper) ToEntities(chunks []*model.Chunk) []*entity.Chunk {
	entities := make([]*entity.Chunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *ChunkMapper) ToModels(chunks []*entity.Chunk) []*model.Chunk {
	models := make([]*model.Chunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}
