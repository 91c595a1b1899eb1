package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type ChunkVector struct {
	Id               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChunkId          uuid.UUID       `gorm:"type:uuid;not null;index"`
	DocId            uuid.UUID       `gorm:"type:uuid;not null;index"`
	KnowledgeSpaceId uuid.UUID       `gorm:"type:uuid;not null;index"`
	Content          string          `gorm:"type:text"`
	EmbeddingValue   pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 uses 768 dimensions
	CreatedAt        time.Time       `gorm:"autoCreateTime"`
}

func (ChunkVector) TableName() string {
	return "chunk_vectors"
}
