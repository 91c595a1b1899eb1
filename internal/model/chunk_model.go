package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Chunk struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocId            uuid.UUID      `gorm:"type:uuid;not null;index"`
	KnowledgeSpaceId uuid.UUID      `gorm:"type:uuid;not null;index"`
	ChunkIndex       int            `gorm:"default:0"`
	Content          string         `gorm:"type:text"`
	Summary          string         `gorm:"type:text"`
	Metadata         datatypes.JSON `gorm:"type:jsonb"`
	VectorId         string         `gorm:"type:varchar(128)"`
	FullTextId       string         `gorm:"type:varchar(128)"`
	CreatedAt        time.Time      `gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime"`
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (Chunk) TableName() string {
	return "chunks"
}
