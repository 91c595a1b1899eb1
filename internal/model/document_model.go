package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Document struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	KnowledgeSpaceId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Name             string         `gorm:"type:varchar(255);not null"`
	DocType          string         `gorm:"type:varchar(64)"`
	SourceType       string         `gorm:"type:varchar(32);not null;index"`
	ContentRef       string         `gorm:"type:text"`
	Status           string         `gorm:"type:varchar(32);not null;default:'TODO';index"`
	ChunkParams      datatypes.JSON `gorm:"type:jsonb"`
	VectorIds        string         `gorm:"type:text"`
	ResultMessage    string         `gorm:"type:text"`
	VersionMarker    string         `gorm:"type:varchar(128)"`
	CreatedAt        time.Time      `gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime"`
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (Document) TableName() string {
	return "documents"
}
