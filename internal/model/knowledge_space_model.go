package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type KnowledgeSpace struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string         `gorm:"type:varchar(255);not null"`
	StorageBackend string         `gorm:"type:varchar(32);not null;default:'vector'"`
	Refresh        bool           `gorm:"default:false;index"`
	DocCount       int            `gorm:"default:0"`
	LastSyncedAt   *time.Time     `gorm:""`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (KnowledgeSpace) TableName() string {
	return "knowledge_spaces"
}
