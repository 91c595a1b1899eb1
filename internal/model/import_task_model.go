package model

import (
	"time"

	"github.com/google/uuid"
)

type ImportTask struct {
	Id               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BatchId          uuid.UUID  `gorm:"type:uuid;not null;index"`
	KnowledgeSpaceId uuid.UUID  `gorm:"type:uuid;not null;index"`
	SourceType       string     `gorm:"type:varchar(32);not null"`
	ContentRef       string     `gorm:"type:text"`
	DocName          string     `gorm:"type:varchar(255)"`
	Status           string     `gorm:"type:varchar(32);not null;default:'TODO';index"`
	Host             string     `gorm:"type:varchar(128);index"`
	RetryTimes       int        `gorm:"default:0"`
	StartTime        *time.Time `gorm:""`
	EndTime          *time.Time `gorm:""`
	ErrorMsg         string     `gorm:"type:text"`
	DocId            *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime"`
}

func (ImportTask) TableName() string {
	return "import_tasks"
}
