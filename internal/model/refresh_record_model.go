package model

import (
	"time"

	"github.com/google/uuid"
)

type RefreshRecord struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	KnowledgeSpaceId uuid.UUID `gorm:"type:uuid;not null;index:idx_refresh_space_date"`
	RefreshDate      string    `gorm:"type:varchar(10);not null;index:idx_refresh_space_date"`
	Host             string    `gorm:"type:varchar(128)"`
	Status           string    `gorm:"type:varchar(32);not null;default:'TODO';index"`
	ErrorMsg         string    `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (RefreshRecord) TableName() string {
	return "refresh_records"
}
