package entity

import (
	"time"

	"github.com/google/uuid"
)

// StorageBackend selects which sink set a space loads chunks into.
type StorageBackend string

const (
	BackendVector         StorageBackend = "vector"
	BackendVectorFullText StorageBackend = "vector_fulltext"
)

type KnowledgeSpace struct {
	Id             uuid.UUID
	Name           string
	StorageBackend StorageBackend
	Refresh        bool
	DocCount       int
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
