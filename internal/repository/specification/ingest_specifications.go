package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySpaceId filters rows belonging to one knowledge space.
type BySpaceId struct {
	SpaceId uuid.UUID
}

func (s BySpaceId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("knowledge_space_id = ?", s.SpaceId)
}

// ByDocId filters chunk rows belonging to one document.
type ByDocId struct {
	DocId uuid.UUID
}

func (s ByDocId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("doc_id = ?", s.DocId)
}

// ByBatchId filters import tasks by their submission batch.
type ByBatchId struct {
	BatchId uuid.UUID
}

func (s ByBatchId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("batch_id = ?", s.BatchId)
}

// ByStatus filters by status column.
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// StatusNotIn excludes rows whose status is in the given set,
// used to select non-terminal tasks and refresh records.
type StatusNotIn struct {
	Statuses []string
}

func (s StatusNotIn) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status NOT IN ?", s.Statuses)
}

// ClaimableBy keeps rows either unclaimed or already claimed by the
// given host. Rows claimed by a different host are another worker's.
type ClaimableBy struct {
	Host string
}

func (s ClaimableBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("host = '' OR host IS NULL OR host = ?", s.Host)
}

// ByRefreshDate filters refresh records by calendar day (YYYY-MM-DD).
type ByRefreshDate struct {
	Date string
}

func (s ByRefreshDate) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("refresh_date = ?", s.Date)
}
