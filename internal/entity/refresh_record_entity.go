package entity

import (
	"time"

	"github.com/google/uuid"
)

// RefreshStatus is the daily refresh record state.
// SUCCEED means the space is current (refreshed or already fresh);
// FINISHED means every refresh attempt for the space failed.
type RefreshStatus string

const (
	RefreshStatusTodo     RefreshStatus = "TODO"
	RefreshStatusRunning  RefreshStatus = "RUNNING"
	RefreshStatusSucceed  RefreshStatus = "SUCCEED"
	RefreshStatusFinished RefreshStatus = "FINISHED"
)

func (s RefreshStatus) Terminal() bool {
	return s == RefreshStatusSucceed || s == RefreshStatusFinished
}

// RefreshRecord tracks one space's refresh for one calendar day.
// At most one record exists per (space, day).
type RefreshRecord struct {
	Id               uuid.UUID
	KnowledgeSpaceId uuid.UUID
	RefreshDate      string // YYYY-MM-DD
	Host             string
	Status           RefreshStatus
	ErrorMsg         string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}
