package entity

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the offline import task state.
// TODO -> RUNNING -> SUCCEED, or -> FAILED -> retry -> RUNNING,
// ending in FINISHED once the retry budget or timeout is exhausted.
type TaskStatus string

const (
	TaskStatusTodo     TaskStatus = "TODO"
	TaskStatusRunning  TaskStatus = "RUNNING"
	TaskStatusSucceed  TaskStatus = "SUCCEED"
	TaskStatusFailed   TaskStatus = "FAILED"
	TaskStatusFinished TaskStatus = "FINISHED"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceed || s == TaskStatusFinished
}

type ImportTask struct {
	Id               uuid.UUID
	BatchId          uuid.UUID
	KnowledgeSpaceId uuid.UUID
	SourceType       SourceType
	ContentRef       string
	DocName          string
	Status           TaskStatus
	Host             string
	RetryTimes       int
	StartTime        *time.Time
	EndTime          *time.Time
	ErrorMsg         string
	DocId            *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}
