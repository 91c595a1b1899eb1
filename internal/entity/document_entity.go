package entity

import (
	"time"

	"github.com/google/uuid"
)

// SourceType is where a document's content comes from.
type SourceType string

const (
	SourceUpload      SourceType = "upload"
	SourceText        SourceType = "text"
	SourceExternalURL SourceType = "external_url"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceUpload, SourceText, SourceExternalURL:
		return true
	}
	return false
}

// DocumentStatus is the sync state machine state of a document.
// Legal transitions: TODO -> EXTRACTING -> RUNNING -> FINISHED | FAILED.
// RETRYING is entered from FAILED when the task queue re-dispatches.
// SplitAndResync re-enters at TODO from any terminal state.
type DocumentStatus string

const (
	DocStatusTodo       DocumentStatus = "TODO"
	DocStatusExtracting DocumentStatus = "EXTRACTING"
	DocStatusRunning    DocumentStatus = "RUNNING"
	DocStatusRetrying   DocumentStatus = "RETRYING"
	DocStatusFinished   DocumentStatus = "FINISHED"
	DocStatusFailed     DocumentStatus = "FAILED"
)

// Active reports whether a sync attempt is currently in flight.
// A document in an active state must not be re-submitted.
func (s DocumentStatus) Active() bool {
	switch s {
	case DocStatusExtracting, DocStatusRunning, DocStatusRetrying:
		return true
	}
	return false
}

func (s DocumentStatus) Terminal() bool {
	return s == DocStatusFinished || s == DocStatusFailed
}

// ChunkParams configures how a document is split.
type ChunkParams struct {
	Strategy     string `json:"strategy"`
	ChunkSize    int    `json:"chunk_size"`
	Overlap      int    `json:"overlap"`
	ExtractImage bool   `json:"extract_image"`
	Summarize    bool   `json:"summarize"`
}

type Document struct {
	Id               uuid.UUID
	KnowledgeSpaceId uuid.UUID
	Name             string
	DocType          string
	SourceType       SourceType
	ContentRef       string
	Status           DocumentStatus
	ChunkParams      ChunkParams
	VectorIds        string
	ResultMessage    string
	VersionMarker    string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
	DeletedAt        *time.Time
	IsDeleted        bool
}
