package dto

import (
	"time"

	"github.com/google/uuid"
)

// ChunkParamsDTO mirrors entity.ChunkParams on the API surface.
type ChunkParamsDTO struct {
	Strategy     string `json:"strategy"`
	ChunkSize    int    `json:"chunk_size" validate:"gte=0"`
	Overlap      int    `json:"overlap" validate:"gte=0"`
	ExtractImage bool   `json:"extract_image"`
	Summarize    bool   `json:"summarize"`
}

type SubmitSyncRequest struct {
	KnowledgeSpaceId uuid.UUID      `json:"knowledge_space_id" validate:"required"`
	Name             string         `json:"name" validate:"required"`
	DocType          string         `json:"doc_type"`
	SourceType       string         `json:"source_type" validate:"required,oneof=upload text external_url"`
	ContentRef       string         `json:"content_ref" validate:"required"`
	ChunkParams      ChunkParamsDTO `json:"chunk_params"`
}

type SubmitSyncResponse struct {
	DocId uuid.UUID `json:"doc_id"`
}

type ResyncRequest struct {
	ChunkParams ChunkParamsDTO `json:"chunk_params"`
}

type DocumentStatusResponse struct {
	DocId         uuid.UUID `json:"doc_id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	ResultMessage string    `json:"result_message"`
	ChunkCount    int64     `json:"chunk_count"`
	UpdatedAt     *string   `json:"updated_at"`
}

// BatchImportItem is one document inside a batch submission.
type BatchImportItem struct {
	Name        string         `json:"name" validate:"required"`
	DocType     string         `json:"doc_type"`
	SourceType  string         `json:"source_type" validate:"required,oneof=upload text external_url"`
	ContentRef  string         `json:"content_ref" validate:"required"`
	ChunkParams ChunkParamsDTO `json:"chunk_params"`
}

type SubmitBatchRequest struct {
	KnowledgeSpaceId uuid.UUID         `json:"knowledge_space_id" validate:"required"`
	Requests         []BatchImportItem `json:"requests" validate:"required,min=1,dive"`
}

type SubmitBatchResponse struct {
	BatchId uuid.UUID `json:"batch_id"`
	Total   int       `json:"total"`
	Inline  bool      `json:"inline"`
}

type BatchStatusResponse struct {
	BatchId   uuid.UUID `json:"batch_id"`
	Total     int64     `json:"total"`
	Todo      int64     `json:"todo"`
	Running   int64     `json:"running"`
	Succeeded int64     `json:"succeeded"`
	Failed    int64     `json:"failed"`
	Completed bool      `json:"completed"`
}

type CreateSpaceRequest struct {
	Name           string `json:"name" validate:"required"`
	StorageBackend string `json:"storage_backend" validate:"required,oneof=vector vector_fulltext"`
	Refresh        bool   `json:"refresh"`
}

type CreateSpaceResponse struct {
	Id uuid.UUID `json:"id"`
}

type SpaceResponse struct {
	Id             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	StorageBackend string     `json:"storage_backend"`
	Refresh        bool       `json:"refresh"`
	DocCount       int        `json:"doc_count"`
	LastSyncedAt   *time.Time `json:"last_synced_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

type TriggerRefreshResponse struct {
	Refreshed bool   `json:"refreshed"`
	Detail    string `json:"detail"`
}

// DocumentSyncedMessage is the internal bus payload emitted after every
// sync attempt reaches a terminal status.
type DocumentSyncedMessage struct {
	DocId            uuid.UUID `json:"doc_id"`
	KnowledgeSpaceId uuid.UUID `json:"knowledge_space_id"`
	Status           string    `json:"status"`
	ChunkCount       int       `json:"chunk_count"`
	Message          string    `json:"message"`
}
