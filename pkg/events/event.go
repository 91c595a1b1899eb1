package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DOCUMENT_SYNCED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic implementation used by all ingest events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeDocumentSynced = "DOCUMENT_SYNCED"
	TypeDocumentFailed = "DOCUMENT_FAILED"
	TypeBatchSubmitted = "BATCH_SUBMITTED"
	TypeSpaceRefreshed = "SPACE_REFRESHED"
)

func NewDocumentSyncedEvent(docId, spaceId, status, message string) Event {
	return BaseEvent{
		Type: TypeDocumentSynced,
		Data: map[string]interface{}{
			"doc_id":   docId,
			"space_id": spaceId,
			"status":   status,
			"message":  message,
		},
		OccurredAt: time.Now(),
	}
}

func NewDocumentFailedEvent(docId, spaceId, message string) Event {
	return BaseEvent{
		Type: TypeDocumentFailed,
		Data: map[string]interface{}{
			"doc_id":   docId,
			"space_id": spaceId,
			"message":  message,
		},
		OccurredAt: time.Now(),
	}
}

func NewBatchSubmittedEvent(batchId string, total int) Event {
	return BaseEvent{
		Type: TypeBatchSubmitted,
		Data: map[string]interface{}{
			"batch_id": batchId,
			"total":    total,
		},
		OccurredAt: time.Now(),
	}
}

func NewSpaceRefreshedEvent(spaceId, status string, refreshed int) Event {
	return BaseEvent{
		Type: TypeSpaceRefreshed,
		Data: map[string]interface{}{
			"space_id":  spaceId,
			"status":    status,
			"refreshed": refreshed,
		},
		OccurredAt: time.Now(),
	}
}
