package sink

import (
	"context"

	"kb-ingest-be/internal/entity"

	"github.com/google/uuid"
)

// AssignedID pairs a chunk with the opaque ID a sink gave it.
type AssignedID struct {
	ChunkId uuid.UUID
	SinkId  string
}

// Sink is a downstream index that accepts chunk batches. Each sink
// assigns its own opaque IDs; a chunk may succeed in one sink and fail
// in another.
type Sink interface {
	Name() string
	LoadChunks(ctx context.Context, chunks []*entity.Chunk) ([]AssignedID, error)
	DeleteByIds(ctx context.Context, ids []string) error
}
