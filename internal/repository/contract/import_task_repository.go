package contract

import (
	"context"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/repository/specification"

	"github.com/google/uuid"
)

// BatchCounts aggregates task statuses for one batch.
type BatchCounts struct {
	Total     int64
	Todo      int64
	Running   int64
	Succeeded int64
	Failed    int64
}

type ImportTaskRepository interface {
	CreateBulk(ctx context.Context, tasks []*entity.ImportTask) error
	Update(ctx context.Context, task *entity.ImportTask) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ImportTask, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ImportTask, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// FindNextPending returns the oldest non-terminal task that is either
	// unclaimed or already claimed by the given host. Returns nil when the
	// queue has no work for this host.
	FindNextPending(ctx context.Context, host string) (*entity.ImportTask, error)

	// Claim assigns the task to the host if the row is still unclaimed or
	// already owned by it. Returns false when another host holds the task.
	Claim(ctx context.Context, id uuid.UUID, host string) (bool, error)

	CountByBatch(ctx context.Context, batchId uuid.UUID) (*BatchCounts, error)
}
