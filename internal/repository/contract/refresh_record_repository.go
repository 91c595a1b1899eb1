package contract

import (
	"context"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/repository/specification"

	"github.com/google/uuid"
)

type RefreshRecordRepository interface {
	Create(ctx context.Context, record *entity.RefreshRecord) error
	Update(ctx context.Context, record *entity.RefreshRecord) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RefreshRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RefreshRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// ExistsForDay reports whether the (space, day) record already exists.
	// The existence check before insert is what makes daily initialization
	// idempotent under concurrent callers.
	ExistsForDay(ctx context.Context, spaceId uuid.UUID, date string) (bool, error)

	// FindNextPending returns one TODO record, or a RUNNING record the
	// host already owns, oldest first. Matching own RUNNING records lets
	// a restarted host resume work it abandoned mid-flight.
	FindNextPending(ctx context.Context, host string) (*entity.RefreshRecord, error)

	// Claim marks the record RUNNING under the host. Succeeds when the
	// record is still TODO or already RUNNING under the same host.
	Claim(ctx context.Context, id uuid.UUID, host string) (bool, error)

	CountNonTerminal(ctx context.Context) (int64, error)
}
