package contract

import (
	"context"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	Update(ctx context.Context, doc *entity.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// UpdateStatus persists a status transition together with an optional
	// result message append.
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DocumentStatus, resultMessage string) error

	// CompareAndSetStatus atomically moves the document from one of the
	// expected statuses to the new one. Returns false when the row was in
	// none of the expected statuses, which is how concurrent submitters
	// lose the claim race.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected []entity.DocumentStatus, next entity.DocumentStatus) (bool, error)
}
