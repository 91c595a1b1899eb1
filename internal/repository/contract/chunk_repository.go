package contract

import (
	"context"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.Chunk) error
	Update(ctx context.Context, chunk *entity.Chunk) error
	// UpdateSinkIds writes the sink-assigned IDs and the transformed
	// content back after the load stage.
	UpdateSinkIds(ctx context.Context, chunks []*entity.Chunk) error
	DeleteByDocId(ctx context.Context, docId uuid.UUID) error
	DeleteBySpaceId(ctx context.Context, spaceId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chunk, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
