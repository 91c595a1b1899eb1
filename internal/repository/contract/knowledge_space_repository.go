package contract

import (
	"context"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/repository/specification"

	"github.com/google/uuid"
)

type KnowledgeSpaceRepository interface {
	Create(ctx context.Context, space *entity.KnowledgeSpace) error
	Update(ctx context.Context, space *entity.KnowledgeSpace) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.KnowledgeSpace, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeSpace, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// RecordSync bumps doc_count by delta and stamps last_synced_at.
	RecordSync(ctx context.Context, id uuid.UUID, delta int) error
}
