package sink

import (
	"context"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/model"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/pkg/embedding"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// VectorSink embeds chunk content and stores it in the pgvector-backed
// chunk_vectors table. The row ID is the sink-assigned vector ID.
type VectorSink struct {
	db       *gorm.DB
	provider embedding.EmbeddingProvider
}

func NewVectorSink(db *gorm.DB, provider embedding.EmbeddingProvider) *VectorSink {
	return &VectorSink{
		db:       db,
		provider: provider,
	}
}

func (s *VectorSink) Name() string {
	return "vector"
}

func (s *VectorSink) LoadChunks(ctx context.Context, chunks []*entity.Chunk) ([]AssignedID, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	rows := make([]*model.ChunkVector, 0, len(chunks))
	for _, c := range chunks {
		// Summaries index better than raw content when present.
		text := c.Content
		if c.Summary != "" {
			text = c.Summary + "\n\n" + c.Content
		}

		res, err := s.provider.Generate(text, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, faults.Transient("embed chunk %s: %v", c.Id, err)
		}

		rows = append(rows, &model.ChunkVector{
			Id:               uuid.New(),
			ChunkId:          c.Id,
			DocId:            c.DocId,
			KnowledgeSpaceId: c.KnowledgeSpaceId,
			Content:          c.Content,
			EmbeddingValue:   pgvector.NewVector(res.Embedding.Values),
		})
	}

	if err := s.db.WithContext(ctx).Create(rows).Error; err != nil {
		return nil, faults.Transient("store chunk vectors: %v", err)
	}

	assigned := make([]AssignedID, len(rows))
	for i, r := range rows {
		assigned[i] = AssignedID{ChunkId: r.ChunkId, SinkId: r.Id.String()}
	}
	return assigned, nil
}

func (s *VectorSink) DeleteByIds(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&model.ChunkVector{}).Error
}
