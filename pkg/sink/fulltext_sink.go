package sink

import (
	"context"
	"fmt"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"

	"github.com/redis/go-redis/v9"
)

// FullTextSink stores chunk content as Redis hashes keyed per chunk,
// with a per-document member set so a document's entries can be purged
// together.
type FullTextSink struct {
	rdb *redis.Client
}

func NewFullTextSink(rdb *redis.Client) *FullTextSink {
	return &FullTextSink{rdb: rdb}
}

func (s *FullTextSink) Name() string {
	return "fulltext"
}

func chunkKey(id string) string {
	return "ft:chunk:" + id
}

func (s *FullTextSink) LoadChunks(ctx context.Context, chunks []*entity.Chunk) ([]AssignedID, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	assigned := make([]AssignedID, len(chunks))
	for i, c := range chunks {
		id := c.Id.String()
		pipe.HSet(ctx, chunkKey(id), map[string]interface{}{
			"content":  c.Content,
			"summary":  c.Summary,
			"doc_id":   c.DocId.String(),
			"space_id": c.KnowledgeSpaceId.String(),
			"doc_name": c.Metadata.DocName,
			"index":    fmt.Sprintf("%d", c.ChunkIndex),
		})
		pipe.SAdd(ctx, "ft:doc:"+c.DocId.String(), id)
		assigned[i] = AssignedID{ChunkId: c.Id, SinkId: id}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, faults.Transient("fulltext store: %v", err)
	}
	return assigned, nil
}

func (s *FullTextSink) DeleteByIds(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = chunkKey(id)
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return faults.Transient("fulltext delete: %v", err)
	}
	return nil
}
