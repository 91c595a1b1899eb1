package etl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/internal/pkg/logger"
	"kb-ingest-be/pkg/extractor"
	"kb-ingest-be/pkg/loader"
	"kb-ingest-be/pkg/sink"
	"kb-ingest-be/pkg/splitter"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultImageBatchSize bounds how many image chunks are described
	// per extraction round.
	DefaultImageBatchSize = 5
	// DefaultMaxChunksOnce caps chunks per in-flight sink batch.
	DefaultMaxChunksOnce = 10
	// DefaultMaxThreads bounds the load-stage worker pool.
	DefaultMaxThreads = 4
)

// TransformOptions selects which enrichment steps run.
type TransformOptions struct {
	ExtractImage   bool
	Summarize      bool
	ImageBatchSize int
}

// LoadResult reports what each sink did with the chunk batch. The first
// sink is primary; its failure fails the load, while secondary sink
// failures are recorded and surfaced in the result message.
type LoadResult struct {
	SinkErrors map[string]string
}

func (r *LoadResult) Partial() bool {
	return len(r.SinkErrors) > 0
}

func (r *LoadResult) ErrorSummary() string {
	if len(r.SinkErrors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.SinkErrors))
	for name, msg := range r.SinkErrors {
		parts = append(parts, fmt.Sprintf("sink %s: %s", name, msg))
	}
	return strings.Join(parts, "; ")
}

// Pipeline is the extract -> transform -> load flow for one document.
type Pipeline struct {
	loader           loader.KnowledgeLoader
	strategies       *splitter.Registry
	imageExtractor   extractor.ImageExtractor
	summaryExtractor extractor.SummaryExtractor
	logger           logger.ILogger
}

func NewPipeline(
	knowledgeLoader loader.KnowledgeLoader,
	strategies *splitter.Registry,
	imageExtractor extractor.ImageExtractor,
	summaryExtractor extractor.SummaryExtractor,
	log logger.ILogger,
) *Pipeline {
	return &Pipeline{
		loader:           knowledgeLoader,
		strategies:       strategies,
		imageExtractor:   imageExtractor,
		summaryExtractor: summaryExtractor,
		logger:           log,
	}
}

// Extract loads the document's raw content and splits it into chunks.
// Every chunk is stamped with its own ID and inherits the document's
// metadata plus creation/modification timestamps.
func (p *Pipeline) Extract(ctx context.Context, doc *entity.Document) ([]*entity.Chunk, error) {
	strategy, err := p.strategies.Resolve(doc.ChunkParams.Strategy)
	if err != nil {
		return nil, faults.Wrap(faults.KindConfiguration, err)
	}

	content, err := p.loader.Load(ctx, doc)
	if err != nil {
		return nil, err
	}

	pieces, err := strategy.Split(content, doc.ChunkParams)
	if err != nil {
		return nil, faults.Wrap(faults.KindConfiguration, err)
	}

	now := time.Now()
	meta := entity.ChunkMetadata{
		DocId:            doc.Id,
		KnowledgeSpaceId: doc.KnowledgeSpaceId,
		DocName:          doc.Name,
		DocType:          doc.DocType,
		CreatedAt:        now,
		ModifiedAt:       now,
	}

	chunks := make([]*entity.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &entity.Chunk{
			Id:               uuid.New(),
			DocId:            doc.Id,
			KnowledgeSpaceId: doc.KnowledgeSpaceId,
			ChunkIndex:       i,
			Content:          piece,
			Metadata:         meta,
			CreatedAt:        now,
		}
	}

	p.logger.Info("etl", "document extracted", map[string]interface{}{
		"doc_id": doc.Id.String(),
		"chunks": len(chunks),
	})
	return chunks, nil
}

// Transform enriches chunks in place. Image chunks are described in
// fixed-size batches with bounded fan-out; a single chunk's extraction
// failure is logged and skipped, never fatal. Summaries run
// sequentially per chunk.
func (p *Pipeline) Transform(ctx context.Context, chunks []*entity.Chunk, opts TransformOptions) []*entity.Chunk {
	if opts.ExtractImage && p.imageExtractor != nil {
		p.transformImages(ctx, chunks, opts)
	}

	if opts.Summarize && p.summaryExtractor != nil {
		for _, c := range chunks {
			summary, err := p.summaryExtractor.ExtractSummary(ctx, c.Content)
			if err != nil {
				p.logger.Warn("etl", "summary extraction failed, chunk skipped", map[string]interface{}{
					"chunk_id": c.Id.String(),
					"error":    err.Error(),
				})
				continue
			}
			c.Summary = summary
		}
	}

	return chunks
}

func (p *Pipeline) transformImages(ctx context.Context, chunks []*entity.Chunk, opts TransformOptions) {
	batchSize := opts.ImageBatchSize
	if batchSize <= 0 {
		batchSize = DefaultImageBatchSize
	}

	var imageChunks []*entity.Chunk
	for _, c := range chunks {
		if c.IsImage() {
			imageChunks = append(imageChunks, c)
		}
	}
	if len(imageChunks) == 0 {
		return
	}

	pool, err := ants.NewPool(batchSize)
	if err != nil {
		p.logger.Error("etl", "image extraction pool init failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer pool.Release()

	for start := 0; start < len(imageChunks); start += batchSize {
		end := start + batchSize
		if end > len(imageChunks) {
			end = len(imageChunks)
		}

		var wg sync.WaitGroup
		for _, c := range imageChunks[start:end] {
			c := c
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				text, err := p.imageExtractor.ExtractImage(ctx, c.Content, c.Metadata.DocName)
				if err != nil {
					// Isolated failure: log and keep the original content.
					p.logger.Warn("etl", "image extraction failed, chunk skipped", map[string]interface{}{
						"chunk_id": c.Id.String(),
						"error":    err.Error(),
					})
					return
				}
				c.Content = text
			})
			if submitErr != nil {
				wg.Done()
				p.logger.Warn("etl", "image extraction submit failed", map[string]interface{}{
					"chunk_id": c.Id.String(),
					"error":    submitErr.Error(),
				})
			}
		}
		wg.Wait()
	}
}

// Load fans the chunks out to every sink with bounded batch size and
// worker count. Sink-assigned IDs are written back onto the chunks.
func (p *Pipeline) Load(ctx context.Context, chunks []*entity.Chunk, sinks []sink.Sink, maxChunksOnce, maxThreads int) (*LoadResult, error) {
	if len(sinks) == 0 {
		return nil, faults.Configuration("no sinks configured")
	}
	if maxChunksOnce <= 0 {
		maxChunksOnce = DefaultMaxChunksOnce
	}
	if maxThreads <= 0 {
		maxThreads = DefaultMaxThreads
	}

	result := &LoadResult{SinkErrors: make(map[string]string)}

	byId := make(map[uuid.UUID]*entity.Chunk, len(chunks))
	for _, c := range chunks {
		byId[c.Id] = c
	}

	for sinkIdx, target := range sinks {
		assigned, err := p.loadIntoSink(ctx, chunks, target, maxChunksOnce, maxThreads)
		if err != nil {
			if sinkIdx == 0 {
				// Primary sink failure fails the document.
				return nil, err
			}
			p.logger.Error("etl", "secondary sink load failed", map[string]interface{}{
				"sink":  target.Name(),
				"error": err.Error(),
			})
			result.SinkErrors[target.Name()] = err.Error()
			continue
		}

		for _, a := range assigned {
			c, ok := byId[a.ChunkId]
			if !ok {
				continue
			}
			switch target.Name() {
			case "fulltext":
				c.FullTextId = a.SinkId
			default:
				c.VectorId = a.SinkId
			}
		}
	}

	return result, nil
}

func (p *Pipeline) loadIntoSink(ctx context.Context, chunks []*entity.Chunk, target sink.Sink, maxChunksOnce, maxThreads int) ([]sink.AssignedID, error) {
	pool, err := ants.NewPool(maxThreads)
	if err != nil {
		return nil, faults.Transient("load pool init: %v", err)
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		assigned []sink.AssignedID
		firstErr error
	)

	for start := 0; start < len(chunks); start += maxChunksOnce {
		end := start + maxChunksOnce
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			ids, err := target.LoadChunks(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			assigned = append(assigned, ids...)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return assigned, nil
}
