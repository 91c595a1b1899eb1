package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"kb-ingest-be/internal/dto"
	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/internal/pkg/logger"
	"kb-ingest-be/internal/repository/specification"
	"kb-ingest-be/internal/repository/unitofwork"
	"kb-ingest-be/pkg/async"
	"kb-ingest-be/pkg/etl"

	"github.com/google/uuid"
)

type ISyncService interface {
	// SubmitSync creates the document and dispatches its first sync
	// attempt. It returns as soon as the attempt is claimed.
	SubmitSync(ctx context.Context, req *dto.SubmitSyncRequest) (*dto.SubmitSyncResponse, error)

	// CreateDocument persists a document in TODO without dispatching.
	CreateDocument(ctx context.Context, spaceId uuid.UUID, item *dto.BatchImportItem) (*entity.Document, error)

	// SyncDocument claims the document (TODO, FINISHED or FAILED) and
	// runs one full extract/transform/load attempt in the background.
	SyncDocument(ctx context.Context, docId uuid.UUID) (*async.Handle, error)

	// ResyncFailed re-drives a FAILED document through RETRYING. Used by
	// the task queue's retry path.
	ResyncFailed(ctx context.Context, docId uuid.UUID) (*async.Handle, error)

	// SplitAndResync purges the document's chunks from every sink and
	// re-syncs it from scratch with new chunk parameters.
	SplitAndResync(ctx context.Context, docId uuid.UUID, params entity.ChunkParams) (*async.Handle, error)

	GetDocumentStatus(ctx context.Context, docId uuid.UUID) (*dto.DocumentStatusResponse, error)

	// AttemptHandle exposes the in-flight attempt for a document, if any.
	AttemptHandle(docId uuid.UUID) (*async.Handle, bool)
}

type syncService struct {
	uowFactory       unitofwork.RepositoryFactory
	pipeline         *etl.Pipeline
	sinkResolver     SinkResolver
	publisherService IPublisherService
	logger           logger.ILogger
	maxChunksOnce    int
	maxThreads       int

	attempts sync.Map // doc id -> *async.Handle
}

func NewSyncService(
	uowFactory unitofwork.RepositoryFactory,
	pipeline *etl.Pipeline,
	sinkResolver SinkResolver,
	publisherService IPublisherService,
	log logger.ILogger,
	maxChunksOnce int,
	maxThreads int,
) ISyncService {
	return &syncService{
		uowFactory:       uowFactory,
		pipeline:         pipeline,
		sinkResolver:     sinkResolver,
		publisherService: publisherService,
		logger:           log,
		maxChunksOnce:    maxChunksOnce,
		maxThreads:       maxThreads,
	}
}

func (s *syncService) SubmitSync(ctx context.Context, req *dto.SubmitSyncRequest) (*dto.SubmitSyncResponse, error) {
	item := dto.BatchImportItem{
		Name:        req.Name,
		DocType:     req.DocType,
		SourceType:  req.SourceType,
		ContentRef:  req.ContentRef,
		ChunkParams: req.ChunkParams,
	}

	doc, err := s.CreateDocument(ctx, req.KnowledgeSpaceId, &item)
	if err != nil {
		return nil, err
	}

	if _, err := s.SyncDocument(ctx, doc.Id); err != nil {
		return nil, err
	}

	return &dto.SubmitSyncResponse{DocId: doc.Id}, nil
}

func (s *syncService) CreateDocument(ctx context.Context, spaceId uuid.UUID, item *dto.BatchImportItem) (*entity.Document, error) {
	sourceType := entity.SourceType(item.SourceType)
	if !sourceType.Valid() {
		return nil, faults.Configuration("unknown source type %q", item.SourceType)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	space, err := uow.KnowledgeSpaceRepository().FindOne(ctx, specification.ByID{ID: spaceId})
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, faults.NotFound("knowledge space %s not found", spaceId)
	}

	doc := &entity.Document{
		Id:               uuid.New(),
		KnowledgeSpaceId: spaceId,
		Name:             item.Name,
		DocType:          item.DocType,
		SourceType:       sourceType,
		ContentRef:       item.ContentRef,
		Status:           entity.DocStatusTodo,
		ChunkParams:      chunkParamsFromDTO(item.ChunkParams),
		CreatedAt:        time.Now(),
	}

	if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *syncService) SyncDocument(ctx context.Context, docId uuid.UUID) (*async.Handle, error) {
	return s.claimAndRun(ctx, docId,
		[]entity.DocumentStatus{entity.DocStatusTodo, entity.DocStatusFinished, entity.DocStatusFailed},
		entity.DocStatusExtracting)
}

func (s *syncService) ResyncFailed(ctx context.Context, docId uuid.UUID) (*async.Handle, error) {
	return s.claimAndRun(ctx, docId,
		[]entity.DocumentStatus{entity.DocStatusFailed},
		entity.DocStatusRetrying)
}

// claimAndRun is the single entry into an attempt. The compare-and-set
// is what guarantees at most one active attempt per document: of any
// number of concurrent callers, exactly one flips the status and the
// rest get a conflict.
func (s *syncService) claimAndRun(ctx context.Context, docId uuid.UUID, from []entity.DocumentStatus, to entity.DocumentStatus) (*async.Handle, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: docId})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, faults.NotFound("document %s not found", docId)
	}

	claimed, err := uow.DocumentRepository().CompareAndSetStatus(ctx, docId, from, to)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, faults.Conflict("document %s has an active sync attempt", docId)
	}

	handle := async.Go(func() error {
		return s.runAttempt(docId)
	})
	s.attempts.Store(docId, handle)
	return handle, nil
}

// runAttempt drives one extract/transform/load pass. It runs detached
// from the submitting request, so it carries its own context.
func (s *syncService) runAttempt(docId uuid.UUID) error {
	ctx := context.Background()
	uow := s.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: docId})
	if err != nil {
		return s.failAttempt(ctx, docId, uuid.Nil, err)
	}
	if doc == nil {
		return faults.NotFound("document %s vanished mid-attempt", docId)
	}
	spaceId := doc.KnowledgeSpaceId

	chunks, err := s.pipeline.Extract(ctx, doc)
	if err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}

	// Replace any chunks left over from a previous attempt before the
	// new set is persisted.
	if err := uow.ChunkRepository().DeleteByDocId(ctx, docId); err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}
	if err := uow.ChunkRepository().CreateBulk(ctx, chunks); err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}

	if err := uow.DocumentRepository().UpdateStatus(ctx, docId, entity.DocStatusRunning,
		fmt.Sprintf("extracted %d chunks", len(chunks))); err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}

	chunks = s.pipeline.Transform(ctx, chunks, etl.TransformOptions{
		ExtractImage: doc.ChunkParams.ExtractImage,
		Summarize:    doc.ChunkParams.Summarize,
	})

	sinks, err := s.sinkResolver.ResolveSinks(ctx, doc.KnowledgeSpaceId)
	if err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}

	result, err := s.pipeline.Load(ctx, chunks, sinks, s.maxChunksOnce, s.maxThreads)
	if err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}

	if err := uow.ChunkRepository().UpdateSinkIds(ctx, chunks); err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}

	var vectorIds []string
	for _, c := range chunks {
		if c.VectorId != "" {
			vectorIds = append(vectorIds, c.VectorId)
		}
	}
	// Re-read before the write so the status message appended above is
	// not lost to a stale full-row update.
	doc, err = uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: docId})
	if err != nil || doc == nil {
		return s.failAttempt(ctx, docId, spaceId, faults.Transient("document %s unreadable after load", docId))
	}
	doc.VectorIds = strings.Join(vectorIds, ",")
	if err := uow.DocumentRepository().Update(ctx, doc); err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}

	message := fmt.Sprintf("loaded %d chunks into %d sink(s)", len(chunks), len(sinks))
	if result.Partial() {
		message += "; partial: " + result.ErrorSummary()
	}
	if err := uow.DocumentRepository().UpdateStatus(ctx, docId, entity.DocStatusFinished, message); err != nil {
		return s.failAttempt(ctx, docId, spaceId, err)
	}

	s.logger.Info("sync", "document synced", map[string]interface{}{
		"doc_id": docId.String(),
		"chunks": len(chunks),
	})
	s.publishOutcome(ctx, docId, doc.KnowledgeSpaceId, entity.DocStatusFinished, len(chunks), message)
	return nil
}

func (s *syncService) failAttempt(ctx context.Context, docId, spaceId uuid.UUID, cause error) error {
	// Fault errors already carry their kind tag; only bare errors need one.
	message := cause.Error()
	if faults.KindOf(cause) == faults.KindUnknown {
		message = fmt.Sprintf("[%s] %v", faults.KindUnknown, cause)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().UpdateStatus(ctx, docId, entity.DocStatusFailed, message); err != nil {
		s.logger.Error("sync", "failed to mark document FAILED", map[string]interface{}{
			"doc_id": docId.String(),
			"error":  err.Error(),
		})
	}

	s.logger.Error("sync", "document sync failed", map[string]interface{}{
		"doc_id": docId.String(),
		"error":  cause.Error(),
	})
	s.publishOutcome(ctx, docId, spaceId, entity.DocStatusFailed, 0, message)
	return cause
}

func (s *syncService) publishOutcome(ctx context.Context, docId, spaceId uuid.UUID, status entity.DocumentStatus, chunkCount int, message string) {
	if s.publisherService == nil || spaceId == uuid.Nil {
		return
	}

	payload, err := json.Marshal(dto.DocumentSyncedMessage{
		DocId:            docId,
		KnowledgeSpaceId: spaceId,
		Status:           string(status),
		ChunkCount:       chunkCount,
		Message:          message,
	})
	if err != nil {
		s.logger.Warn("sync", "failed to marshal outcome message", map[string]interface{}{
			"doc_id": docId.String(),
			"error":  err.Error(),
		})
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn("sync", "failed to publish outcome message", map[string]interface{}{
			"doc_id": docId.String(),
			"error":  err.Error(),
		})
	}
}

func (s *syncService) SplitAndResync(ctx context.Context, docId uuid.UUID, params entity.ChunkParams) (*async.Handle, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: docId})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, faults.NotFound("document %s not found", docId)
	}
	if doc.Status.Active() {
		return nil, faults.Conflict("document %s has an active sync attempt", docId)
	}

	chunks, err := uow.ChunkRepository().FindAll(ctx, specification.ByDocId{DocId: docId})
	if err != nil {
		return nil, err
	}
	s.purgeFromSinks(ctx, doc, chunks)

	if err := uow.ChunkRepository().DeleteByDocId(ctx, docId); err != nil {
		return nil, err
	}

	doc.ChunkParams = params
	doc.Status = entity.DocStatusTodo
	doc.VectorIds = ""
	doc.ResultMessage = ""
	if err := uow.DocumentRepository().Update(ctx, doc); err != nil {
		return nil, err
	}

	return s.SyncDocument(ctx, docId)
}

// purgeFromSinks removes prior sink entries before a resync. Best
// effort: a stale entry is preferable to a blocked resync.
func (s *syncService) purgeFromSinks(ctx context.Context, doc *entity.Document, chunks []*entity.Chunk) {
	sinks, err := s.sinkResolver.ResolveSinks(ctx, doc.KnowledgeSpaceId)
	if err != nil {
		s.logger.Warn("sync", "sink purge skipped", map[string]interface{}{
			"doc_id": doc.Id.String(),
			"error":  err.Error(),
		})
		return
	}

	for _, target := range sinks {
		var ids []string
		for _, c := range chunks {
			switch target.Name() {
			case "fulltext":
				if c.FullTextId != "" {
					ids = append(ids, c.FullTextId)
				}
			default:
				if c.VectorId != "" {
					ids = append(ids, c.VectorId)
				}
			}
		}
		if len(ids) == 0 {
			continue
		}
		if err := target.DeleteByIds(ctx, ids); err != nil {
			s.logger.Warn("sync", "sink purge failed", map[string]interface{}{
				"doc_id": doc.Id.String(),
				"sink":   target.Name(),
				"error":  err.Error(),
			})
		}
	}
}

func (s *syncService) GetDocumentStatus(ctx context.Context, docId uuid.UUID) (*dto.DocumentStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: docId})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, faults.NotFound("document %s not found", docId)
	}

	chunkCount, err := uow.ChunkRepository().Count(ctx, specification.ByDocId{DocId: docId})
	if err != nil {
		return nil, err
	}

	var updatedAt *string
	if doc.UpdatedAt != nil {
		formatted := doc.UpdatedAt.Format(time.RFC3339)
		updatedAt = &formatted
	}

	return &dto.DocumentStatusResponse{
		DocId:         doc.Id,
		Name:          doc.Name,
		Status:        string(doc.Status),
		ResultMessage: doc.ResultMessage,
		ChunkCount:    chunkCount,
		UpdatedAt:     updatedAt,
	}, nil
}

func (s *syncService) AttemptHandle(docId uuid.UUID) (*async.Handle, bool) {
	value, ok := s.attempts.Load(docId)
	if !ok {
		return nil, false
	}
	return value.(*async.Handle), true
}

func chunkParamsFromDTO(p dto.ChunkParamsDTO) entity.ChunkParams {
	strategy := p.Strategy
	if strategy == "" {
		strategy = "char"
	}
	return entity.ChunkParams{
		Strategy:     strategy,
		ChunkSize:    p.ChunkSize,
		Overlap:      p.Overlap,
		ExtractImage: p.ExtractImage,
		Summarize:    p.Summarize,
	}
}
