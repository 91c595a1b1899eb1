package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kb-ingest-be/internal/constant"
	"kb-ingest-be/internal/dto"
	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/internal/pkg/logger"
	"kb-ingest-be/internal/repository/specification"
	"kb-ingest-be/internal/repository/unitofwork"
	"kb-ingest-be/pkg/events"
	pktNats "kb-ingest-be/pkg/nats"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

type IQueueService interface {
	// SubmitBatch registers the batch as import tasks. Small batches are
	// synced inline before returning; large ones are left for PollLoop.
	SubmitBatch(ctx context.Context, req *dto.SubmitBatchRequest) (*dto.SubmitBatchResponse, error)

	GetBatchStatus(ctx context.Context, batchId uuid.UUID) (*dto.BatchStatusResponse, error)

	// ProcessNext claims and advances at most one task. Returns false
	// when the queue holds no work for this host.
	ProcessNext(ctx context.Context) (bool, error)

	// PollLoop drives ProcessNext until the context is cancelled.
	PollLoop(ctx context.Context)
}

type queueService struct {
	uowFactory     unitofwork.RepositoryFactory
	syncService    ISyncService
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
	host           string
}

func NewQueueService(
	uowFactory unitofwork.RepositoryFactory,
	syncService ISyncService,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
	host string,
) IQueueService {
	return &queueService{
		uowFactory:     uowFactory,
		syncService:    syncService,
		eventPublisher: eventPublisher,
		logger:         log,
		host:           host,
	}
}

func (s *queueService) SubmitBatch(ctx context.Context, req *dto.SubmitBatchRequest) (*dto.SubmitBatchResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	space, err := uow.KnowledgeSpaceRepository().FindOne(ctx, specification.ByID{ID: req.KnowledgeSpaceId})
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, faults.NotFound("knowledge space %s not found", req.KnowledgeSpaceId)
	}

	inline := len(req.Requests) < constant.InlineSyncThreshold
	batchId := uuid.New()
	now := time.Now()

	tasks := make([]*entity.ImportTask, len(req.Requests))
	for i, item := range req.Requests {
		task := &entity.ImportTask{
			Id:               uuid.New(),
			BatchId:          batchId,
			KnowledgeSpaceId: req.KnowledgeSpaceId,
			SourceType:       entity.SourceType(item.SourceType),
			ContentRef:       item.ContentRef,
			DocName:          item.Name,
			Status:           entity.TaskStatusTodo,
			CreatedAt:        now,
		}
		if inline {
			// Pre-claimed so other workers' poll loops skip them.
			task.Host = s.host
		}
		tasks[i] = task
	}

	if err := uow.ImportTaskRepository().CreateBulk(ctx, tasks); err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		evt := events.NewBatchSubmittedEvent(batchId.String(), len(tasks))
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("queue", "failed to publish batch event", map[string]interface{}{
				"batch_id": batchId.String(),
				"error":    err.Error(),
			})
		}
	}

	if inline {
		s.runInlineBatch(ctx, req, tasks)
	}

	s.logger.Info("queue", "batch submitted", map[string]interface{}{
		"batch_id": batchId.String(),
		"total":    len(tasks),
		"inline":   inline,
	})
	return &dto.SubmitBatchResponse{BatchId: batchId, Total: len(tasks), Inline: inline}, nil
}

// runInlineBatch fans the tasks out with bounded concurrency and blocks
// until every one of them reaches a terminal status.
func (s *queueService) runInlineBatch(ctx context.Context, req *dto.SubmitBatchRequest, tasks []*entity.ImportTask) {
	pool, err := ants.NewPool(constant.InlineSyncConcurrency)
	if err != nil {
		s.logger.Error("queue", "inline pool init failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, task := range tasks {
		task := task
		item := req.Requests[i]
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			s.runInlineTask(ctx, task, &item)
		})
		if submitErr != nil {
			wg.Done()
			s.logger.Error("queue", "inline submit failed", map[string]interface{}{
				"task_id": task.Id.String(),
				"error":   submitErr.Error(),
			})
		}
	}
	wg.Wait()
}

func (s *queueService) runInlineTask(ctx context.Context, task *entity.ImportTask, item *dto.BatchImportItem) {
	if err := s.startTask(ctx, task, item); err != nil {
		s.logger.Error("queue", "inline task start failed", map[string]interface{}{
			"task_id": task.Id.String(),
			"error":   err.Error(),
		})
		return
	}

	for task.Status == entity.TaskStatusRunning {
		if task.DocId == nil {
			return
		}
		handle, ok := s.syncService.AttemptHandle(*task.DocId)
		if !ok {
			return
		}
		_ = handle.Wait()

		if err := s.checkRunning(ctx, task); err != nil {
			s.logger.Error("queue", "inline task check failed", map[string]interface{}{
				"task_id": task.Id.String(),
				"error":   err.Error(),
			})
			return
		}
	}
}

func (s *queueService) GetBatchStatus(ctx context.Context, batchId uuid.UUID) (*dto.BatchStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	counts, err := uow.ImportTaskRepository().CountByBatch(ctx, batchId)
	if err != nil {
		return nil, err
	}
	if counts.Total == 0 {
		return nil, faults.NotFound("batch %s not found", batchId)
	}

	return &dto.BatchStatusResponse{
		BatchId:   batchId,
		Total:     counts.Total,
		Todo:      counts.Todo,
		Running:   counts.Running,
		Succeeded: counts.Succeeded,
		Failed:    counts.Failed,
		Completed: counts.Succeeded+counts.Failed == counts.Total,
	}, nil
}

func (s *queueService) PollLoop(ctx context.Context) {
	for {
		processed, err := s.ProcessNext(ctx)
		if err != nil {
			s.logger.Error("queue", "poll iteration failed", map[string]interface{}{
				"error": err.Error(),
			})
		}

		interval := constant.QueuePollInterval
		if !processed && err == nil {
			interval = constant.QueueIdleInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (s *queueService) ProcessNext(ctx context.Context) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	task, err := uow.ImportTaskRepository().FindNextPending(ctx, s.host)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	claimed, err := uow.ImportTaskRepository().Claim(ctx, task.Id, s.host)
	if err != nil {
		return false, err
	}
	if !claimed {
		// Lost the claim race to another worker; there may still be work.
		return true, nil
	}
	task.Host = s.host

	switch task.Status {
	case entity.TaskStatusTodo:
		return true, s.startTask(ctx, task, nil)
	case entity.TaskStatusRunning:
		return true, s.checkRunning(ctx, task)
	case entity.TaskStatusFailed:
		return true, s.retryOrClose(ctx, task, "")
	default:
		return true, nil
	}
}

// startTask creates the backing document if needed and dispatches the
// first sync attempt.
func (s *queueService) startTask(ctx context.Context, task *entity.ImportTask, item *dto.BatchImportItem) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if task.DocId == nil {
		if item == nil {
			item = &dto.BatchImportItem{
				Name:       task.DocName,
				SourceType: string(task.SourceType),
				ContentRef: task.ContentRef,
			}
		}
		doc, err := s.syncService.CreateDocument(ctx, task.KnowledgeSpaceId, item)
		if err != nil {
			return s.recordDispatchFailure(ctx, task, err)
		}
		task.DocId = &doc.Id
	}

	if _, err := s.syncService.SyncDocument(ctx, *task.DocId); err != nil {
		if faults.KindOf(err) == faults.KindConflict {
			// An attempt is already in flight; treat the task as running.
			return s.markRunning(ctx, uow, task)
		}
		return s.recordDispatchFailure(ctx, task, err)
	}

	return s.markRunning(ctx, uow, task)
}

func (s *queueService) markRunning(ctx context.Context, uow unitofwork.UnitOfWork, task *entity.ImportTask) error {
	now := time.Now()
	task.Status = entity.TaskStatusRunning
	task.StartTime = &now
	return uow.ImportTaskRepository().Update(ctx, task)
}

func (s *queueService) recordDispatchFailure(ctx context.Context, task *entity.ImportTask, cause error) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	task.Status = entity.TaskStatusFailed
	appendTaskError(task, faultMessage(cause))
	return uow.ImportTaskRepository().Update(ctx, task)
}

// checkRunning advances a RUNNING task: times it out, or settles it
// from the backing document's terminal status.
func (s *queueService) checkRunning(ctx context.Context, task *entity.ImportTask) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if task.StartTime != nil && time.Since(*task.StartTime) > constant.TaskTimeout {
		now := time.Now()
		task.Status = entity.TaskStatusFinished
		task.EndTime = &now
		appendTaskError(task, fmt.Sprintf("[%s] task exceeded %s", faults.KindTimeout, constant.TaskTimeout))
		return uow.ImportTaskRepository().Update(ctx, task)
	}

	if task.DocId == nil {
		return s.retryOrClose(ctx, task, "task has no backing document")
	}

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: *task.DocId})
	if err != nil {
		return err
	}
	if doc == nil {
		return s.retryOrClose(ctx, task, "backing document deleted")
	}

	switch doc.Status {
	case entity.DocStatusFinished:
		now := time.Now()
		task.Status = entity.TaskStatusSucceed
		task.EndTime = &now
		return uow.ImportTaskRepository().Update(ctx, task)
	case entity.DocStatusFailed:
		return s.retryOrClose(ctx, task, doc.ResultMessage)
	case entity.DocStatusTodo:
		// The dispatched attempt never claimed the document; re-drive it
		// against the retry budget.
		return s.retryOrClose(ctx, task, "sync attempt never started")
	default:
		// Attempt still in flight.
		return nil
	}
}

// retryOrClose either spends one retry re-driving the failed document
// or closes the task out once the budget is gone.
func (s *queueService) retryOrClose(ctx context.Context, task *entity.ImportTask, cause string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if cause != "" {
		appendTaskError(task, cause)
	}

	if task.RetryTimes >= constant.MaxTaskRetries || task.DocId == nil {
		now := time.Now()
		task.Status = entity.TaskStatusFinished
		task.EndTime = &now
		appendTaskError(task, "retry budget exhausted")
		return uow.ImportTaskRepository().Update(ctx, task)
	}

	task.RetryTimes++
	if err := s.redispatch(ctx, *task.DocId); err != nil {
		if faults.KindOf(err) == faults.KindConflict {
			return s.markRunning(ctx, uow, task)
		}
		task.Status = entity.TaskStatusFailed
		appendTaskError(task, faultMessage(err))
		return uow.ImportTaskRepository().Update(ctx, task)
	}

	s.logger.Info("queue", "task retried", map[string]interface{}{
		"task_id": task.Id.String(),
		"attempt": task.RetryTimes,
	})
	return s.markRunning(ctx, uow, task)
}

// redispatch re-drives the task's document. FAILED documents go through
// the retry claim; a document still in TODO is dispatched from scratch.
func (s *queueService) redispatch(ctx context.Context, docId uuid.UUID) error {
	_, err := s.syncService.ResyncFailed(ctx, docId)
	if err == nil || faults.KindOf(err) != faults.KindConflict {
		return err
	}
	_, err = s.syncService.SyncDocument(ctx, docId)
	return err
}

// faultMessage renders an error with its kind tag exactly once.
func faultMessage(err error) string {
	if faults.KindOf(err) == faults.KindUnknown {
		return fmt.Sprintf("[%s] %v", faults.KindUnknown, err)
	}
	return err.Error()
}

func appendTaskError(task *entity.ImportTask, msg string) {
	if msg == "" {
		return
	}
	if task.ErrorMsg == "" {
		task.ErrorMsg = msg
		return
	}
	task.ErrorMsg += "\n" + msg
}
