package service

import (
	"context"
	"fmt"
	"strings"
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
)

// ExternalVersionProvider reports the current upstream version of an
// externally sourced document.
type ExternalVersionProvider interface {
	GetVersion(ctx context.Context, ref string) (string, error)
}

type IRefreshService interface {
	// InitDailyRefreshRecords creates today's TODO record for every
	// refresh-enabled space that does not have one yet. Safe to call
	// repeatedly within the same day.
	InitDailyRefreshRecords(ctx context.Context) error

	// ProcessNextRecord claims and processes at most one pending record.
	// Returns false when nothing is pending.
	ProcessNextRecord(ctx context.Context) (bool, error)

	// DrainPending processes records until none are left non-terminal or
	// the context is cancelled.
	DrainPending(ctx context.Context)

	// RunDaily blocks, waking at the configured hour to initialize and
	// drain that day's records.
	RunDaily(ctx context.Context)

	// TriggerSpaceRefresh runs one space's refresh on demand, reusing
	// today's record when it already exists.
	TriggerSpaceRefresh(ctx context.Context, spaceId uuid.UUID) (*dto.TriggerRefreshResponse, error)
}

type refreshService struct {
	uowFactory     unitofwork.RepositoryFactory
	syncService    ISyncService
	versions       ExternalVersionProvider
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
	host           string
	refreshHour    int
}

func NewRefreshService(
	uowFactory unitofwork.RepositoryFactory,
	syncService ISyncService,
	versions ExternalVersionProvider,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
	host string,
	refreshHour int,
) IRefreshService {
	return &refreshService{
		uowFactory:     uowFactory,
		syncService:    syncService,
		versions:       versions,
		eventPublisher: eventPublisher,
		logger:         log,
		host:           host,
		refreshHour:    refreshHour,
	}
}

func (s *refreshService) InitDailyRefreshRecords(ctx context.Context) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	date := currentRefreshDate(time.Now(), s.refreshHour)

	spaces, err := uow.KnowledgeSpaceRepository().FindAll(ctx, specification.Filter("refresh", true))
	if err != nil {
		return err
	}

	created := 0
	for _, space := range spaces {
		exists, err := uow.RefreshRecordRepository().ExistsForDay(ctx, space.Id, date)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		record := &entity.RefreshRecord{
			Id:               uuid.New(),
			KnowledgeSpaceId: space.Id,
			RefreshDate:      date,
			Status:           entity.RefreshStatusTodo,
			CreatedAt:        time.Now(),
		}
		if err := uow.RefreshRecordRepository().Create(ctx, record); err != nil {
			return err
		}
		created++
	}

	s.logger.Info("refresh", "daily refresh records initialized", map[string]interface{}{
		"date":    date,
		"spaces":  len(spaces),
		"created": created,
	})
	return nil
}

func (s *refreshService) ProcessNextRecord(ctx context.Context) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	record, err := uow.RefreshRecordRepository().FindNextPending(ctx, s.host)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	claimed, err := uow.RefreshRecordRepository().Claim(ctx, record.Id, s.host)
	if err != nil {
		return false, err
	}
	if !claimed {
		return true, nil
	}
	record.Status = entity.RefreshStatusRunning
	record.Host = s.host

	return true, s.processRecord(ctx, record)
}

// processRecord refreshes every external document in the record's
// space, skipping documents whose upstream version has not moved.
func (s *refreshService) processRecord(ctx context.Context, record *entity.RefreshRecord) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	docs, err := uow.DocumentRepository().FindAll(ctx,
		specification.BySpaceId{SpaceId: record.KnowledgeSpaceId},
		specification.Filter("source_type", string(entity.SourceExternalURL)),
	)
	if err != nil {
		return s.closeRecord(ctx, record, entity.RefreshStatusFinished, 0, []string{err.Error()})
	}

	var (
		refreshed int
		skipped   int
		failures  []string
	)

	for _, doc := range docs {
		version, err := s.versions.GetVersion(ctx, doc.ContentRef)
		if err != nil {
			failures = append(failures, fmt.Sprintf("doc %s: version check: %v", doc.Id, err))
			continue
		}
		if doc.VersionMarker != "" && doc.VersionMarker == version {
			skipped++
			continue
		}

		handle, err := s.syncService.SplitAndResync(ctx, doc.Id, doc.ChunkParams)
		if err != nil {
			failures = append(failures, fmt.Sprintf("doc %s: %v", doc.Id, err))
			continue
		}
		if err := handle.Wait(); err != nil {
			failures = append(failures, fmt.Sprintf("doc %s: %v", doc.Id, err))
			continue
		}

		if err := s.stampVersion(ctx, doc.Id, version); err != nil {
			failures = append(failures, fmt.Sprintf("doc %s: stamp version: %v", doc.Id, err))
			continue
		}
		refreshed++
	}

	attempted := refreshed + len(failures)
	status := entity.RefreshStatusSucceed
	if attempted > 0 && refreshed == 0 {
		status = entity.RefreshStatusFinished
	}

	s.logger.Info("refresh", "space refresh processed", map[string]interface{}{
		"space_id":  record.KnowledgeSpaceId.String(),
		"refreshed": refreshed,
		"skipped":   skipped,
		"failed":    len(failures),
	})
	return s.closeRecord(ctx, record, status, refreshed, failures)
}

func (s *refreshService) stampVersion(ctx context.Context, docId uuid.UUID, version string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: docId})
	if err != nil {
		return err
	}
	if doc == nil {
		return faults.NotFound("document %s not found", docId)
	}

	doc.VersionMarker = version
	return uow.DocumentRepository().Update(ctx, doc)
}

func (s *refreshService) closeRecord(ctx context.Context, record *entity.RefreshRecord, status entity.RefreshStatus, refreshed int, failures []string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	record.Status = status
	record.ErrorMsg = strings.Join(failures, "\n")
	if err := uow.RefreshRecordRepository().Update(ctx, record); err != nil {
		return err
	}

	if s.eventPublisher != nil {
		evt := events.NewSpaceRefreshedEvent(record.KnowledgeSpaceId.String(), string(status), refreshed)
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("refresh", "failed to publish refresh event", map[string]interface{}{
				"space_id": record.KnowledgeSpaceId.String(),
				"error":    err.Error(),
			})
		}
	}
	return nil
}

func (s *refreshService) DrainPending(ctx context.Context) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	for {
		processed, err := s.ProcessNextRecord(ctx)
		if err != nil {
			s.logger.Error("refresh", "refresh record failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if processed {
			continue
		}

		remaining, err := uow.RefreshRecordRepository().CountNonTerminal(ctx)
		if err != nil {
			s.logger.Error("refresh", "failed to count pending records", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		if remaining == 0 {
			return
		}

		// Other hosts hold the remaining records; wait for them to settle.
		select {
		case <-ctx.Done():
			return
		case <-time.After(constant.RefreshDrainInterval):
		}
	}
}

func (s *refreshService) RunDaily(ctx context.Context) {
	for {
		next := s.nextRunTime(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if err := s.InitDailyRefreshRecords(ctx); err != nil {
			s.logger.Error("refresh", "daily initialization failed", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		s.DrainPending(ctx)
	}
}

func (s *refreshService) TriggerSpaceRefresh(ctx context.Context, spaceId uuid.UUID) (*dto.TriggerRefreshResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	space, err := uow.KnowledgeSpaceRepository().FindOne(ctx, specification.ByID{ID: spaceId})
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, faults.NotFound("knowledge space %s not found", spaceId)
	}

	date := currentRefreshDate(time.Now(), s.refreshHour)
	existing, err := uow.RefreshRecordRepository().FindOne(ctx,
		specification.BySpaceId{SpaceId: spaceId},
		specification.ByRefreshDate{Date: date},
	)
	if err != nil {
		return nil, err
	}

	record := existing
	if record == nil {
		record = &entity.RefreshRecord{
			Id:               uuid.New(),
			KnowledgeSpaceId: spaceId,
			RefreshDate:      date,
			Status:           entity.RefreshStatusTodo,
			CreatedAt:        time.Now(),
		}
		if err := uow.RefreshRecordRepository().Create(ctx, record); err != nil {
			return nil, err
		}
	} else if record.Status.Terminal() {
		return &dto.TriggerRefreshResponse{
			Refreshed: false,
			Detail:    fmt.Sprintf("space already refreshed on %s (%s)", date, record.Status),
		}, nil
	} else if record.Status == entity.RefreshStatusRunning {
		return nil, faults.Conflict("refresh already running for space %s", spaceId)
	}

	claimed, err := uow.RefreshRecordRepository().Claim(ctx, record.Id, s.host)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, faults.Conflict("refresh already claimed for space %s", spaceId)
	}
	record.Status = entity.RefreshStatusRunning
	record.Host = s.host

	if err := s.processRecord(ctx, record); err != nil {
		return nil, err
	}
	return &dto.TriggerRefreshResponse{
		Refreshed: true,
		Detail:    fmt.Sprintf("refresh completed with status %s", record.Status),
	}, nil
}

func (s *refreshService) nextRunTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.refreshHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// currentRefreshDate maps wall clock time to the refresh day. Before
// the refresh hour the previous day is still current, so a late
// initialization does not double-refresh around midnight.
func currentRefreshDate(now time.Time, refreshHour int) string {
	if now.Hour() < refreshHour {
		now = now.AddDate(0, 0, -1)
	}
	return now.Format("2006-01-02")
}
