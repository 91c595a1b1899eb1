package service

import (
	"context"
	"time"

	"kb-ingest-be/internal/dto"
	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/internal/pkg/logger"
	"kb-ingest-be/internal/repository/specification"
	"kb-ingest-be/internal/repository/unitofwork"
	"kb-ingest-be/pkg/sink"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// SinkResolver maps a knowledge space to the ordered sink set its
// chunks load into. The first sink is primary.
type SinkResolver interface {
	ResolveSinks(ctx context.Context, spaceId uuid.UUID) ([]sink.Sink, error)
	InvalidateSinks(spaceId uuid.UUID)
}

type ISpaceService interface {
	SinkResolver

	Create(ctx context.Context, req *dto.CreateSpaceRequest) (*dto.CreateSpaceResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.SpaceResponse, error)
	List(ctx context.Context) ([]*dto.SpaceResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type spaceService struct {
	uowFactory   unitofwork.RepositoryFactory
	vectorSink   sink.Sink
	fullTextSink sink.Sink
	sinkCache    *gocache.Cache
	logger       logger.ILogger
}

func NewSpaceService(
	uowFactory unitofwork.RepositoryFactory,
	vectorSink sink.Sink,
	fullTextSink sink.Sink,
	log logger.ILogger,
) ISpaceService {
	return &spaceService{
		uowFactory:   uowFactory,
		vectorSink:   vectorSink,
		fullTextSink: fullTextSink,
		sinkCache:    gocache.New(30*time.Minute, 10*time.Minute),
		logger:       log,
	}
}

func (s *spaceService) Create(ctx context.Context, req *dto.CreateSpaceRequest) (*dto.CreateSpaceResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	space := entity.KnowledgeSpace{
		Id:             uuid.New(),
		Name:           req.Name,
		StorageBackend: entity.StorageBackend(req.StorageBackend),
		Refresh:        req.Refresh,
		CreatedAt:      time.Now(),
	}

	if err := uow.KnowledgeSpaceRepository().Create(ctx, &space); err != nil {
		return nil, err
	}

	s.logger.Info("space", "knowledge space created", map[string]interface{}{
		"space_id": space.Id.String(),
		"backend":  req.StorageBackend,
	})
	return &dto.CreateSpaceResponse{Id: space.Id}, nil
}

func (s *spaceService) Get(ctx context.Context, id uuid.UUID) (*dto.SpaceResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	space, err := uow.KnowledgeSpaceRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, faults.NotFound("knowledge space %s not found", id)
	}

	return toSpaceResponse(space), nil
}

func (s *spaceService) List(ctx context.Context) ([]*dto.SpaceResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	spaces, err := uow.KnowledgeSpaceRepository().FindAll(ctx, specification.OrderBy{Field: "created_at", Desc: true})
	if err != nil {
		return nil, err
	}

	out := make([]*dto.SpaceResponse, len(spaces))
	for i, space := range spaces {
		out[i] = toSpaceResponse(space)
	}
	return out, nil
}

// Delete removes the space together with its documents, chunks and
// every sink entry the chunks were loaded into.
func (s *spaceService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	space, err := uow.KnowledgeSpaceRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if space == nil {
		return faults.NotFound("knowledge space %s not found", id)
	}

	chunks, err := uow.ChunkRepository().FindAll(ctx, specification.BySpaceId{SpaceId: id})
	if err != nil {
		return err
	}
	s.purgeSinkEntries(ctx, space, chunks)

	docs, err := uow.DocumentRepository().FindAll(ctx, specification.BySpaceId{SpaceId: id})
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChunkRepository().DeleteBySpaceId(ctx, id); err != nil {
		return err
	}
	for _, doc := range docs {
		if err := uow.DocumentRepository().Delete(ctx, doc.Id); err != nil {
			return err
		}
	}
	if err := uow.KnowledgeSpaceRepository().Delete(ctx, id); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	s.InvalidateSinks(id)
	s.logger.Info("space", "knowledge space deleted", map[string]interface{}{
		"space_id": id.String(),
		"docs":     len(docs),
		"chunks":   len(chunks),
	})
	return nil
}

// purgeSinkEntries is best effort. A sink that is already unreachable
// must not block the space deletion; orphaned entries are logged.
func (s *spaceService) purgeSinkEntries(ctx context.Context, space *entity.KnowledgeSpace, chunks []*entity.Chunk) {
	sinks, err := s.sinksFor(space)
	if err != nil {
		s.logger.Warn("space", "sink purge skipped", map[string]interface{}{
			"space_id": space.Id.String(),
			"error":    err.Error(),
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
			s.logger.Warn("space", "sink purge failed", map[string]interface{}{
				"space_id": space.Id.String(),
				"sink":     target.Name(),
				"error":    err.Error(),
			})
		}
	}
}

func (s *spaceService) ResolveSinks(ctx context.Context, spaceId uuid.UUID) ([]sink.Sink, error) {
	if cached, ok := s.sinkCache.Get(spaceId.String()); ok {
		return cached.([]sink.Sink), nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	space, err := uow.KnowledgeSpaceRepository().FindOne(ctx, specification.ByID{ID: spaceId})
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, faults.NotFound("knowledge space %s not found", spaceId)
	}

	sinks, err := s.sinksFor(space)
	if err != nil {
		return nil, err
	}

	s.sinkCache.Set(spaceId.String(), sinks, gocache.DefaultExpiration)
	return sinks, nil
}

func (s *spaceService) InvalidateSinks(spaceId uuid.UUID) {
	s.sinkCache.Delete(spaceId.String())
}

func (s *spaceService) sinksFor(space *entity.KnowledgeSpace) ([]sink.Sink, error) {
	switch space.StorageBackend {
	case entity.BackendVector:
		return []sink.Sink{s.vectorSink}, nil
	case entity.BackendVectorFullText:
		if s.fullTextSink == nil {
			return []sink.Sink{s.vectorSink}, nil
		}
		return []sink.Sink{s.vectorSink, s.fullTextSink}, nil
	default:
		return nil, faults.Configuration("unknown storage backend %q", space.StorageBackend)
	}
}

func toSpaceResponse(space *entity.KnowledgeSpace) *dto.SpaceResponse {
	return &dto.SpaceResponse{
		Id:             space.Id,
		Name:           space.Name,
		StorageBackend: string(space.StorageBackend),
		Refresh:        space.Refresh,
		DocCount:       space.DocCount,
		LastSyncedAt:   space.LastSyncedAt,
		CreatedAt:      space.CreatedAt,
	}
}
