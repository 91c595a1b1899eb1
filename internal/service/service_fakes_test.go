package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/repository/contract"
	"kb-ingest-be/internal/repository/specification"
	"kb-ingest-be/internal/repository/unitofwork"
	"kb-ingest-be/pkg/etl"
	"kb-ingest-be/pkg/sink"
	"kb-ingest-be/pkg/splitter"

	"github.com/google/uuid"
)

// ----- logger -----

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

// ----- in-memory store -----

type memStore struct {
	mu      sync.Mutex
	spaces  map[uuid.UUID]*entity.KnowledgeSpace
	docs    map[uuid.UUID]*entity.Document
	chunks  map[uuid.UUID]*entity.Chunk
	tasks   map[uuid.UUID]*entity.ImportTask
	records map[uuid.UUID]*entity.RefreshRecord

	taskOrder   []uuid.UUID
	recordOrder []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		spaces:  make(map[uuid.UUID]*entity.KnowledgeSpace),
		docs:    make(map[uuid.UUID]*entity.Document),
		chunks:  make(map[uuid.UUID]*entity.Chunk),
		tasks:   make(map[uuid.UUID]*entity.ImportTask),
		records: make(map[uuid.UUID]*entity.RefreshRecord),
	}
}

type memFactory struct {
	store *memStore
}

func (f *memFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUow{store: f.store}
}

type memUow struct {
	store *memStore
}

func (u *memUow) Begin(ctx context.Context) error { return nil }
func (u *memUow) Commit() error                   { return nil }
func (u *memUow) Rollback() error                 { return nil }

func (u *memUow) KnowledgeSpaceRepository() contract.KnowledgeSpaceRepository {
	return &memSpaceRepo{store: u.store}
}
func (u *memUow) DocumentRepository() contract.DocumentRepository {
	return &memDocRepo{store: u.store}
}
func (u *memUow) ChunkRepository() contract.ChunkRepository {
	return &memChunkRepo{store: u.store}
}
func (u *memUow) ImportTaskRepository() contract.ImportTaskRepository {
	return &memTaskRepo{store: u.store}
}
func (u *memUow) RefreshRecordRepository() contract.RefreshRecordRepository {
	return &memRecordRepo{store: u.store}
}

// ----- spec matching -----

func spaceMatches(s *entity.KnowledgeSpace, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch v := sp.(type) {
		case specification.ByID:
			if s.Id != v.ID {
				return false
			}
		case specification.FilterBy:
			if v.Field == "refresh" && s.Refresh != v.Value.(bool) {
				return false
			}
		}
	}
	return true
}

func docMatches(d *entity.Document, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch v := sp.(type) {
		case specification.ByID:
			if d.Id != v.ID {
				return false
			}
		case specification.BySpaceId:
			if d.KnowledgeSpaceId != v.SpaceId {
				return false
			}
		case specification.FilterBy:
			if v.Field == "source_type" && string(d.SourceType) != v.Value.(string) {
				return false
			}
		}
	}
	return true
}

func chunkMatches(c *entity.Chunk, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch v := sp.(type) {
		case specification.ByID:
			if c.Id != v.ID {
				return false
			}
		case specification.ByDocId:
			if c.DocId != v.DocId {
				return false
			}
		case specification.BySpaceId:
			if c.KnowledgeSpaceId != v.SpaceId {
				return false
			}
		}
	}
	return true
}

func taskMatches(t *entity.ImportTask, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch v := sp.(type) {
		case specification.ByID:
			if t.Id != v.ID {
				return false
			}
		case specification.ByBatchId:
			if t.BatchId != v.BatchId {
				return false
			}
		case specification.ByStatus:
			if string(t.Status) != v.Status {
				return false
			}
		}
	}
	return true
}

func recordMatches(r *entity.RefreshRecord, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch v := sp.(type) {
		case specification.ByID:
			if r.Id != v.ID {
				return false
			}
		case specification.BySpaceId:
			if r.KnowledgeSpaceId != v.SpaceId {
				return false
			}
		case specification.ByRefreshDate:
			if r.RefreshDate != v.Date {
				return false
			}
		case specification.ByStatus:
			if string(r.Status) != v.Status {
				return false
			}
		}
	}
	return true
}

// ----- space repo -----

type memSpaceRepo struct {
	store *memStore
}

func (r *memSpaceRepo) Create(ctx context.Context, space *entity.KnowledgeSpace) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *space
	r.store.spaces[space.Id] = &cp
	return nil
}

func (r *memSpaceRepo) Update(ctx context.Context, space *entity.KnowledgeSpace) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *space
	r.store.spaces[space.Id] = &cp
	return nil
}

func (r *memSpaceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.spaces, id)
	return nil
}

func (r *memSpaceRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.KnowledgeSpace, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.spaces {
		if spaceMatches(s, specs) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSpaceRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeSpace, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.KnowledgeSpace
	for _, s := range r.store.spaces {
		if spaceMatches(s, specs) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSpaceRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func (r *memSpaceRepo) RecordSync(ctx context.Context, id uuid.UUID, delta int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.spaces[id]
	if !ok {
		return fmt.Errorf("space %s not found", id)
	}
	s.DocCount += delta
	now := time.Now()
	s.LastSyncedAt = &now
	return nil
}

// ----- document repo -----

type memDocRepo struct {
	store *memStore
}

func (r *memDocRepo) Create(ctx context.Context, doc *entity.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *doc
	r.store.docs[doc.Id] = &cp
	return nil
}

func (r *memDocRepo) Update(ctx context.Context, doc *entity.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *doc
	now := time.Now()
	cp.UpdatedAt = &now
	r.store.docs[doc.Id] = &cp
	return nil
}

func (r *memDocRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.docs, id)
	return nil
}

func (r *memDocRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, d := range r.store.docs {
		if docMatches(d, specs) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDocRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Document
	for _, d := range r.store.docs {
		if docMatches(d, specs) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memDocRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func (r *memDocRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DocumentStatus, resultMessage string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}
	d.Status = status
	if resultMessage != "" {
		if d.ResultMessage == "" {
			d.ResultMessage = resultMessage
		} else {
			d.ResultMessage += "\n" + resultMessage
		}
	}
	now := time.Now()
	d.UpdatedAt = &now
	return nil
}

func (r *memDocRepo) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected []entity.DocumentStatus, next entity.DocumentStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.docs[id]
	if !ok {
		return false, nil
	}
	for _, e := range expected {
		if d.Status == e {
			d.Status = next
			return true, nil
		}
	}
	return false, nil
}

// ----- chunk repo -----

type memChunkRepo struct {
	store *memStore
}

func (r *memChunkRepo) CreateBulk(ctx context.Context, chunks []*entity.Chunk) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range chunks {
		cp := *c
		r.store.chunks[c.Id] = &cp
	}
	return nil
}

func (r *memChunkRepo) Update(ctx context.Context, chunk *entity.Chunk) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *chunk
	r.store.chunks[chunk.Id] = &cp
	return nil
}

func (r *memChunkRepo) UpdateSinkIds(ctx context.Context, chunks []*entity.Chunk) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range chunks {
		if stored, ok := r.store.chunks[c.Id]; ok {
			stored.VectorId = c.VectorId
			stored.FullTextId = c.FullTextId
			stored.Content = c.Content
			stored.Summary = c.Summary
		}
	}
	return nil
}

func (r *memChunkRepo) DeleteByDocId(ctx context.Context, docId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, c := range r.store.chunks {
		if c.DocId == docId {
			delete(r.store.chunks, id)
		}
	}
	return nil
}

func (r *memChunkRepo) DeleteBySpaceId(ctx context.Context, spaceId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, c := range r.store.chunks {
		if c.KnowledgeSpaceId == spaceId {
			delete(r.store.chunks, id)
		}
	}
	return nil
}

func (r *memChunkRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chunk, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range r.store.chunks {
		if chunkMatches(c, specs) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memChunkRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Chunk
	for _, c := range r.store.chunks {
		if chunkMatches(c, specs) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memChunkRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

// ----- import task repo -----

type memTaskRepo struct {
	store *memStore
}

func (r *memTaskRepo) CreateBulk(ctx context.Context, tasks []*entity.ImportTask) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, t := range tasks {
		cp := *t
		r.store.tasks[t.Id] = &cp
		r.store.taskOrder = append(r.store.taskOrder, t.Id)
	}
	return nil
}

func (r *memTaskRepo) Update(ctx context.Context, task *entity.ImportTask) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *task
	r.store.tasks[task.Id] = &cp
	return nil
}

func (r *memTaskRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ImportTask, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.taskOrder {
		t := r.store.tasks[id]
		if t != nil && taskMatches(t, specs) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memTaskRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ImportTask, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.ImportTask
	for _, id := range r.store.taskOrder {
		t := r.store.tasks[id]
		if t != nil && taskMatches(t, specs) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTaskRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func (r *memTaskRepo) FindNextPending(ctx context.Context, host string) (*entity.ImportTask, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.taskOrder {
		t := r.store.tasks[id]
		if t == nil || t.Status.Terminal() {
			continue
		}
		if t.Host != "" && t.Host != host {
			continue
		}
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *memTaskRepo) Claim(ctx context.Context, id uuid.UUID, host string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tasks[id]
	if !ok {
		return false, nil
	}
	if t.Host != "" && t.Host != host {
		return false, nil
	}
	t.Host = host
	return true, nil
}

func (r *memTaskRepo) CountByBatch(ctx context.Context, batchId uuid.UUID) (*contract.BatchCounts, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	counts := &contract.BatchCounts{}
	for _, t := range r.store.tasks {
		if t.BatchId != batchId {
			continue
		}
		counts.Total++
		switch t.Status {
		case entity.TaskStatusTodo:
			counts.Todo++
		case entity.TaskStatusRunning, entity.TaskStatusFailed:
			counts.Running++
		case entity.TaskStatusSucceed:
			counts.Succeeded++
		case entity.TaskStatusFinished:
			counts.Failed++
		}
	}
	return counts, nil
}

// ----- refresh record repo -----

type memRecordRepo struct {
	store *memStore
}

func (r *memRecordRepo) Create(ctx context.Context, record *entity.RefreshRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *record
	r.store.records[record.Id] = &cp
	r.store.recordOrder = append(r.store.recordOrder, record.Id)
	return nil
}

func (r *memRecordRepo) Update(ctx context.Context, record *entity.RefreshRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *record
	r.store.records[record.Id] = &cp
	return nil
}

func (r *memRecordRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RefreshRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.recordOrder {
		rec := r.store.records[id]
		if rec != nil && recordMatches(rec, specs) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRecordRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RefreshRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.RefreshRecord
	for _, id := range r.store.recordOrder {
		rec := r.store.records[id]
		if rec != nil && recordMatches(rec, specs) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRecordRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func (r *memRecordRepo) ExistsForDay(ctx context.Context, spaceId uuid.UUID, date string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range r.store.records {
		if rec.KnowledgeSpaceId == spaceId && rec.RefreshDate == date {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRecordRepo) FindNextPending(ctx context.Context, host string) (*entity.RefreshRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.recordOrder {
		rec := r.store.records[id]
		if rec == nil {
			continue
		}
		if rec.Status == entity.RefreshStatusTodo ||
			(rec.Status == entity.RefreshStatusRunning && rec.Host == host) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRecordRepo) Claim(ctx context.Context, id uuid.UUID, host string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.records[id]
	if !ok {
		return false, nil
	}
	if rec.Status != entity.RefreshStatusTodo &&
		!(rec.Status == entity.RefreshStatusRunning && rec.Host == host) {
		return false, nil
	}
	rec.Status = entity.RefreshStatusRunning
	rec.Host = host
	return true, nil
}

func (r *memRecordRepo) CountNonTerminal(ctx context.Context) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for _, rec := range r.store.records {
		if !rec.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

// ----- ETL fakes -----

type stubLoader struct {
	mu      sync.Mutex
	content map[string]string
	err     error
	gate    chan struct{} // when set, Load blocks until it is closed
	calls   int
}

func (l *stubLoader) Load(ctx context.Context, doc *entity.Document) (string, error) {
	l.mu.Lock()
	gate := l.gate
	l.calls++
	err := l.err
	content, ok := l.content[doc.ContentRef]
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	if ok {
		return content, nil
	}
	return "default content for " + doc.Name, nil
}

func (l *stubLoader) loadCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type memorySink struct {
	name    string
	mu      sync.Mutex
	err     error
	loaded  map[string]string // sink id -> content
	deleted []string
}

func newMemorySink(name string) *memorySink {
	return &memorySink{name: name, loaded: make(map[string]string)}
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) LoadChunks(ctx context.Context, chunks []*entity.Chunk) ([]sink.AssignedID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]sink.AssignedID, len(chunks))
	for i, c := range chunks {
		id := fmt.Sprintf("%s-%s", s.name, c.Id)
		s.loaded[id] = c.Content
		out[i] = sink.AssignedID{ChunkId: c.Id, SinkId: id}
	}
	return out, nil
}

func (s *memorySink) DeleteByIds(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.loaded, id)
		s.deleted = append(s.deleted, id)
	}
	return nil
}

func (s *memorySink) deletedIds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type staticResolver struct {
	sinks []sink.Sink
}

func (r *staticResolver) ResolveSinks(ctx context.Context, spaceId uuid.UUID) ([]sink.Sink, error) {
	return r.sinks, nil
}

func (r *staticResolver) InvalidateSinks(spaceId uuid.UUID) {}

type stubVersions struct {
	mu       sync.Mutex
	versions map[string]string
	err      error
}

func (v *stubVersions) GetVersion(ctx context.Context, ref string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return "", v.err
	}
	return v.versions[ref], nil
}

// ----- environment -----

type testEnv struct {
	store    *memStore
	factory  unitofwork.RepositoryFactory
	loader   *stubLoader
	vector   *memorySink
	versions *stubVersions

	syncService    ISyncService
	queueService   IQueueService
	refreshService IRefreshService
}

func newTestEnv() *testEnv {
	store := newMemStore()
	factory := &memFactory{store: store}
	loader := &stubLoader{content: make(map[string]string)}
	vector := newMemorySink("vector")
	versions := &stubVersions{versions: make(map[string]string)}

	pipeline := etl.NewPipeline(loader, splitter.NewRegistry(), nil, nil, nopLogger{})
	resolver := &staticResolver{sinks: []sink.Sink{vector}}

	syncService := NewSyncService(factory, pipeline, resolver, nil, nopLogger{}, 10, 4)
	queueService := NewQueueService(factory, syncService, nil, nopLogger{}, "host-a")
	refreshService := NewRefreshService(factory, syncService, versions, nil, nopLogger{}, "host-a", 3)

	return &testEnv{
		store:          store,
		factory:        factory,
		loader:         loader,
		vector:         vector,
		versions:       versions,
		syncService:    syncService,
		queueService:   queueService,
		refreshService: refreshService,
	}
}

func (e *testEnv) addSpace(refresh bool) *entity.KnowledgeSpace {
	space := &entity.KnowledgeSpace{
		Id:             uuid.New(),
		Name:           "space-" + uuid.NewString()[:8],
		StorageBackend: entity.BackendVector,
		Refresh:        refresh,
		CreatedAt:      time.Now(),
	}
	e.store.mu.Lock()
	e.store.spaces[space.Id] = space
	e.store.mu.Unlock()
	return space
}

func (e *testEnv) getDoc(id uuid.UUID) *entity.Document {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	d, ok := e.store.docs[id]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

func (e *testEnv) getTask(id uuid.UUID) *entity.ImportTask {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	t, ok := e.store.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (e *testEnv) docChunks(docId uuid.UUID) []*entity.Chunk {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	var out []*entity.Chunk
	for _, c := range e.store.chunks {
		if c.DocId == docId {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

func (e *testEnv) waitForDoc(docId uuid.UUID) error {
	h, ok := e.syncService.AttemptHandle(docId)
	if !ok {
		return nil
	}
	return h.Wait()
}
