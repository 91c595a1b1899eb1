package service

import (
	"context"
	"testing"
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) addExternalDoc(spaceId uuid.UUID, ref, versionMarker string) *entity.Document {
	doc := &entity.Document{
		Id:               uuid.New(),
		KnowledgeSpaceId: spaceId,
		Name:             "wiki-" + ref,
		SourceType:       entity.SourceExternalURL,
		ContentRef:       ref,
		Status:           entity.DocStatusTodo,
		ChunkParams:      entity.ChunkParams{Strategy: "char", ChunkSize: 100},
		VersionMarker:    versionMarker,
		CreatedAt:        time.Now(),
	}
	e.store.mu.Lock()
	e.store.docs[doc.Id] = doc
	e.store.mu.Unlock()
	return doc
}

func (e *testEnv) recordsForSpace(spaceId uuid.UUID) []*entity.RefreshRecord {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	var out []*entity.RefreshRecord
	for _, id := range e.store.recordOrder {
		r := e.store.records[id]
		if r != nil && r.KnowledgeSpaceId == spaceId {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func TestInitDailyRefreshRecordsIsIdempotent(t *testing.T) {
	env := newTestEnv()
	refreshable := env.addSpace(true)
	other := env.addSpace(true)
	env.addSpace(false) // refresh disabled, never scheduled

	require.NoError(t, env.refreshService.InitDailyRefreshRecords(context.Background()))
	require.NoError(t, env.refreshService.InitDailyRefreshRecords(context.Background()))

	assert.Len(t, env.recordsForSpace(refreshable.Id), 1)
	assert.Len(t, env.recordsForSpace(other.Id), 1)

	uow := env.factory.NewUnitOfWork(context.Background())
	total, err := uow.RefreshRecordRepository().Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestProcessNextRecordRefreshesChangedDocument(t *testing.T) {
	env := newTestEnv()
	space := env.addSpace(true)
	doc := env.addExternalDoc(space.Id, "wiki-home", "")
	env.versions.versions["wiki-home"] = "v2"

	require.NoError(t, env.refreshService.InitDailyRefreshRecords(context.Background()))

	processed, err := env.refreshService.ProcessNextRecord(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	records := env.recordsForSpace(space.Id)
	require.Len(t, records, 1)
	assert.Equal(t, entity.RefreshStatusSucceed, records[0].Status)
	assert.Equal(t, "host-a", records[0].Host)

	stored := env.getDoc(doc.Id)
	assert.Equal(t, entity.DocStatusFinished, stored.Status)
	assert.Equal(t, "v2", stored.VersionMarker)
}

func TestProcessNextRecordSkipsUnchangedDocument(t *testing.T) {
	env := newTestEnv()
	space := env.addSpace(true)
	doc := env.addExternalDoc(space.Id, "wiki-home", "v1")
	env.versions.versions["wiki-home"] = "v1"

	require.NoError(t, env.refreshService.InitDailyRefreshRecords(context.Background()))

	processed, err := env.refreshService.ProcessNextRecord(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	records := env.recordsForSpace(space.Id)
	require.Len(t, records, 1)
	assert.Equal(t, entity.RefreshStatusSucceed, records[0].Status)

	// The document was never re-synced.
	assert.Equal(t, 0, env.loader.loadCalls())
	assert.Equal(t, entity.DocStatusTodo, env.getDoc(doc.Id).Status)
}

func TestProcessNextRecordAllFailuresFinishRecord(t *testing.T) {
	env := newTestEnv()
	space := env.addSpace(true)
	env.addExternalDoc(space.Id, "wiki-broken", "v1")
	env.versions.versions["wiki-broken"] = "v2"
	env.loader.err = faults.Transient("wiki unreachable")

	require.NoError(t, env.refreshService.InitDailyRefreshRecords(context.Background()))

	processed, err := env.refreshService.ProcessNextRecord(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	records := env.recordsForSpace(space.Id)
	require.Len(t, records, 1)
	assert.Equal(t, entity.RefreshStatusFinished, records[0].Status)
	assert.Contains(t, records[0].ErrorMsg, "wiki unreachable")
}

func TestDrainPendingProcessesAllRecords(t *testing.T) {
	env := newTestEnv()
	first := env.addSpace(true)
	second := env.addSpace(true)
	env.addExternalDoc(first.Id, "wiki-a", "")
	env.addExternalDoc(second.Id, "wiki-b", "")
	env.versions.versions["wiki-a"] = "v1"
	env.versions.versions["wiki-b"] = "v1"

	require.NoError(t, env.refreshService.InitDailyRefreshRecords(context.Background()))
	env.refreshService.DrainPending(context.Background())

	uow := env.factory.NewUnitOfWork(context.Background())
	remaining, err := uow.RefreshRecordRepository().CountNonTerminal(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, remaining)
}

func TestProcessNextRecordResumesOwnRunningRecord(t *testing.T) {
	env := newTestEnv()
	space := env.addSpace(true)
	doc := env.addExternalDoc(space.Id, "wiki-home", "")
	env.versions.versions["wiki-home"] = "v2"

	// A previous drain on this host claimed the record and died before
	// closing it out.
	record := &entity.RefreshRecord{
		Id:               uuid.New(),
		KnowledgeSpaceId: space.Id,
		RefreshDate:      currentRefreshDate(time.Now(), 3),
		Status:           entity.RefreshStatusRunning,
		Host:             "host-a",
		CreatedAt:        time.Now(),
	}
	env.store.mu.Lock()
	env.store.records[record.Id] = record
	env.store.recordOrder = append(env.store.recordOrder, record.Id)
	env.store.mu.Unlock()

	processed, err := env.refreshService.ProcessNextRecord(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	records := env.recordsForSpace(space.Id)
	require.Len(t, records, 1)
	assert.Equal(t, entity.RefreshStatusSucceed, records[0].Status)
	assert.Equal(t, entity.DocStatusFinished, env.getDoc(doc.Id).Status)

	uow := env.factory.NewUnitOfWork(context.Background())
	remaining, err := uow.RefreshRecordRepository().CountNonTerminal(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, remaining)
}

func TestProcessNextRecordIgnoresOtherHostsRunningRecord(t *testing.T) {
	env := newTestEnv()
	space := env.addSpace(true)

	record := &entity.RefreshRecord{
		Id:               uuid.New(),
		KnowledgeSpaceId: space.Id,
		RefreshDate:      currentRefreshDate(time.Now(), 3),
		Status:           entity.RefreshStatusRunning,
		Host:             "host-b",
		CreatedAt:        time.Now(),
	}
	env.store.mu.Lock()
	env.store.records[record.Id] = record
	env.store.recordOrder = append(env.store.recordOrder, record.Id)
	env.store.mu.Unlock()

	processed, err := env.refreshService.ProcessNextRecord(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)

	records := env.recordsForSpace(space.Id)
	require.Len(t, records, 1)
	assert.Equal(t, entity.RefreshStatusRunning, records[0].Status)
	assert.Equal(t, "host-b", records[0].Host)
}

func TestTriggerSpaceRefresh(t *testing.T) {
	env := newTestEnv()
	space := env.addSpace(true)
	doc := env.addExternalDoc(space.Id, "wiki-home", "")
	env.versions.versions["wiki-home"] = "v3"

	res, err := env.refreshService.TriggerSpaceRefresh(context.Background(), space.Id)
	require.NoError(t, err)
	assert.True(t, res.Refreshed)
	assert.Equal(t, "v3", env.getDoc(doc.Id).VersionMarker)

	// A second trigger on the same day reports the completed refresh.
	res, err = env.refreshService.TriggerSpaceRefresh(context.Background(), space.Id)
	require.NoError(t, err)
	assert.False(t, res.Refreshed)
	assert.Contains(t, res.Detail, "already refreshed")
}

func TestTriggerSpaceRefreshUnknownSpace(t *testing.T) {
	env := newTestEnv()

	_, err := env.refreshService.TriggerSpaceRefresh(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))
}

func TestRefreshDateRollsAtConfiguredHour(t *testing.T) {
	beforeHour := time.Date(2025, 6, 10, 1, 30, 0, 0, time.UTC)
	afterHour := time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-06-09", currentRefreshDate(beforeHour, 3))
	assert.Equal(t, "2025-06-10", currentRefreshDate(afterHour, 3))
}

func TestRefreshRecordClaimIsExclusive(t *testing.T) {
	env := newTestEnv()
	space := env.addSpace(true)
	require.NoError(t, env.refreshService.InitDailyRefreshRecords(context.Background()))

	uow := env.factory.NewUnitOfWork(context.Background())
	record, err := uow.RefreshRecordRepository().FindOne(context.Background(),
		specification.BySpaceId{SpaceId: space.Id})
	require.NoError(t, err)
	require.NotNil(t, record)

	claimed, err := uow.RefreshRecordRepository().Claim(context.Background(), record.Id, "host-a")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = uow.RefreshRecordRepository().Claim(context.Background(), record.Id, "host-b")
	require.NoError(t, err)
	assert.False(t, claimed)
}
