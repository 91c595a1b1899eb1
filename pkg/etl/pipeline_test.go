package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"
	"kb-ingest-be/pkg/sink"
	"kb-ingest-be/pkg/splitter"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type fakeLoader struct {
	content string
	err     error
}

func (l *fakeLoader) Load(ctx context.Context, doc *entity.Document) (string, error) {
	return l.content, l.err
}

type fakeImageExtractor struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (e *fakeImageExtractor) ExtractImage(ctx context.Context, imageRef, hint string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	return "described image from " + hint, nil
}

type fakeSummaryExtractor struct{}

func (e *fakeSummaryExtractor) ExtractSummary(ctx context.Context, text string) (string, error) {
	if len(text) > 10 {
		text = text[:10]
	}
	return "summary: " + text, nil
}

type fakeSink struct {
	name   string
	err    error
	mu     sync.Mutex
	loaded []*entity.Chunk
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) LoadChunks(ctx context.Context, chunks []*entity.Chunk) ([]sink.AssignedID, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sink.AssignedID, len(chunks))
	for i, c := range chunks {
		s.loaded = append(s.loaded, c)
		out[i] = sink.AssignedID{ChunkId: c.Id, SinkId: fmt.Sprintf("%s-%s", s.name, c.Id)}
	}
	return out, nil
}

func (s *fakeSink) DeleteByIds(ctx context.Context, ids []string) error { return nil }

func newTestPipeline(l *fakeLoader, img *fakeImageExtractor) *Pipeline {
	return NewPipeline(l, splitter.NewRegistry(), img, &fakeSummaryExtractor{}, nopLogger{})
}

func testDoc(params entity.ChunkParams) *entity.Document {
	return &entity.Document{
		Id:               uuid.New(),
		KnowledgeSpaceId: uuid.New(),
		Name:             "handbook",
		DocType:          "markdown",
		SourceType:       entity.SourceText,
		ContentRef:       "inline",
		Status:           entity.DocStatusExtracting,
		ChunkParams:      params,
	}
}

func TestExtractStampsChunks(t *testing.T) {
	p := newTestPipeline(&fakeLoader{content: "abcdefghijklmnopqrstuvwxyz"}, nil)
	doc := testDoc(entity.ChunkParams{Strategy: "char", ChunkSize: 10})

	chunks, err := p.Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.NotEqual(t, uuid.Nil, c.Id)
		assert.Equal(t, doc.Id, c.DocId)
		assert.Equal(t, doc.KnowledgeSpaceId, c.KnowledgeSpaceId)
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "handbook", c.Metadata.DocName)
		assert.False(t, c.Metadata.CreatedAt.IsZero())
	}
}

func TestExtractUnknownStrategyIsConfiguration(t *testing.T) {
	p := newTestPipeline(&fakeLoader{content: "text"}, nil)
	doc := testDoc(entity.ChunkParams{Strategy: "semantic"})

	_, err := p.Extract(context.Background(), doc)
	require.Error(t, err)
	assert.Equal(t, faults.KindConfiguration, faults.KindOf(err))
}

func TestExtractPropagatesLoaderFault(t *testing.T) {
	p := newTestPipeline(&fakeLoader{err: faults.Transient("upstream down")}, nil)
	doc := testDoc(entity.ChunkParams{Strategy: "char"})

	_, err := p.Extract(context.Background(), doc)
	require.Error(t, err)
	assert.Equal(t, faults.KindTransient, faults.KindOf(err))
}

func TestTransformDescribesImages(t *testing.T) {
	img := &fakeImageExtractor{}
	p := newTestPipeline(&fakeLoader{}, img)

	chunks := []*entity.Chunk{
		{Id: uuid.New(), Content: "![image](http://x/a.png)", Metadata: entity.ChunkMetadata{DocName: "doc"}},
		{Id: uuid.New(), Content: "plain text"},
	}

	out := p.Transform(context.Background(), chunks, TransformOptions{ExtractImage: true})
	assert.Equal(t, "described image from doc", out[0].Content)
	assert.Equal(t, "plain text", out[1].Content)
	assert.Equal(t, 1, img.calls)
}

func TestTransformImageFailureKeepsOriginal(t *testing.T) {
	img := &fakeImageExtractor{err: errors.New("vision model down")}
	p := newTestPipeline(&fakeLoader{}, img)

	original := "![image](http://x/a.png)"
	chunks := []*entity.Chunk{{Id: uuid.New(), Content: original}}

	out := p.Transform(context.Background(), chunks, TransformOptions{ExtractImage: true})
	assert.Equal(t, original, out[0].Content)
}

func TestTransformSummaries(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, nil)
	chunks := []*entity.Chunk{{Id: uuid.New(), Content: "long enough content"}}

	out := p.Transform(context.Background(), chunks, TransformOptions{Summarize: true})
	assert.Equal(t, "summary: long enoug", out[0].Summary)
}

func TestLoadAssignsSinkIds(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, nil)
	primary := &fakeSink{name: "vector"}
	secondary := &fakeSink{name: "fulltext"}

	chunks := make([]*entity.Chunk, 25)
	for i := range chunks {
		chunks[i] = &entity.Chunk{Id: uuid.New(), ChunkIndex: i, Content: "c"}
	}

	result, err := p.Load(context.Background(), chunks, []sink.Sink{primary, secondary}, 10, 4)
	require.NoError(t, err)
	assert.False(t, result.Partial())

	for _, c := range chunks {
		assert.NotEmpty(t, c.VectorId)
		assert.NotEmpty(t, c.FullTextId)
	}
	assert.Len(t, primary.loaded, 25)
	assert.Len(t, secondary.loaded, 25)
}

func TestLoadPrimarySinkFailureIsFatal(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, nil)
	primary := &fakeSink{name: "vector", err: faults.Transient("pg down")}

	chunks := []*entity.Chunk{{Id: uuid.New(), Content: "c"}}

	_, err := p.Load(context.Background(), chunks, []sink.Sink{primary}, 10, 2)
	require.Error(t, err)
	assert.Equal(t, faults.KindTransient, faults.KindOf(err))
}

func TestLoadSecondarySinkFailureIsPartial(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, nil)
	primary := &fakeSink{name: "vector"}
	secondary := &fakeSink{name: "fulltext", err: errors.New("redis down")}

	chunks := []*entity.Chunk{{Id: uuid.New(), Content: "c"}}

	result, err := p.Load(context.Background(), chunks, []sink.Sink{primary, secondary}, 10, 2)
	require.NoError(t, err)
	assert.True(t, result.Partial())
	assert.Contains(t, result.ErrorSummary(), "fulltext")
	assert.NotEmpty(t, chunks[0].VectorId)
	assert.Empty(t, chunks[0].FullTextId)
}

func TestLoadNoSinksIsConfiguration(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, nil)

	_, err := p.Load(context.Background(), nil, nil, 10, 2)
	require.Error(t, err)
	assert.Equal(t, faults.KindConfiguration, faults.KindOf(err))
}
