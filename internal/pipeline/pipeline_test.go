package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
	"github.com/couchcryptid/osm-data-etl/internal/observability"
	"github.com/couchcryptid/osm-data-etl/internal/osmxml"
	"github.com/couchcryptid/osm-data-etl/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	elements []*domain.Element
	pos      int
	err      error // returned once elements are exhausted; io.EOF when nil
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]*domain.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := min(m.pos+batchSize, len(m.elements))
	batch := m.elements[m.pos:end]
	m.pos = end
	if m.pos < len(m.elements) {
		return batch, nil
	}
	if m.err != nil {
		return batch, m.err
	}
	return batch, io.EOF
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, el *domain.Element) (domain.Record, error) {
	if m.err != nil {
		return domain.Record{}, m.err
	}
	rec, ok, err := domain.Normalize(el)
	if err != nil {
		return domain.Record{}, err
	}
	if !ok {
		return domain.Record{}, pipeline.ErrSkip
	}
	return rec, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.Record
	failures int // number of calls to fail before succeeding
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, records []domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("sink unavailable")
	}
	m.loaded = append(m.loaded, records...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func node(id string) *domain.Element {
	return &domain.Element{Tag: "node", Attrs: []domain.Attr{
		{Name: "id", Value: id}, {Name: "lat", Value: "1.5"}, {Name: "lon", Value: "2.5"},
	}}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{elements: []*domain.Element{node("1"), node("2"), node("3")}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 2)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Read)
	assert.Equal(t, 3, sum.Produced)
	require.Len(t, ldr.loaded, 3)
	assert.Equal(t, int64(1), ldr.loaded[0].ID)
	assert.Equal(t, int64(3), ldr.loaded[2].ID)
	assert.Equal(t, 2, ldr.calls)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{elements: []*domain.Element{node("1")}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(ctx))
}

func TestPipeline_Run_SkipsUnknownElements(t *testing.T) {
	ext := &mockExtractor{elements: []*domain.Element{
		{Tag: "bounds", Attrs: []domain.Attr{{Name: "minlat", Value: "1"}}},
		node("7"),
	}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.Summary{Read: 2, Produced: 1, Skipped: 1}, withoutDuration(sum))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, "point/7", ldr.loaded[0].Key())
}

func TestPipeline_Run_TransformErrorSkipsElement(t *testing.T) {
	bad := &domain.Element{Tag: "node", Attrs: []domain.Attr{{Name: "id", Value: "x"}}}
	ext := &mockExtractor{elements: []*domain.Element{bad, node("2")}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Produced)
}

func TestPipeline_Run_AllFailNotReady(t *testing.T) {
	ext := &mockExtractor{elements: []*domain.Element{node("1")}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, slog.Default(), newTestMetrics(), 10)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_MalformedDocumentAborts(t *testing.T) {
	src := osmxml.NewWalker(strings.NewReader(`<osm><node id="1" lat="0" lon="0"/><node id="2"`))
	ldr := &mockLoader{}

	p := pipeline.New(src, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	sum, err := p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrMalformedDocument)
	assert.Equal(t, 1, sum.Read)
	assert.Len(t, ldr.loaded, 1, "elements before the syntax error are still loaded")
}

func TestPipeline_Run_RetriesLoad(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ext := &mockExtractor{elements: []*domain.Element{node("1")}}
	ldr := &mockLoader{failures: 2}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10, pipeline.WithClock(clock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		sum pipeline.Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := p.Run(ctx)
		done <- result{sum, err}
	}()

	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(5 * time.Second)
	}

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.sum.Produced)
	assert.Equal(t, 3, ldr.calls)
}

func TestPipeline_Run_LoadGivesUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ext := &mockExtractor{elements: []*domain.Element{node("1")}}
	ldr := &mockLoader{failures: 100}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10, pipeline.WithClock(clock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx)
		done <- err
	}()

	for range 4 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(5 * time.Second)
	}

	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 5 attempts")
	assert.Equal(t, 5, ldr.calls)
}

func TestNormalizer_Transform(t *testing.T) {
	n := pipeline.NewNormalizer(slog.Default(), newTestMetrics())

	el := node("42")
	el.Children = []*domain.Element{
		{Tag: "tag", Attrs: []domain.Attr{{Name: "k", Value: "addr:street"}, {Name: "v", Value: "Main St"}}},
		{Tag: "tag", Attrs: []domain.Attr{{Name: "k", Value: "bad key"}, {Name: "v", Value: "x"}}},
	}

	rec, err := n.Transform(context.Background(), el)
	require.NoError(t, err)
	assert.Equal(t, "point/42", rec.Key())
	assert.Equal(t, map[string]string{"street": "Main St"}, rec.Address)
	assert.Equal(t, 1, n.UnsafeKeysDropped())

	_, err = n.Transform(context.Background(), &domain.Element{Tag: "bounds"})
	require.ErrorIs(t, err, pipeline.ErrSkip)

	_, err = n.Transform(context.Background(), &domain.Element{Tag: "way"})
	require.ErrorIs(t, err, domain.ErrMissingAttribute)
}

func TestAudit(t *testing.T) {
	src := osmxml.NewWalker(strings.NewReader(`<osm>
  <node id="1" lat="1" lon="2"><tag k="addr:street" v="Main St"/></node>
  <way id="2"><nd ref="1"/></way>
</osm>`))
	report := domain.NewAuditReport()

	n, err := pipeline.Audit(context.Background(), src, report, 1, newTestMetrics())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]int{"node": 1, "way": 1}, report.Elements)
	assert.True(t, report.StreetNames().Has("Main St"))
}

func TestAudit_MalformedDocument(t *testing.T) {
	src := osmxml.NewWalker(strings.NewReader(`<osm><node id="1"></way></osm>`))

	_, err := pipeline.Audit(context.Background(), src, domain.NewAuditReport(), 10, newTestMetrics())
	require.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func withoutDuration(s pipeline.Summary) pipeline.Summary {
	s.Duration = 0
	return s
}

func TestPipeline_Progress(t *testing.T) {
	ext := &mockExtractor{elements: []*domain.Element{node("1"), {Tag: "bounds"}}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)

	assert.Equal(t, pipeline.Summary{}, p.Progress())

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sum, p.Progress())
	assert.Equal(t, 1, p.Progress().Skipped)
}
