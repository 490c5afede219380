package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
	"github.com/couchcryptid/sffd-incident-etl/internal/observability"
	"github.com/couchcryptid/sffd-incident-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// mockExtractor hands out its events in batches. With eof set it reports
// io.EOF on the final batch, otherwise it blocks until the context ends.
type mockExtractor struct {
	events []domain.RawEvent
	eof    bool
	index  atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	start := int(m.index.Load())
	if start >= len(m.events) {
		if m.eof {
			return nil, io.EOF
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	end := min(start+batchSize, len(m.events))
	m.index.Store(int64(end))
	if end == len(m.events) && m.eof {
		return m.events[start:end], io.EOF
	}
	return m.events[start:end], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Incident, error) {
	if m.err != nil {
		return domain.Incident{}, m.err
	}
	return domain.Incident{ID: string(raw.Key)}, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.Incident
	batches  int
	failures int
}

func (m *mockLoader) LoadBatch(_ context.Context, incidents []domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("sink unavailable")
	}
	m.batches++
	m.loaded = append(m.loaded, incidents...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// --- pipeline tests ---

func TestPipeline_Run_StopsAtEOF(t *testing.T) {
	ext := &mockExtractor{events: keyedEvents("a", "b", "c", "d", "e"), eof: true}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Len(t, ldr.loaded, 5)
	assert.Equal(t, 3, ldr.batches)
	require.NoError(t, p.CheckReadiness(ctx))

	stats := p.Stats()
	assert.Equal(t, int64(5), stats.Consumed)
	assert.Equal(t, int64(5), stats.Loaded)
	assert.InDelta(t, 5, testutil.ToFloat64(metrics.RecordsLoaded), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no events, blocks
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(ctx))
}

func TestPipeline_Run_TransformError(t *testing.T) {
	ext := &mockExtractor{events: keyedEvents("a"), eof: true}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, slog.Default(), metrics, 10)

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, int64(1), p.Stats().TransformErrors)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_DropsCountedByReason(t *testing.T) {
	ext := &mockExtractor{events: keyedEvents("a", "b"), eof: true}
	drop := &domain.DropError{Reason: domain.DropNoOnScene, ID: "a"}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: drop}, &mockLoader{}, slog.Default(), metrics, 10)

	require.NoError(t, p.Run(context.Background()))
	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Dropped[domain.DropNoOnScene])
	assert.Equal(t, int64(2), stats.DroppedTotal())
	assert.Zero(t, stats.TransformErrors)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RecordsDropped.WithLabelValues("no_on_scene")), 0)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int64
	events := keyedEvents("a", "b")
	for i := range events {
		events[i].Source = "raw-fire-incidents"
		events[i].Commit = func(_ context.Context) error {
			commits.Add(1)
			return nil
		}
	}

	ext := &mockExtractor{events: events, eof: true}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int64(2), commits.Load())
}

func TestPipeline_Run_RetriesLoad(t *testing.T) {
	ext := &mockExtractor{events: keyedEvents("a"), eof: true}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Len(t, ldr.loaded, 1)
}

func TestPipeline_Run_LoadFailsUntilDeadline(t *testing.T) {
	ext := &mockExtractor{events: keyedEvents("a"), eof: true}
	ldr := &mockLoader{failures: 1000}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, ldr.loaded)
}

// --- transformer tests ---

func TestIncidentTransformer_Transform(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 5, 9, 30, 15, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	tfm := pipeline.NewTransformer(nil, nil, domain.DefaultRules(), slog.Default())

	rec := sampleRecord()
	out, err := tfm.Transform(context.Background(), domain.RawEvent{Record: &rec})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ID)
	assert.InDelta(t, 10.0, out.OnSceneTime, 1e-9)
	require.NotNil(t, out.ResponseTime)
	assert.InDelta(t, 3.0, *out.ResponseTime, 1e-9)
	assert.Equal(t, 2022, out.Year)
	assert.Equal(t, "Morning", out.PeriodOfDay)
	assert.Equal(t, fakeClock.Now(), out.ProcessedAt)
}

func TestIncidentTransformer_Transform_FromJSON(t *testing.T) {
	rec := sampleRecord()
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	tfm := pipeline.NewTransformer(nil, nil, domain.DefaultRules(), slog.Default())
	out, err := tfm.Transform(context.Background(), domain.RawEvent{Value: data})
	require.NoError(t, err)
	assert.Equal(t, "Medical Incident", out.CallType)
}

func TestIncidentTransformer_Transform_Drop(t *testing.T) {
	rec := sampleRecord()
	rec.CallFinalDisposition = "Cancelled"

	tfm := pipeline.NewTransformer(nil, nil, domain.DefaultRules(), slog.Default())
	_, err := tfm.Transform(context.Background(), domain.RawEvent{Record: &rec})

	var drop *domain.DropError
	require.ErrorAs(t, err, &drop)
	assert.Equal(t, domain.DropDisposition, drop.Reason)
	assert.Equal(t, rec.RowID, drop.ID)
}

func TestIncidentTransformer_Transform_Invalid(t *testing.T) {
	tfm := pipeline.NewTransformer(nil, nil, domain.DefaultRules(), slog.Default())
	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	require.Error(t, err)

	var drop *domain.DropError
	assert.False(t, errors.As(err, &drop))
}

type stubResolver struct{ name string }

func (s stubResolver) Neighborhood(_, _ float64) string { return s.name }

func TestIncidentTransformer_Transform_ResolvesNeighborhood(t *testing.T) {
	rec := sampleRecord()
	rec.Neighborhood = ""

	tfm := pipeline.NewTransformer(nil, stubResolver{name: "Mission"}, domain.DefaultRules(), slog.Default())
	out, err := tfm.Transform(context.Background(), domain.RawEvent{Record: &rec})
	require.NoError(t, err)
	assert.Equal(t, "Mission", out.Neighborhood)
	assert.Equal(t, "polygon", out.GeoSource)
}

// --- helpers ---

func keyedEvents(keys ...string) []domain.RawEvent {
	events := make([]domain.RawEvent, len(keys))
	for i, k := range keys {
		events[i] = domain.RawEvent{Key: []byte(k), Offset: int64(i)}
	}
	return events
}

func sampleRecord() domain.RawIncidentRecord {
	return domain.RawIncidentRecord{
		CallNumber:           "220910123",
		UnitID:               "M55",
		CallType:             "Medical Incident",
		CallDate:             "04/01/2022",
		ReceivedDtTm:         "04/01/2022 10:15:00 AM",
		DispatchDtTm:         "04/01/2022 10:17:00 AM",
		ResponseDtTm:         "04/01/2022 10:18:00 AM",
		OnSceneDtTm:          "04/01/2022 10:25:00 AM",
		CallFinalDisposition: "Code 2 Transport",
		Address:              "100 Block of MARKET ST",
		Battalion:            "B03",
		Neighborhood:         "Financial District/South Beach",
		RowID:                "220910123-M55",
		CaseLocation:         "POINT (-122.41942 37.77493)",
	}
}
