package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
	"github.com/couchcryptid/sffd-incident-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw records from the source. A finite
// source returns io.EOF, possibly alongside the final records.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw record into a cleaned incident. A *domain.DropError
// signals a row removed by cleaning rules.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Incident, error)
}

// BatchLoader writes multiple cleaned incidents to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, incidents []domain.Incident) error
}

// Stats summarises what a run did with the records it consumed.
type Stats struct {
	Consumed        int64                       `json:"consumed"`
	Loaded          int64                       `json:"loaded"`
	TransformErrors int64                       `json:"transform_errors"`
	Dropped         map[domain.DropReason]int64 `json:"dropped"`
}

// DroppedTotal sums drops over all reasons.
func (s Stats) DroppedTotal() int64 {
	var n int64
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int

	consumed atomic.Int64
	loaded   atomic.Int64
	failed   atomic.Int64
	dropMu   sync.Mutex
	dropped  map[domain.DropReason]int64
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		dropped:     make(map[domain.DropReason]int64),
	}
}

// CheckReadiness returns nil if the pipeline has loaded at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any records yet")
	}
	return nil
}

// Stats returns a snapshot of the run counters.
func (p *Pipeline) Stats() Stats {
	p.dropMu.Lock()
	dropped := make(map[domain.DropReason]int64, len(p.dropped))
	for k, v := range p.dropped {
		dropped[k] = v
	}
	p.dropMu.Unlock()

	return Stats{
		Consumed:        p.consumed.Load(),
		Loaded:          p.loaded.Load(),
		TransformErrors: p.failed.Load(),
		Dropped:         dropped,
	}
}

// Run executes the batch ETL loop until the context is cancelled or the
// extractor reports io.EOF.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		more, err := p.processBatch(ctx, &backoff, maxBackoff)
		if err != nil {
			return err
		}
		if !more {
			stats := p.Stats()
			p.logger.Info("pipeline finished",
				"consumed", stats.Consumed,
				"loaded", stats.Loaded,
				"dropped", stats.DroppedTotal(),
				"transform_errors", stats.TransformErrors,
			)
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the
// pipeline should stop, and an error only when a final batch could not be loaded.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) (bool, error) {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	eof := errors.Is(err, io.EOF)
	if err != nil && !eof {
		if ctx.Err() != nil {
			return false, nil
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff), nil
	}

	if len(rawBatch) == 0 {
		return !eof && ctx.Err() == nil, nil
	}

	p.consumed.Add(int64(len(rawBatch)))
	p.metrics.RecordsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	loaded, err := p.transformAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if err != nil {
		return false, err
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return !eof && ctx.Err() == nil, nil
}

// transformAndLoad transforms each record in the batch, loads the successes,
// and commits offsets. Loading is retried with backoff until it succeeds or
// the context ends; the context error is returned in that case.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (int, error) {
	outBatch := make([]domain.Incident, 0, len(rawBatch))
	successfulRaws := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.recordFailure(raw, err)
			p.commitOffset(ctx, raw)
			continue
		}
		outBatch = append(outBatch, out)
		successfulRaws = append(successfulRaws, raw)
	}

	if len(outBatch) == 0 {
		return 0, nil
	}

	for {
		err := p.loader.LoadBatch(ctx, outBatch)
		if err == nil {
			break
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(outBatch))
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return 0, context.Cause(ctx)
		}
	}

	p.loaded.Add(int64(len(outBatch)))
	p.metrics.RecordsLoaded.Add(float64(len(outBatch)))

	for _, raw := range successfulRaws {
		p.commitOffset(ctx, raw)
	}

	return len(outBatch), nil
}

func (p *Pipeline) recordFailure(raw domain.RawEvent, err error) {
	var drop *domain.DropError
	if errors.As(err, &drop) {
		p.dropMu.Lock()
		p.dropped[drop.Reason]++
		p.dropMu.Unlock()
		p.metrics.RecordsDropped.WithLabelValues(string(drop.Reason)).Inc()
		p.logger.Debug("record dropped", "reason", drop.Reason, "incident_id", drop.ID)
		return
	}

	p.failed.Add(1)
	p.metrics.TransformErrors.Inc()
	p.logger.Warn("transform failed, skipping record",
		"error", err,
		"source", raw.Source,
		"partition", raw.Partition,
		"offset", raw.Offset,
	)
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sharedretry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = sharedretry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the record offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"source", raw.Source, "partition", raw.Partition, "offset", raw.Offset)
	}
}
