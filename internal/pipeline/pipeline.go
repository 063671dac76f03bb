package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
	"github.com/couchcryptid/osm-data-etl/internal/observability"
)

const (
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxLoadAttempts = 5
)

// ErrSkip is returned by a Transformer for elements that produce no record.
var ErrSkip = errors.New("element skipped")

// BatchExtractor reads up to batchSize top-level elements. It returns io.EOF,
// possibly alongside a final non-empty batch, once the source is drained.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]*domain.Element, error)
}

// Transformer converts an element into an output record.
type Transformer interface {
	Transform(ctx context.Context, el *domain.Element) (domain.Record, error)
}

// BatchLoader writes multiple records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.Record) error
}

// Summary describes a completed (or aborted) shaping run.
type Summary struct {
	Read     int           `json:"read"`
	Produced int           `json:"produced"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration_ns"`
}

// Pipeline orchestrates the extract-transform-load loop over one document.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	batchSize   int

	mu       sync.Mutex
	progress Summary
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the clock used for timing and retry backoff.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the pipeline has loaded at least one batch,
// or an error describing why it is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any records yet")
	}
	return nil
}

// Run shapes the whole document. It stops at the end of input, on a
// malformed document, when a batch cannot be loaded after retries, or when
// ctx is cancelled. The summary reflects the work done up to that point.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	start := p.clock.Now()
	var sum Summary

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			sum.Duration = p.clock.Since(start)
			return sum, err
		}

		done, err := p.processBatch(ctx, &sum)
		sum.Duration = p.clock.Since(start)
		p.setProgress(sum)
		if err != nil {
			return sum, err
		}
		if done {
			p.logger.Info("pipeline finished",
				"read", sum.Read,
				"produced", sum.Produced,
				"skipped", sum.Skipped,
				"failed", sum.Failed,
				"duration", sum.Duration,
			)
			return sum, nil
		}
	}
}

// Progress returns the counts of the run in progress, or of the last run.
func (p *Pipeline) Progress() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Pipeline) setProgress(s Summary) {
	p.mu.Lock()
	p.progress = s
	p.mu.Unlock()
}

// processBatch runs one extract-transform-load cycle. It reports done once the
// extractor is drained.
func (p *Pipeline) processBatch(ctx context.Context, sum *Summary) (bool, error) {
	start := p.clock.Now()

	batch, extractErr := p.extractor.ExtractBatch(ctx, p.batchSize)
	done := errors.Is(extractErr, io.EOF)
	if extractErr != nil && !done && ctx.Err() != nil {
		return false, ctx.Err()
	}

	if len(batch) > 0 {
		sum.Read += len(batch)
		p.metrics.ElementsRead.Add(float64(len(batch)))
		p.metrics.BatchSize.Observe(float64(len(batch)))

		loaded, err := p.transformAndLoad(ctx, batch, sum)
		if err != nil {
			return false, err
		}
		if loaded > 0 {
			p.metrics.BatchProcessingDuration.Observe(p.clock.Since(start).Seconds())
			p.ready.Store(true)
		}
	}

	if extractErr != nil && !done {
		p.logger.Error("extract batch failed", "error", extractErr, "read", sum.Read)
		return false, fmt.Errorf("extract: %w", extractErr)
	}
	return done, nil
}

// transformAndLoad normalizes each element in the batch and loads the
// successes. It returns the number of records loaded.
func (p *Pipeline) transformAndLoad(ctx context.Context, batch []*domain.Element, sum *Summary) (int, error) {
	out := make([]domain.Record, 0, len(batch))

	for _, el := range batch {
		rec, err := p.transformer.Transform(ctx, el)
		switch {
		case errors.Is(err, ErrSkip):
			sum.Skipped++
			p.metrics.ElementsSkipped.Inc()
			continue
		case err != nil:
			id, _ := el.Attr("id")
			p.logger.Warn("normalize failed, skipping element",
				"error", err,
				"tag", el.Tag,
				"id", id,
			)
			sum.Failed++
			p.metrics.NormalizeErrors.Inc()
			continue
		}
		out = append(out, rec)
	}

	if len(out) == 0 {
		return 0, nil
	}

	if err := p.loadWithRetry(ctx, out); err != nil {
		return 0, err
	}

	sum.Produced += len(out)
	p.metrics.RecordsProduced.Add(float64(len(out)))
	return len(out), nil
}

// loadWithRetry retries a failed load with exponential backoff: start at
// 200ms, double each attempt, cap at 5s.
func (p *Pipeline) loadWithRetry(ctx context.Context, records []domain.Record) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxLoadAttempts; attempt++ {
		if err = p.loader.LoadBatch(ctx, records); err == nil {
			return nil
		}
		p.logger.Error("load batch failed",
			"error", err,
			"batch_size", len(records),
			"attempt", attempt,
		)
		if attempt == maxLoadAttempts {
			break
		}
		p.metrics.LoadRetries.Inc()
		if !sleepWithContext(ctx, p.clock, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("load batch after %d attempts: %w", maxLoadAttempts, err)
}

// sleepWithContext mirrors retry.SleepWithContext on an injectable clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
