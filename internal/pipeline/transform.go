package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
	"github.com/couchcryptid/osm-data-etl/internal/observability"
)

// Normalizer implements Transformer using domain.NormalizeWithStats.
type Normalizer struct {
	logger     *slog.Logger
	metrics    *observability.Metrics
	unsafeKeys atomic.Int64
}

// NewNormalizer creates a Normalizer that counts dropped unsafe keys in metrics.
func NewNormalizer(logger *slog.Logger, metrics *observability.Metrics) *Normalizer {
	return &Normalizer{
		logger:  logger,
		metrics: metrics,
	}
}

// Transform shapes el into a record. Elements other than node, way and
// relation yield ErrSkip.
func (n *Normalizer) Transform(_ context.Context, el *domain.Element) (domain.Record, error) {
	rec, stats, ok, err := domain.NormalizeWithStats(el)
	if err != nil {
		return domain.Record{}, err
	}
	if !ok {
		n.logger.Debug("skipping unrecognized element", "tag", el.Tag)
		return domain.Record{}, fmt.Errorf("%s: %w", el.Tag, ErrSkip)
	}
	if stats.UnsafeKeysDropped > 0 {
		n.unsafeKeys.Add(int64(stats.UnsafeKeysDropped))
		n.metrics.UnsafeKeysDropped.Add(float64(stats.UnsafeKeysDropped))
	}
	return rec, nil
}

// UnsafeKeysDropped returns the number of tags left out of records so far
// because their key contained a problem character.
func (n *Normalizer) UnsafeKeysDropped() int {
	return int(n.unsafeKeys.Load())
}
