package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
	"github.com/couchcryptid/osm-data-etl/internal/observability"
)

// Audit folds every top-level element from src into report. It returns the
// number of elements aggregated. A malformed document aborts the pass; the
// report then holds everything aggregated before the error.
func Audit(ctx context.Context, src BatchExtractor, report *domain.AuditReport, batchSize int, metrics *observability.Metrics) (int, error) {
	metrics.PipelineRunning.Set(1)
	defer metrics.PipelineRunning.Set(0)

	var n int
	for {
		batch, err := src.ExtractBatch(ctx, batchSize)
		for _, el := range batch {
			domain.Aggregate(el, report)
		}
		n += len(batch)
		metrics.ElementsRead.Add(float64(len(batch)))
		metrics.AuditElements.Add(float64(len(batch)))

		switch {
		case errors.Is(err, io.EOF):
			return n, nil
		case err != nil:
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			return n, fmt.Errorf("audit: %w", err)
		}
	}
}
