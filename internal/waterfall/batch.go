package waterfall

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// BatchItem is one identifier in an AcquireMany call.
type BatchItem struct {
	Identifier domain.PublicationIdentifier
	Skip       domain.SkipSet
}

// BatchResult pairs an item with its acquisition outcome.
type BatchResult struct {
	Result *domain.AcquisitionResult
	Skip   domain.SkipSet
	Err    error
}

// AcquireMany runs Acquire for each item with at most Config.Concurrency sessions in
// flight. Results are returned in input order; per-item errors do not stop the batch.
func (o *Orchestrator) AcquireMany(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	g := new(errgroup.Group)
	g.SetLimit(o.config.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{Skip: item.Skip, Err: err}
				return nil
			}
			res, skip, err := o.Acquire(ctx, item.Identifier, item.Skip)
			results[i] = BatchResult{Result: res, Skip: skip, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
