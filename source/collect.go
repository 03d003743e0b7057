package source

import (
	"context"
	"sync"

	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/snapshot"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Query is one row of a declarative metric table.
type Query struct {
	Name string
	Kind snapshot.Kind
	// Default replaces the metric when Fetch fails. Zero means
	// snapshot.Empty(Kind).
	Default *snapshot.Metric
	Fetch   func(ctx context.Context) (snapshot.Metric, error)
}

func (q Query) fallback() snapshot.Metric {
	if q.Default != nil {
		return *q.Default
	}
	return snapshot.Empty(q.Kind)
}

// Collect runs queries with at most parallelism in flight. Per-metric
// failures become defaults recorded in Batch.Failures; an unavailable
// backing store or a done context aborts the collection.
func Collect(ctx context.Context, log logger.Logger, queries []Query, parallelism int) (*Batch, error) {
	if parallelism < 1 {
		parallelism = 1
	}

	batch := &Batch{
		Metrics:  make(snapshot.Metrics, len(queries)),
		Failures: make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := q.Fetch(gctx)
			if err == nil {
				if m.Kind == "" {
					m.Kind = q.Kind
				}
				mu.Lock()
				batch.Metrics[q.Name] = m
				mu.Unlock()
				return nil
			}

			fatal, perMetric := classify(q.Name, err)
			if fatal != nil {
				return fatal
			}
			log.Warn("metric query failed, using default",
				zap.String("metric", q.Name),
				zap.Error(perMetric),
			)
			mu.Lock()
			batch.Metrics[q.Name] = q.fallback()
			batch.Failures[q.Name] = perMetric
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}
