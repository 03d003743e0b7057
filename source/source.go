// Package source produces raw statistics from the registry database. The
// cache layer treats a Source as an opaque fetch-everything call; this
// package owns the per-metric partial-failure policy.
package source

import (
	"context"
	"sort"

	"github.com/dailyyoga/regstats/snapshot"
)

// Source fetches every metric of one dataset.
type Source interface {
	// FetchAll returns the metrics it could compute. It returns an error
	// only when the backing store is unavailable or ctx is done; a single
	// failing metric is reported in Batch.Failures instead.
	FetchAll(ctx context.Context) (*Batch, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context) (*Batch, error)

// FetchAll calls f(ctx).
func (f Func) FetchAll(ctx context.Context) (*Batch, error) {
	return f(ctx)
}

// Batch is the outcome of one FetchAll. Failed metrics are present in
// Metrics with their default value and listed in Failures.
type Batch struct {
	Metrics  snapshot.Metrics
	Failures map[string]error
}

// Degraded returns the sorted names of metrics that carry a default value.
func (b *Batch) Degraded() []string {
	if b == nil || len(b.Failures) == 0 {
		return nil
	}
	out := make([]string, 0, len(b.Failures))
	for name := range b.Failures {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
