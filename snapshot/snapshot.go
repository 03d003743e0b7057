// Package snapshot models the immutable bundle of statistics produced by one
// refresh cycle.
package snapshot

import (
	"sort"
	"time"
)

// Snapshot is the result of one refresh. It is never modified after New
// returns; a later refresh produces a new Snapshot. A published Snapshot is
// shared by every reader, so its exported fields are read-only. Use Lookup
// or Metric.Data to get containers that may be modified.
type Snapshot struct {
	Metrics     Metrics   `json:"metrics"`
	Derived     Derived   `json:"derived"`
	GeneratedAt time.Time `json:"generated_at"`
	// Degraded lists metrics that carry their default value because their
	// query failed during the refresh.
	Degraded []string `json:"degraded,omitempty"`
}

// New builds a Snapshot, computing derived data once. It takes ownership of
// metrics.
func New(metrics Metrics, degraded []string, generatedAt time.Time, topN int) *Snapshot {
	if metrics == nil {
		metrics = Metrics{}
	}
	var deg []string
	if len(degraded) > 0 {
		deg = append([]string(nil), degraded...)
		sort.Strings(deg)
	}
	return &Snapshot{
		Metrics:     metrics,
		Derived:     Derive(metrics, topN),
		GeneratedAt: generatedAt,
		Degraded:    deg,
	}
}

// Metric returns the named metric.
func (s *Snapshot) Metric(name string) (Metric, bool) {
	if s == nil {
		return Metric{}, false
	}
	m, ok := s.Metrics[name]
	return m, ok
}

// Lookup returns a copy of the data for metric, narrowed to region when
// region is non-empty. Missing metrics or regions report false, never an
// error.
func (s *Snapshot) Lookup(metric, region string) (any, bool) {
	m, ok := s.Metric(metric)
	if !ok {
		return nil, false
	}
	if region == "" {
		return m.Data(), true
	}
	return m.Lookup(region)
}

// RegionCount is the number of distinct regions in the snapshot.
func (s *Snapshot) RegionCount() int {
	if s == nil {
		return 0
	}
	return len(s.Derived.Regions)
}

// RecordCounts returns the number of records per metric.
func (s *Snapshot) RecordCounts() map[string]int {
	if s == nil {
		return map[string]int{}
	}
	out := make(map[string]int, len(s.Metrics))
	for name, m := range s.Metrics {
		out[name] = m.Len()
	}
	return out
}
