// Package metrics collects counters, gauges and histograms for the refresh
// pipeline behind a backend-neutral interface.
package metrics

import "strings"

// Metric name suffixes. Cache-scoped metrics are prefixed with the cache
// name through Name.
const (
	RefreshTotal        = "refresh_total"
	RefreshFailures     = "refresh_failures_total"
	RefreshSkippedTicks = "refresh_skipped_ticks_total"
	RefreshForced       = "refresh_forced_total"
	RefreshCoalesced    = "refresh_coalesced_total"
	RefreshRetries      = "refresh_retries_total"
	RefreshDuration     = "refresh_duration_seconds"
	MetricFailures      = "metric_failures_total"
	SnapshotRegions     = "snapshot_regions"
	LastRefreshUnix     = "last_refresh_timestamp_seconds"
	BootstrapTotal      = "bootstrap_total"

	MemsyncRuns     = "memsync_runs_total"
	MemsyncFailures = "memsync_failures_total"
	MemsyncDuration = "memsync_duration_seconds"

	CronTaskRuns     = "task_runs_total"
	CronTaskFailures = "task_failures_total"
	CronTaskDuration = "task_duration_seconds"

	HTTPRequests = "http_requests_total"
	HTTPDuration = "http_request_duration_seconds"

	RoutinePanics = "routine_panics_total"
)

const namespace = "regstats"

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value float64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}

// Name joins the namespace and parts into a metric name, e.g.
// Name("national", RefreshTotal) == "regstats_national_refresh_total".
// Characters outside [a-zA-Z0-9_] are replaced with '_'.
func Name(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteByte('_')
		for _, r := range p {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
				b.WriteRune(r)
			default:
				b.WriteByte('_')
			}
		}
	}
	return b.String()
}
