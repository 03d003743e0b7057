package events

import (
	"context"
	"fmt"
	"time"

	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/ch"
	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

var historyColumns = []string{
	"cache", "refresh_id", "trigger", "success", "error", "attempts",
	"started_at", "finished_at", "duration_ms", "region_count", "degraded",
}

// historyRow is one refresh attempt as stored in ClickHouse.
type historyRow struct {
	table string
	ev    cache.RefreshEvent
}

func (r historyRow) Table() string     { return r.table }
func (r historyRow) Columns() []string { return historyColumns }

func (r historyRow) Values() []any {
	degraded := r.ev.Degraded
	if degraded == nil {
		degraded = []string{}
	}
	return []any{
		r.ev.Cache,
		r.ev.RefreshID,
		string(r.ev.Trigger),
		r.ev.Success,
		r.ev.Error,
		uint32(r.ev.Attempts),
		r.ev.StartedAt.UTC(),
		r.ev.FinishedAt.UTC(),
		uint64(r.ev.Duration / time.Millisecond),
		uint32(r.ev.RegionCount),
		degraded,
	}
}

// HistoryDDL returns the statement creating the history table.
func HistoryDDL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` ("+`
	cache        LowCardinality(String),
	refresh_id   String,
	trigger      LowCardinality(String),
	success      Bool,
	error        String,
	attempts     UInt32,
	started_at   DateTime64(3, 'UTC'),
	finished_at  DateTime64(3, 'UTC'),
	duration_ms  UInt64,
	region_count UInt32,
	degraded     Array(String)
) ENGINE = MergeTree
ORDER BY (cache, started_at)`, table)
}

// History records refresh attempts through a batched ClickHouse writer.
type History struct {
	writer ch.Writer
	table  string
	log    logger.Logger
}

var _ cache.Listener = (*History)(nil)

// NewHistory creates a recorder writing to table.
func NewHistory(writer ch.Writer, table string, log logger.Logger) *History {
	return &History{writer: writer, table: table, log: log}
}

// OnRefresh implements cache.Listener. The row is queued; it never waits
// on ClickHouse.
func (h *History) OnRefresh(ctx context.Context, ev cache.RefreshEvent) {
	if err := h.writer.Write(ctx, historyRow{table: h.table, ev: ev}); err != nil {
		h.log.Warn("failed to queue refresh history", zap.String("cache", ev.Cache), zap.Error(err))
	}
}
