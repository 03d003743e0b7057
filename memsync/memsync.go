// Package memsync copies the registry tables into MEMORY-engine twins that
// the statistics sources read from.
package memsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MySQL error numbers for missing privileges on SET GLOBAL.
const (
	errSpecificAccessDenied = 1227
	errAccessDenied         = 1045
)

// Status values written to the metadata table.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Result is the outcome of syncing one table.
type Result struct {
	Source   string        `json:"source"`
	Table    string        `json:"table"`
	Success  bool          `json:"success"`
	Records  int64         `json:"records"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Summary is the outcome of one run over every configured table.
type Summary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Results   []Result      `json:"results"`
}

// Succeeded returns the number of tables synced successfully.
func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Records returns the rows copied by successful tables.
func (s *Summary) Records() int64 {
	var n int64
	for _, r := range s.Results {
		if r.Success {
			n += r.Records
		}
	}
	return n
}

// OK reports whether every table synced.
func (s *Summary) OK() bool {
	return s.Succeeded() == len(s.Results)
}

// Err returns ErrPartial when any table failed.
func (s *Summary) Err() error {
	if s.OK() {
		return nil
	}
	return ErrPartial(len(s.Results)-s.Succeeded(), len(s.Results))
}

// TableStats describes a memory table as reported by information_schema.
type TableStats struct {
	Table       string `json:"table"`
	Engine      string `json:"engine"`
	Rows        int64  `json:"rows"`
	DataLength  int64  `json:"data_length"`
	IndexLength int64  `json:"index_length"`
}

// Metadata is one row of the sync metadata table.
type Metadata struct {
	Table               string     `gorm:"column:table_name" json:"table"`
	LastSyncTime        *time.Time `gorm:"column:last_sync_time" json:"last_sync_time"`
	RecordCount         int64      `gorm:"column:record_count" json:"record_count"`
	SyncDurationSeconds float64    `gorm:"column:sync_duration_seconds" json:"sync_duration_seconds"`
	SyncStatus          string     `gorm:"column:sync_status" json:"sync_status"`
	ErrorMessage        *string    `gorm:"column:error_message" json:"error_message"`
}

// Syncer runs the copy.
type Syncer struct {
	db        db.Database
	cfg       *Config
	log       logger.Logger
	collector metrics.Collector
	now       func() time.Time
}

// New creates a Syncer. A nil collector disables metrics.
func New(database db.Database, cfg *Config, log logger.Logger, collector metrics.Collector) (*Syncer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if collector == nil {
		collector = metrics.NewNoop()
	}
	return &Syncer{
		db:        database,
		cfg:       cfg,
		log:       log,
		collector: collector,
		now:       time.Now,
	}, nil
}

// SyncAll copies every configured table on a single connection so the
// session heap limits apply to every copy. A failing table does not stop
// the run; the returned error is only for failures to obtain a connection
// or a cancelled context.
func (s *Syncer) SyncAll(ctx context.Context) (*Summary, error) {
	gdb, err := s.db.DB()
	if err != nil {
		return nil, err
	}

	summary := &Summary{StartedAt: s.now()}
	s.collector.IncCounter(metrics.Name(metrics.MemsyncRuns), 1)
	s.log.Info("memory sync started", zap.Int("tables", len(s.cfg.Tables)))

	err = gdb.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		s.setHeapLimits(conn)
		for i, m := range s.cfg.Tables {
			if i > 0 && s.cfg.Pause > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.cfg.Pause):
				}
			}
			r := s.syncTable(conn, m)
			s.recordMetadata(conn, r)
			summary.Results = append(summary.Results, r)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		return nil
	})
	summary.Duration = s.now().Sub(summary.StartedAt)
	s.collector.ObserveHistogram(metrics.Name(metrics.MemsyncDuration), summary.Duration.Seconds())

	if err != nil {
		s.collector.IncCounter(metrics.Name(metrics.MemsyncFailures), 1)
		return summary, err
	}
	if !summary.OK() {
		s.collector.IncCounter(metrics.Name(metrics.MemsyncFailures), 1)
	}
	s.log.Info("memory sync finished",
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("tables", len(summary.Results)),
		zap.Int64("records", summary.Records()),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// setHeapLimits raises the MEMORY table size limits. The global setting
// needs SUPER and is skipped without it; the session setting always applies.
func (s *Syncer) setHeapLimits(conn *gorm.DB) {
	size := s.cfg.HeapTableSize
	if size == 0 {
		return
	}
	if err := conn.Exec("SET GLOBAL max_heap_table_size = ?", size).Error; err != nil {
		if isAccessDenied(err) {
			s.log.Warn("no privilege to set global heap table size, using session only")
		} else {
			s.log.Warn("failed to set global heap table size", zap.Error(err))
		}
	} else if err := conn.Exec("SET GLOBAL tmp_table_size = ?", size).Error; err != nil {
		s.log.Warn("failed to set global tmp table size", zap.Error(err))
	}

	if err := conn.Exec("SET SESSION max_heap_table_size = ?", size).Error; err != nil {
		s.log.Warn("failed to set session heap table size", zap.Error(err))
		return
	}
	if err := conn.Exec("SET SESSION tmp_table_size = ?", size).Error; err != nil {
		s.log.Warn("failed to set session tmp table size", zap.Error(err))
	}
}

func isAccessDenied(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errSpecificAccessDenied || me.Number == errAccessDenied
	}
	return false
}

func quote(name string) string {
	return "`" + name + "`"
}

// syncTable rebuilds m.Target from m.Source: the ALTER re-creates the table
// under the current heap limit, then it is truncated and refilled.
func (s *Syncer) syncTable(conn *gorm.DB, m Mapping) Result {
	start := s.now()
	r := Result{Source: m.Source, Table: m.Target}
	fail := func(step string, err error) Result {
		r.Err = ErrTable(m.Target, step, err)
		r.Duration = s.now().Sub(start)
		s.log.Error("table sync failed",
			zap.String("source", m.Source),
			zap.String("table", m.Target),
			zap.String("step", step),
			zap.Error(err),
		)
		return r
	}

	target, source := quote(m.Target), quote(m.Source)
	if err := conn.Exec("ALTER TABLE " + target + " ENGINE=MEMORY").Error; err != nil {
		return fail("alter engine", err)
	}
	if err := conn.Exec("TRUNCATE TABLE " + target).Error; err != nil {
		return fail("truncate", err)
	}

	var want int64
	if err := conn.Raw("SELECT COUNT(*) FROM " + source).Scan(&want).Error; err != nil {
		return fail("count source", err)
	}
	if want == 0 {
		r.Success = true
		r.Duration = s.now().Sub(start)
		s.log.Warn("source table is empty, skipping copy", zap.String("source", m.Source))
		return r
	}

	if err := conn.Exec("INSERT INTO " + target + " SELECT * FROM " + source).Error; err != nil {
		return fail("copy", err)
	}

	var got int64
	if err := conn.Raw("SELECT COUNT(*) FROM " + target).Scan(&got).Error; err != nil {
		return fail("count target", err)
	}
	r.Records = got
	if got != want {
		return fail("verify", ErrCountMismatch(m.Target, want, got))
	}

	r.Success = true
	r.Duration = s.now().Sub(start)
	s.log.Info("table synced",
		zap.String("source", m.Source),
		zap.String("table", m.Target),
		zap.Int64("records", got),
		zap.Duration("duration", r.Duration),
	)
	return r
}

// recordMetadata updates the status row of r.Table. Failures are logged
// and otherwise ignored.
func (s *Syncer) recordMetadata(conn *gorm.DB, r Result) {
	status := StatusSuccess
	var message *string
	if !r.Success {
		status = StatusFailed
		msg := "sync failed"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		message = &msg
	}

	sql := fmt.Sprintf(`UPDATE %s SET last_sync_time = ?, record_count = ?, sync_duration_seconds = ?,
		sync_status = ?, error_message = ? WHERE table_name = ?`, quote(s.cfg.MetadataTable))
	err := conn.Exec(sql, s.now(), r.Records, r.Duration.Seconds(), status, message, r.Table).Error
	if err != nil {
		s.log.Warn("failed to update sync metadata", zap.String("table", r.Table), zap.Error(err))
	}
}

// Stats reports the size of every *_memory table in the current schema.
func (s *Syncer) Stats(ctx context.Context) ([]TableStats, error) {
	gdb, err := s.db.DB()
	if err != nil {
		return nil, err
	}
	var stats []TableStats
	err = gdb.WithContext(ctx).Raw(`SELECT table_name AS ` + "`table`" + `, engine,
		COALESCE(table_rows, 0) AS ` + "`rows`" + `,
		COALESCE(data_length, 0) AS data_length, COALESCE(index_length, 0) AS index_length
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name LIKE '%\_memory'
		ORDER BY table_name`).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Metadata returns the status row of every table recorded by past runs.
func (s *Syncer) Metadata(ctx context.Context) ([]Metadata, error) {
	gdb, err := s.db.DB()
	if err != nil {
		return nil, err
	}
	var rows []Metadata
	err = gdb.WithContext(ctx).Raw(fmt.Sprintf(`SELECT table_name, last_sync_time,
		COALESCE(record_count, 0) AS record_count,
		COALESCE(sync_duration_seconds, 0) AS sync_duration_seconds,
		COALESCE(sync_status, '') AS sync_status, error_message
		FROM %s ORDER BY table_name`, quote(s.cfg.MetadataTable))).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
