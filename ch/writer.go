package ch

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/routine"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

const drainGrace = 50 * time.Millisecond

type defaultWriter struct {
	config *WriterConfig
	logger logger.Logger
	conn   inserter
	runner routine.Runner

	dataChan *chanx.UnboundedChan[Row]
	cancel   context.CancelFunc

	done    chan struct{}
	started atomic.Bool
	closed  atomic.Bool
	written atomic.Int64
	failed  atomic.Int64
}

// newWriter creates a writer that inserts through conn
func newWriter(conn inserter, config *WriterConfig, log logger.Logger) *defaultWriter {
	if config == nil {
		config = DefaultWriterConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &defaultWriter{
		config:   config,
		logger:   log,
		conn:     conn,
		runner:   routine.New(log),
		dataChan: chanx.NewUnboundedChan[Row](ctx, config.FlushSize),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	log.Info("clickhouse writer initialized",
		zap.Duration("flush_interval", config.FlushInterval),
		zap.Int("flush_size", config.FlushSize),
		zap.Int("min_flush_size", config.MinFlushSize),
		zap.Duration("max_wait_time", config.MaxWaitTime),
	)
	return w
}

func (w *defaultWriter) Start() error {
	if w.closed.Load() {
		return ErrWriterClosed
	}
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}
	w.runner.GoNamed("ch-writer", w.processLoop)
	w.logger.Info("clickhouse writer started")
	return nil
}

func (w *defaultWriter) Write(ctx context.Context, rows ...Row) error {
	if w.closed.Load() {
		return ErrWriterClosed
	}
	for _, row := range rows {
		if row == nil {
			continue
		}
		if len(row.Columns()) != len(row.Values()) {
			return ErrInsert(row.Table(), ErrColumnMismatch)
		}
		select {
		case w.dataChan.In <- row:
		case <-ctx.Done():
			return ctx.Err()
		default:
			w.logger.Error("channel is full, data may be lost",
				zap.Int("channel_size", w.dataChan.Len()),
				zap.Int("rows", len(rows)),
			)
			return ErrBufferFull
		}
	}
	return nil
}

func (w *defaultWriter) Stats() WriterStats {
	return WriterStats{
		Written: w.written.Load(),
		Failed:  w.failed.Load(),
		Pending: w.dataChan.Len(),
	}
}

// Close flushes buffered rows and stops the writer
func (w *defaultWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.logger.Info("clickhouse writer shutting down")

	close(w.done)
	w.runner.Wait()
	w.cancel()

	w.logger.Info("clickhouse writer shutdown complete",
		zap.Int64("written", w.written.Load()),
		zap.Int64("failed", w.failed.Load()),
	)
	return nil
}

// batch groups the buffered rows of one table.
type batch struct {
	columns []string
	rows    [][]any
}

type buffer struct {
	tables map[string]*batch
	rows   int
	first  time.Time
}

func newBuffer() *buffer {
	return &buffer{tables: make(map[string]*batch)}
}

func (b *buffer) add(row Row) {
	if b.rows == 0 {
		b.first = time.Now()
	}
	t, ok := b.tables[row.Table()]
	if !ok {
		t = &batch{columns: row.Columns()}
		b.tables[row.Table()] = t
	}
	t.rows = append(t.rows, row.Values())
	b.rows++
}

func (w *defaultWriter) processLoop() {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	buf := newBuffer()
	for {
		select {
		case row := <-w.dataChan.Out:
			if row == nil {
				continue
			}
			buf.add(row)
			if buf.rows >= w.config.FlushSize {
				w.flush(buf)
				buf = newBuffer()
			}

		case <-ticker.C:
			if buf.rows > 0 && w.shouldFlush(buf) {
				w.flush(buf)
				buf = newBuffer()
			}

		case <-w.done:
			w.logger.Info("process loop stopping, draining remaining data",
				zap.Int("buffered_rows", buf.rows),
				zap.Int("pending_rows", w.dataChan.Len()),
			)
			w.drain(buf)
			if buf.rows > 0 {
				w.flush(buf)
			}
			return
		}
	}
}

// shouldFlush applies the MinFlushSize and MaxWaitTime strategy to a
// time-triggered flush
func (w *defaultWriter) shouldFlush(buf *buffer) bool {
	if w.config.MinFlushSize == 0 || buf.rows >= w.config.MinFlushSize {
		return true
	}
	if w.config.MaxWaitTime > 0 && time.Since(buf.first) >= w.config.MaxWaitTime {
		return true
	}
	w.logger.Debug("skipping flush, waiting for more data",
		zap.Int("current_rows", buf.rows),
		zap.Int("min_flush_size", w.config.MinFlushSize),
	)
	return false
}

// drain moves queued rows into buf until the queue has been quiet for
// drainGrace. Rows written concurrently with Close may be missed.
func (w *defaultWriter) drain(buf *buffer) {
	for {
		select {
		case row := <-w.dataChan.Out:
			if row != nil {
				buf.add(row)
			}
		case <-time.After(drainGrace):
			return
		}
	}
}

func (w *defaultWriter) flush(buf *buffer) {
	var ok, failed int
	for table, b := range buf.tables {
		ctx, cancel := w.insertContext()
		err := w.conn.insert(ctx, table, b.columns, b.rows)
		cancel()
		if err != nil {
			w.logger.Error("failed to batch insert", zap.String("table", table), zap.Error(err))
			failed += len(b.rows)
			continue
		}
		ok += len(b.rows)
	}
	w.written.Add(int64(ok))
	w.failed.Add(int64(failed))

	w.logger.Info("flush completed",
		zap.Int("total_rows", buf.rows),
		zap.Int("success_rows", ok),
		zap.Int("failed_rows", failed),
	)
}

func (w *defaultWriter) insertContext() (context.Context, context.CancelFunc) {
	if w.config.InsertTimeout > 0 {
		return context.WithTimeout(context.Background(), w.config.InsertTimeout)
	}
	return context.WithCancel(context.Background())
}

// insertQuery renders the INSERT prefix PrepareBatch expects.
func insertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "`" + c + "`"
	}
	return "INSERT INTO `" + table + "` (" + strings.Join(quoted, ", ") + ")"
}
