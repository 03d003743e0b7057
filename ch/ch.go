// Package ch writes rows to ClickHouse in batches.
package ch

import "context"

// Row is one record destined for a ClickHouse table. Values must line up
// with Columns and already carry the column's Go type.
type Row interface {
	Table() string
	Columns() []string
	Values() []any
}

// Writer buffers rows and inserts them in batches per table
type Writer interface {
	Start() error
	Close() error
	// Write enqueues rows without blocking on ClickHouse
	Write(ctx context.Context, rows ...Row) error
	// Stats returns counters since Start
	Stats() WriterStats
}

// WriterStats counts rows by outcome.
type WriterStats struct {
	Written int64 `json:"written"`
	Failed  int64 `json:"failed"`
	Pending int   `json:"pending"`
}

// Client is the ClickHouse client used for DDL and batch writes
type Client interface {
	// Writer returns the batch writer, creating it on first use
	Writer() (Writer, error)
	// Exec runs a statement that returns no rows
	Exec(ctx context.Context, query string, args ...any) error
	// Close closes the writer and the connection
	Close() error
}

// inserter sends one batch of rows to a table.
type inserter interface {
	insert(ctx context.Context, table string, columns []string, rows [][]any) error
}
