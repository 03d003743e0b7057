package ch

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferFull is returned by Write when the pending rows reach the
	// buffer limit; the rows are dropped
	ErrBufferFull = errors.New("ch: writer buffer is full")
	// ErrWriterClosed is returned by Write after Close
	ErrWriterClosed = errors.New("ch: writer is closed")
	// ErrConnectionClosed is returned by Exec and Query after Close
	ErrConnectionClosed = errors.New("ch: connection is closed")
	// ErrColumnMismatch rejects a row whose values do not line up with its columns
	ErrColumnMismatch = errors.New("ch: row values do not match columns")
)

// ErrInvalidConfig describes an invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("ch: invalid config: %s", msg)
}

// ErrConnection wraps a failure to open or ping the server
func ErrConnection(err error) error {
	return fmt.Errorf("ch: connect failed: %w", err)
}

// ErrInsert wraps a failed batch insert into table
func ErrInsert(table string, err error) error {
	return fmt.Errorf("ch: insert into %s failed: %w", table, err)
}
