package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// ErrConnectionNotEstablished is returned when every connect attempt failed.
var ErrConnectionNotEstablished = errors.New("db: no connection to the registry database")

// ErrInvalidConfig reports a rejected Config field.
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("db: invalid config: %s", msg)
}

// ErrConnection wraps a failed open or ping.
func ErrConnection(err error) error {
	return fmt.Errorf("db: connect: %w", err)
}

// driver error texts that mean the server could not be reached
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"too many connections",
	"temporary failure",
	"network is unreachable",
	"bad connection",
	"invalid connection",
	"server has gone away",
	"lost connection",
	"no such host",
}

// IsTransient reports whether err looks like the database being unreachable
// rather than a problem with a particular statement.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, ErrConnectionNotEstablished) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
