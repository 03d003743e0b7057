package cache

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheEmpty is returned by Get when no snapshot has ever been
	// published and the bootstrap refresh failed or is disabled.
	ErrCacheEmpty = errors.New("cache: no snapshot available")
	// ErrAlreadyStarted is returned by a second call to Start
	ErrAlreadyStarted = errors.New("cache: already started")
	// ErrStopped is returned when operations are attempted on a stopped manager
	ErrStopped = errors.New("cache: manager is stopped")
	// ErrNilSource is returned when a manager is created without a source
	ErrNilSource = errors.New("cache: source is required")
)

// ErrInvalidConfig returns an error describing an invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("cache: invalid config: %s", msg)
}

// ErrEmpty returns ErrCacheEmpty annotated with the bootstrap failure
func ErrEmpty(cause error) error {
	if cause == nil {
		return ErrCacheEmpty
	}
	return fmt.Errorf("%w: bootstrap refresh failed: %w", ErrCacheEmpty, cause)
}

// ErrRefresh wraps a failed refresh
func ErrRefresh(err error) error {
	return fmt.Errorf("cache: refresh failed: %w", err)
}

// ErrFetchTimeout reports a refresh that exceeded its fetch timeout
func ErrFetchTimeout(timeout time.Duration, err error) error {
	return fmt.Errorf("cache: fetch exceeded %s: %w", timeout, err)
}
