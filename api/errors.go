package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCaches is returned when a server is created without any mount
	ErrNoCaches = errors.New("api: at least one cache mount is required")
	// ErrServerStarted is returned by a second call to Start
	ErrServerStarted = errors.New("api: server already started")
)

// ErrInvalidConfig returns an error describing an invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("api: invalid config: %s", msg)
}

// ErrInvalidMount reports a mount that cannot be routed
func ErrInvalidMount(prefix, msg string) error {
	return fmt.Errorf("api: invalid mount %q: %s", prefix, msg)
}

// ErrListen wraps a listener failure
func ErrListen(addr string, err error) error {
	return fmt.Errorf("api: listen on %s failed: %w", addr, err)
}
