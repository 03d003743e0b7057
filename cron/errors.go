package cron

import (
	"errors"
	"fmt"
)

var (
	ErrNoTasks        = errors.New("cron: chain has no tasks")
	ErrInvalidSpec    = errors.New("cron: invalid schedule")
	ErrCronClosed     = errors.New("cron: scheduler closed")
	ErrDuplicateChain = errors.New("cron: chain already registered")
	ErrUnknownChain   = errors.New("cron: chain not registered")
)

// ErrTaskFailed names the task that stopped a chain run.
func ErrTaskFailed(chain, task string, err error) error {
	return fmt.Errorf("cron: chain %s aborted at task %s: %w", chain, task, err)
}
