package memsync

import "fmt"

// ErrInvalidConfig returns an error describing an invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("memsync: invalid config: %s", msg)
}

// ErrCountMismatch reports a copy whose target row count differs from the source
func ErrCountMismatch(table string, source, target int64) error {
	return fmt.Errorf("memsync: %s holds %d rows after copying %d", table, target, source)
}

// ErrTable wraps a failed statement against one table
func ErrTable(table, step string, err error) error {
	return fmt.Errorf("memsync: %s: %s: %w", table, step, err)
}

// ErrPartial reports a run in which some tables failed
func ErrPartial(failed, total int) error {
	return fmt.Errorf("memsync: %d of %d tables failed to sync", failed, total)
}
