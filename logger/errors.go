package logger

import (
	"fmt"
	"strings"
)

// ErrBuildLogger wraps a zap build failure, usually an unwritable output path
func ErrBuildLogger(err error) error {
	return fmt.Errorf("logger: build failed: %w", err)
}

// ErrInvalidLevel reports a level zap does not understand
func ErrInvalidLevel(level string, err error) error {
	return fmt.Errorf("logger: invalid level %q: %w", level, err)
}

// ErrInvalidEncoding reports an encoding outside validEncodings
func ErrInvalidEncoding(encoding string) error {
	return fmt.Errorf("logger: invalid encoding %q, must be one of: %s", encoding, strings.Join(validEncodings, ", "))
}

// ErrInvalidOutput reports an empty entry in an output path list
func ErrInvalidOutput(field string) error {
	return fmt.Errorf("logger: %s must not contain empty paths", field)
}
