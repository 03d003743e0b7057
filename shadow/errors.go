package shadow

import "fmt"

// ErrInvalidConfig invalid config
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("shadow: invalid config: %s", msg)
}

// ErrEncode wraps a failure to serialize a document
func ErrEncode(err error) error {
	return fmt.Errorf("shadow: encode document: %w", err)
}

// ErrWrite wraps a failure to persist a document
func ErrWrite(err error) error {
	return fmt.Errorf("shadow: write document: %w", err)
}

// ErrRead wraps a failure to read a stored document
func ErrRead(err error) error {
	return fmt.Errorf("shadow: read document: %w", err)
}
