package kafka

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConsumerInstances is returned by Start when InstanceNum produced
	// no consumers
	ErrNoConsumerInstances = errors.New("kafka: consumer has no instances")
	// ErrClosed is returned by Start and Produce after Close
	ErrClosed = errors.New("kafka: client is closed")
)

// ErrInvalidConfig describes an invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("kafka: invalid config: %s", msg)
}

// ErrInvalidMessage rejects a message before it is produced
func ErrInvalidMessage(msg string) error {
	return fmt.Errorf("kafka: invalid message: %s", msg)
}

// ErrConnection wraps a failed cluster check or client creation
func ErrConnection(err error) error {
	return fmt.Errorf("kafka: connect failed: %w", err)
}

// ErrSubscribe wraps a failed topic subscription
func ErrSubscribe(topics []string, err error) error {
	return fmt.Errorf("kafka: subscribe %v failed: %w", topics, err)
}

// ErrConsume wraps a poll error the consume loop cannot continue from
func ErrConsume(err error) error {
	return fmt.Errorf("kafka: poll failed: %w", err)
}

// ErrCommit wraps a failed offset commit
func ErrCommit(err error) error {
	return fmt.Errorf("kafka: commit failed: %w", err)
}
