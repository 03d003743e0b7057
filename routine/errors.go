package routine

import (
	"errors"
	"fmt"
)

// ErrPanicRecovered is wrapped by every error built from a recovered panic.
var ErrPanicRecovered = errors.New("routine: panic recovered")

// ErrPanic wraps ErrPanicRecovered with the recovered value.
func ErrPanic(recovered any) error {
	return fmt.Errorf("%w: %v", ErrPanicRecovered, recovered)
}
