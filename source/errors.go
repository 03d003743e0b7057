package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/dailyyoga/regstats/db"
)

// ErrSourceUnavailable means the backing store could not be reached. It
// aborts a fetch and is the only error class the cache retries.
var ErrSourceUnavailable = errors.New("source: backing store unavailable")

// ErrUnavailable wraps err so that errors.Is(result, ErrSourceUnavailable).
func ErrUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}

// QueryError reports that the aggregation behind one metric failed.
type QueryError struct {
	Metric string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("source: query %q failed: %v", e.Metric, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// classify decides whether err from the query for metric aborts the whole
// fetch (unavailable, cancelled) or only degrades that metric.
func classify(metric string, err error) (fatal error, perMetric error) {
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		return err, nil
	case errors.Is(err, context.Canceled):
		return err, nil
	case db.IsTransient(err):
		return ErrUnavailable(err), nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return nil, qe
	}
	return nil, &QueryError{Metric: metric, Err: err}
}
