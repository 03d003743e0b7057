// Package routine runs background work (refresh cycles, schedulers, event
// consumers) in goroutines that recover from panics instead of taking the
// process down.
package routine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

// Runner starts goroutines that log and swallow panics, and waits for them.
type Runner interface {
	Go(fn func())
	// GoNamed tags the panic log entry with name.
	GoNamed(name string, fn func())
	GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context))
	// Wait blocks until every goroutine started by the runner has returned.
	Wait()
}

// PanicHandler is called after a recovered panic has been logged.
type PanicHandler func(name string, err error)

// Option configures a Runner.
type Option func(*runner)

// WithPanicHandler registers h for every recovered panic.
func WithPanicHandler(h PanicHandler) Option {
	return func(r *runner) { r.onPanic = h }
}

type runner struct {
	log     logger.Logger
	onPanic PanicHandler
	wg      sync.WaitGroup
}

// New returns a Runner logging panics to log.
func New(log logger.Logger, opts ...Option) Runner {
	r := &runner{log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *runner) Go(fn func()) { r.GoNamed("", fn) }

func (r *runner) GoNamed(name string, fn func()) {
	r.GoNamedWithContext(context.Background(), name, func(context.Context) { fn() })
}

func (r *runner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.handlePanic(name)
		fn(ctx)
	}()
}

func (r *runner) Wait() { r.wg.Wait() }

func (r *runner) handlePanic(name string) {
	rec := recover()
	if rec == nil {
		return
	}
	fields := make([]zap.Field, 0, 3)
	if name != "" {
		fields = append(fields, zap.String("routine", name))
	}
	fields = append(fields, zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
	r.log.Error("goroutine panicked", fields...)

	if r.onPanic != nil {
		r.onPanic(name, ErrPanic(rec))
	}
}
