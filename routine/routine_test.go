package routine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func TestRunner_Go(t *testing.T) {
	runner := New(logger.NewNop())

	var executed atomic.Bool
	runner.Go(func() {
		executed.Store(true)
	})
	runner.Wait()

	if !executed.Load() {
		t.Error("expected function to be executed")
	}
}

func TestRunner_GoNamed_WithPanic(t *testing.T) {
	log, logs := newObservedLogger()

	var mu sync.Mutex
	var handled []string
	var handledErr error
	runner := New(log, WithPanicHandler(func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, name)
		handledErr = err
	}))

	var afterPanic atomic.Bool
	runner.GoNamed("refresh", func() {
		panic("boom")
	})
	runner.Go(func() {
		afterPanic.Store(true)
	})
	runner.Wait()

	if !afterPanic.Load() {
		t.Error("expected goroutine after panic to execute")
	}

	entries := logs.FilterMessage("goroutine panicked").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 panic log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["routine"]; got != "refresh" {
		t.Errorf("routine field = %v, want refresh", got)
	}

	if len(handled) != 1 || handled[0] != "refresh" {
		t.Errorf("panic handler calls = %v, want [refresh]", handled)
	}
	if !errors.Is(handledErr, ErrPanicRecovered) {
		t.Errorf("handler error %v does not wrap ErrPanicRecovered", handledErr)
	}
}

type ctxKey struct{}

func TestRunner_GoNamedWithContext(t *testing.T) {
	runner := New(logger.NewNop())

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "value"))
	var received atomic.Value
	var sawCancel atomic.Bool

	runner.GoNamedWithContext(ctx, "loop", func(ctx context.Context) {
		received.Store(ctx.Value(ctxKey{}))
		<-ctx.Done()
		sawCancel.Store(true)
	})
	cancel()
	runner.Wait()

	if received.Load() != "value" {
		t.Errorf("expected context value to propagate, got %v", received.Load())
	}
	if !sawCancel.Load() {
		t.Error("expected goroutine to observe cancellation")
	}
}

func TestRunner_Wait_MultipleGoroutines(t *testing.T) {
	runner := New(logger.NewNop())

	var counter atomic.Int32
	for i := 0; i < 50; i++ {
		runner.Go(func() {
			counter.Add(1)
		})
	}
	runner.Wait()

	if got := counter.Load(); got != 50 {
		t.Errorf("expected 50 executions, got %d", got)
	}
}

func TestErrPanic(t *testing.T) {
	err := ErrPanic("bad state")
	if !errors.Is(err, ErrPanicRecovered) {
		t.Fatal("expected ErrPanic to wrap ErrPanicRecovered")
	}
	if err.Error() != "routine: panic recovered: bad state" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
