package cron

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/dailyyoga/regstats/routine"
	"go.uber.org/zap"
)

// Middleware decorates a task. The first middleware given runs outermost.
type Middleware func(Task) Task

func applyMiddlewares(t Task, mws ...Middleware) Task {
	for i := len(mws) - 1; i >= 0; i-- {
		t = mws[i](t)
	}
	return t
}

// around builds a middleware that keeps the task name and replaces Run.
func around(fn func(ctx context.Context, next Task) error) Middleware {
	return func(next Task) Task {
		return TaskFunc(next.Name(), func(ctx context.Context) error {
			return fn(ctx, next)
		})
	}
}

// recoveryMiddleware turns a panic into routine.ErrPanicRecovered so the
// chain stops instead of the scheduler goroutine dying.
func recoveryMiddleware(log logger.Logger) Middleware {
	return around(func(ctx context.Context, next Task) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error("task panicked",
				zap.String("task", next.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = routine.ErrPanic(r)
		}()
		return next.Run(ctx)
	})
}

func loggingMiddleware(log logger.Logger) Middleware {
	return around(func(ctx context.Context, next Task) error {
		task := zap.String("task", next.Name())
		log.Info("task started", task)

		start := time.Now()
		err := next.Run(ctx)
		took := zap.Duration("duration", time.Since(start))

		if err != nil {
			log.Error("task failed", task, took, zap.Error(err))
			return err
		}
		log.Info("task completed", task, took)
		return nil
	})
}

// metricsMiddleware records cron.<task>.task_runs_total, task_failures_total
// and task_duration_seconds.
func metricsMiddleware(c metrics.Collector) Middleware {
	return func(next Task) Task {
		var (
			runs     = metrics.Name("cron", next.Name(), metrics.CronTaskRuns)
			failures = metrics.Name("cron", next.Name(), metrics.CronTaskFailures)
			duration = metrics.Name("cron", next.Name(), metrics.CronTaskDuration)
		)
		return TaskFunc(next.Name(), func(ctx context.Context) error {
			start := time.Now()
			err := next.Run(ctx)
			c.ObserveHistogram(duration, time.Since(start).Seconds())
			c.IncCounter(runs, 1)
			if err != nil {
				c.IncCounter(failures, 1)
			}
			return err
		})
	}
}

type wrappedTask struct {
	name string
	exec func(ctx context.Context) error
}

func (w *wrappedTask) Name() string { return w.name }

func (w *wrappedTask) Run(ctx context.Context) error { return w.exec(ctx) }
