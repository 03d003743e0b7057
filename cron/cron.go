// Package cron runs named chains of tasks on cron schedules. Tasks in a
// chain run sequentially and share data through SharedData.
package cron

import (
	"context"
	"time"

	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
)

// Task is the interface for a cron task
// Each task must have a unique name and implement the Run method
type Task interface {
	// Name returns the unique identifier for this task
	Name() string
	// Run executes the task with the given context
	// The context carries SharedData for inter-task communication
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
func TaskFunc(name string, fn func(ctx context.Context) error) Task {
	return &wrappedTask{name: name, exec: fn}
}

// Chain represents a chain of tasks that execute sequentially
type Chain struct {
	// Name is the name of the chain
	Name string
	// Spec is the cron spec for the chain
	Spec string
	// Tasks are the tasks in the chain
	Tasks []Task
}

// Cron is the interface for managing cron jobs
type Cron interface {
	// Start begins the cron scheduler
	Start()
	// Close stops the cron scheduler, cancels running chains and waits for
	// them to return
	Close()
	// AddTasks adds a chain of tasks to be executed according to the cron spec
	// The spec uses six fields, seconds first, or a descriptor like "@every 10m"
	// Tasks are executed sequentially, and if any task fails, the chain is aborted
	AddTasks(name string, spec string, tasks ...Task) error
	// AddChain is alias for AddTasks
	AddChain(chain Chain) error
	// RunChain runs a registered chain once, outside its schedule, and
	// returns the first task error
	RunChain(ctx context.Context, name string) error
}

type options struct {
	middlewares  []Middleware
	collector    metrics.Collector
	location     *time.Location
	chainTimeout time.Duration
}

// Option configures a Cron.
type Option func(*options)

// WithMiddleware appends middlewares applied to every task after the
// built-in ones.
func WithMiddleware(mws ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mws...)
	}
}

// WithCollector records per-task runs, failures and durations.
func WithCollector(c metrics.Collector) Option {
	return func(o *options) {
		o.collector = c
	}
}

// WithLocation sets the time zone schedules are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// WithChainTimeout bounds each scheduled chain run.
func WithChainTimeout(d time.Duration) Option {
	return func(o *options) {
		o.chainTimeout = d
	}
}

// NewCron creates a new cron manager with the given logger and options
// Built-in middlewares, outermost first: recovery, logging, and metrics
// when a collector is configured
func NewCron(log logger.Logger, opts ...Option) Cron {
	o := &options{location: time.Local}
	for _, opt := range opts {
		opt(o)
	}

	mws := []Middleware{
		recoveryMiddleware(log),
		loggingMiddleware(log),
	}
	if o.collector != nil {
		mws = append(mws, metricsMiddleware(o.collector))
	}
	o.middlewares = append(mws, o.middlewares...)
	return newCronManager(log, o)
}
