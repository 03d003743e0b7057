package cron

import (
	"context"
	"fmt"
	"sync"

	"github.com/dailyyoga/regstats/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// chainJob represents a chain of tasks that execute sequentially
type chainJob struct {
	name    string
	tasks   []Task
	logger  logger.Logger
	manager *cronManager
}

// Run is called by the scheduler. It derives the chain context from the
// manager so Close cancels a running chain.
func (j *chainJob) Run() {
	ctx, cancel := j.manager.chainContext()
	defer cancel()
	_ = j.run(ctx)
}

// run executes all tasks in the chain sequentially
// If any task fails, the chain is aborted and subsequent tasks are not executed
func (j *chainJob) run(ctx context.Context) error {
	shared := &SharedData{}
	ctx = WithSharedData(ctx, shared)

	j.logger.Info("chain job started", zap.String("chain_name", j.name))

	for _, task := range j.tasks {
		if err := task.Run(ctx); err != nil {
			j.logger.Error("chain job aborted due to task failure",
				zap.String("chain_name", j.name),
				zap.String("task_name", task.Name()),
				zap.Error(err),
			)
			return ErrTaskFailed(j.name, task.Name(), err)
		}
	}

	j.logger.Info("chain job completed", zap.String("chain_name", j.name))
	return nil
}

// cronManager is the default implementation of the Cron interface
type cronManager struct {
	cron   *cron.Cron
	opts   *options
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	chains map[string]*chainJob
	closed bool
}

// newCronManager creates a new cron manager instance. Overlapping runs of
// the same chain are skipped.
func newCronManager(log logger.Logger, o *options) *cronManager {
	cl := &cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &cronManager{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(o.location),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		opts:   o,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		chains: make(map[string]*chainJob),
	}
}

func (m *cronManager) chainContext() (context.Context, context.CancelFunc) {
	if m.opts.chainTimeout > 0 {
		return context.WithTimeout(m.ctx, m.opts.chainTimeout)
	}
	return context.WithCancel(m.ctx)
}

// Start begins the cron scheduler
func (m *cronManager) Start() {
	m.cron.Start()
}

// Close stops the cron scheduler and waits for running jobs to complete
func (m *cronManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// AddTasks adds a chain of tasks to be executed according to the cron spec
// The spec follows the standard cron format with support for seconds (6 fields)
// Example: "0 0 3 * * *" (every day at 03:00:00)
func (m *cronManager) AddTasks(name, spec string, tasks ...Task) error {
	if len(tasks) == 0 {
		return ErrNoTasks
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrCronClosed
	}
	if _, ok := m.chains[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateChain, name)
	}

	// apply middlewares to all tasks
	wrappedTasks := make([]Task, len(tasks))
	for i, task := range tasks {
		wrapTask := &wrappedTask{
			name: fmt.Sprintf("%s:%s", name, task.Name()),
			exec: task.Run,
		}
		wrappedTasks[i] = applyMiddlewares(wrapTask, m.opts.middlewares...)
	}

	job := &chainJob{
		name:    name,
		tasks:   wrappedTasks,
		logger:  m.logger,
		manager: m,
	}

	if _, err := m.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("%w: chain %s spec %q: %w", ErrInvalidSpec, name, spec, err)
	}
	m.chains[name] = job

	m.logger.Info("chain added",
		zap.String("chain_name", name),
		zap.String("spec", spec),
		zap.Int("task_count", len(tasks)),
	)

	return nil
}

// AddChain is alias for AddTasks
func (m *cronManager) AddChain(chain Chain) error {
	return m.AddTasks(chain.Name, chain.Spec, chain.Tasks...)
}

// RunChain runs the named chain once on the caller's goroutine
func (m *cronManager) RunChain(ctx context.Context, name string) error {
	m.mu.Lock()
	job, ok := m.chains[name]
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return ErrCronClosed
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChain, name)
	}
	return job.run(ctx)
}

// cronLogger adapts logger.Logger to the scheduler's logging interface.
type cronLogger struct {
	log logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(kv []any) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, zap.Any(key, kv[i+1]))
	}
	return out
}
