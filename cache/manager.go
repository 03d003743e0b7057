package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/dailyyoga/regstats/routine"
	"github.com/dailyyoga/regstats/shadow"
	"github.com/dailyyoga/regstats/snapshot"
	"github.com/dailyyoga/regstats/source"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	shadowTimeout   = 10 * time.Second
	listenerTimeout = 5 * time.Second
)

// cycle is one refresh; callers of Refresh wait on done.
type cycle struct {
	trigger Trigger
	done    chan struct{}
	err     error
}

// Manager serves one dataset's snapshot and drives its refreshes.
type Manager struct {
	cfg       *Config
	name      string
	log       logger.Logger
	source    source.Source
	store     *Store
	shadow    shadow.Shadow
	collector metrics.Collector
	listeners []Listener
	clk       clock.Clock
	runner    routine.Runner

	mu                  sync.Mutex
	state               State
	started             bool
	stopped             bool
	pending             bool
	inflight            *cycle
	lastErr             error
	lastAttemptAt       time.Time
	consecutiveFailures int

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewManager creates a manager. Start must be called to enable the
// periodic refresh; Get, Refresh and ForceRefresh work without it.
func NewManager(cfg *Config, src source.Source, log logger.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig("config is required")
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNilSource
	}

	m := &Manager{
		cfg:       cfg,
		name:      cfg.Name,
		log:       log,
		source:    src,
		store:     NewStore(),
		collector: metrics.NewNoop(),
		clk:       clock.New(),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.runner = routine.New(log, routine.WithPanicHandler(func(string, error) {
		m.collector.IncCounter(m.metric(metrics.RoutinePanics), 1)
	}))
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m, nil
}

// Name returns the cache name.
func (m *Manager) Name() string {
	return m.name
}

func (m *Manager) metric(suffix string) string {
	return metrics.Name(m.name, suffix)
}

// Start restores the shadow snapshot, starts the refresh ticker and, with
// WarmOnStart, forces one refresh when there is nothing fresh to serve. It
// does not wait for that refresh.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	restored, seeded := m.restore(ctx)

	interval := m.cfg.RefreshInterval()
	ticker := m.clk.Ticker(interval)
	m.store.SetNext(m.clk.Now().Add(interval))
	m.runner.GoNamedWithContext(m.ctx, m.name+"-refresh-loop", func(ctx context.Context) {
		m.loop(ctx, ticker)
	})

	m.log.Info("cache manager started",
		zap.String("cache", m.name),
		zap.Duration("interval", interval),
		zap.Bool("restored", seeded),
	)

	// A snapshot published before Start is fresh; only a seeded one can be
	// stale.
	if m.cfg.WarmOnStart && (m.store.Current() == nil || (seeded && restored.Expired(m.clk.Now()))) {
		m.log.Info("warming cache", zap.String("cache", m.name))
		m.ForceRefresh()
	}
	return nil
}

// restore seeds the store from the shadow. seeded is false when there was
// no document or a snapshot had already been published.
func (m *Manager) restore(ctx context.Context) (doc *shadow.Document, seeded bool) {
	if m.shadow == nil {
		return nil, false
	}
	doc, err := m.shadow.Load(ctx)
	if err != nil {
		m.log.Warn("failed to load shadow snapshot", zap.String("cache", m.name), zap.Error(err))
		return nil, false
	}
	if doc == nil {
		m.log.Info("no shadow snapshot found", zap.String("cache", m.name))
		return nil, false
	}

	var last, next time.Time
	if doc.LastRefreshAt != nil {
		last = *doc.LastRefreshAt
	}
	if doc.NextRefreshAt != nil {
		next = *doc.NextRefreshAt
	}
	if !m.store.Seed(doc.Snapshot, last, next) {
		m.log.Info("snapshot already published, ignoring shadow", zap.String("cache", m.name))
		return doc, false
	}
	m.log.Info("restored snapshot from shadow",
		zap.String("cache", m.name),
		zap.Time("generated_at", doc.Snapshot.GeneratedAt),
		zap.Int("regions", doc.Snapshot.RegionCount()),
	)
	return doc, true
}

func (m *Manager) loop(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("stopping refresh loop", zap.String("cache", m.name))
			return
		case <-ticker.C:
			m.onTick()
		}
	}
}

// onTick starts a refresh unless one is already running, in which case the
// tick is dropped.
func (m *Manager) onTick() {
	m.store.SetNext(m.clk.Now().Add(m.cfg.RefreshInterval()))

	c, ok := m.begin(TriggerTick)
	if !ok {
		m.collector.IncCounter(m.metric(metrics.RefreshSkippedTicks), 1)
		m.log.Info("refresh in progress, skipping tick", zap.String("cache", m.name))
		return
	}
	m.runner.GoNamed(m.name+"-refresh", func() { m.run(c) })
}

func (m *Manager) begin(trigger Trigger) (*cycle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.inflight != nil {
		return nil, false
	}
	return m.beginLocked(trigger), true
}

func (m *Manager) beginLocked(trigger Trigger) *cycle {
	c := &cycle{trigger: trigger, done: make(chan struct{})}
	m.inflight = c
	m.state = StateFetching
	return c
}

// ForceRefresh requests an out-of-band refresh and returns immediately.
// While a refresh is running at most one follow-up is kept; further
// requests are merged into it. Poll Info to observe completion.
func (m *Manager) ForceRefresh() ForceResult {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ForceRejected
	}
	if m.inflight != nil {
		result := ForceQueued
		if m.pending {
			result = ForceCoalesced
		}
		m.pending = true
		m.mu.Unlock()

		if result == ForceCoalesced {
			m.collector.IncCounter(m.metric(metrics.RefreshCoalesced), 1)
		} else {
			m.collector.IncCounter(m.metric(metrics.RefreshForced), 1)
		}
		m.log.Info("refresh in progress, follow-up requested",
			zap.String("cache", m.name),
			zap.String("result", string(result)),
		)
		return result
	}
	c := m.beginLocked(TriggerForced)
	m.mu.Unlock()

	m.collector.IncCounter(m.metric(metrics.RefreshForced), 1)
	m.runner.GoNamed(m.name+"-refresh", func() { m.run(c) })
	return ForceStarted
}

// Refresh runs a refresh and waits for it, joining the one in flight if
// any. Returning because ctx is done does not cancel the refresh.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	c := m.inflight
	if c == nil {
		c = m.beginLocked(TriggerRequested)
		m.mu.Unlock()
		m.runner.GoNamed(m.name+"-refresh", func() { m.run(c) })
	} else {
		m.mu.Unlock()
	}

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes c and any follow-up requested while it was running.
func (m *Manager) run(c *cycle) {
	for c != nil {
		err := m.refresh(c)
		c = m.finish(c, err)
	}
}

func (m *Manager) finish(c *cycle, err error) *cycle {
	m.mu.Lock()
	c.err = err
	m.inflight = nil
	m.state = StateIdle
	var next *cycle
	if m.pending && !m.stopped {
		m.pending = false
		next = m.beginLocked(TriggerFollowUp)
	}
	m.mu.Unlock()

	close(c.done)
	return next
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) refresh(c *cycle) error {
	id := uuid.NewString()
	started := m.clk.Now()
	m.log.Info("refresh started",
		zap.String("cache", m.name),
		zap.String("refresh_id", id),
		zap.String("trigger", string(c.trigger)),
	)

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.FetchTimeout)
	defer cancel()

	batch, attempts, err := m.fetch(ctx, id)
	var snap *snapshot.Snapshot
	if err == nil {
		m.setState(StatePublishing)
		snap, err = m.build(batch)
	}

	finished := m.clk.Now()
	ev := RefreshEvent{
		Cache:      m.name,
		RefreshID:  id,
		Trigger:    c.trigger,
		Attempts:   attempts,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
	}
	m.collector.ObserveHistogram(m.metric(metrics.RefreshDuration), ev.Duration.Seconds())

	if err != nil {
		err = ErrRefresh(err)
		m.mu.Lock()
		m.state = StateFailed
		m.lastErr = err
		m.lastAttemptAt = finished
		m.consecutiveFailures++
		m.mu.Unlock()

		m.collector.IncCounter(m.metric(metrics.RefreshFailures), 1)
		m.log.Error("refresh failed, keeping previous snapshot",
			zap.String("cache", m.name),
			zap.String("refresh_id", id),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		ev.Error = err.Error()
		m.notify(ev)
		return err
	}

	next := m.nextAfter(finished)
	m.store.Publish(snap, finished, next)
	m.persist(snap, finished, next)

	m.mu.Lock()
	m.lastErr = nil
	m.lastAttemptAt = finished
	m.consecutiveFailures = 0
	m.mu.Unlock()

	m.collector.IncCounter(m.metric(metrics.RefreshTotal), 1)
	m.collector.SetGauge(m.metric(metrics.SnapshotRegions), float64(snap.RegionCount()))
	m.collector.SetGauge(m.metric(metrics.LastRefreshUnix), float64(finished.Unix()))
	if n := len(snap.Degraded); n > 0 {
		m.collector.IncCounter(m.metric(metrics.MetricFailures), int64(n))
	}
	m.log.Info("refresh completed",
		zap.String("cache", m.name),
		zap.String("refresh_id", id),
		zap.Int("attempts", attempts),
		zap.Int("regions", snap.RegionCount()),
		zap.Strings("degraded", snap.Degraded),
		zap.Duration("elapsed", ev.Duration),
	)

	ev.Success = true
	ev.RegionCount = snap.RegionCount()
	ev.RecordCounts = snap.RecordCounts()
	ev.Degraded = snap.Degraded
	m.notify(ev)
	return nil
}

// nextAfter returns when the refresh loop will next run, or the zero time
// when the manager was never started and no loop exists.
func (m *Manager) nextAfter(finished time.Time) time.Time {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return time.Time{}
	}
	next := m.store.View().NextRefreshAt
	if !next.After(finished) {
		next = finished.Add(m.cfg.RefreshInterval())
	}
	return next
}

// fetch calls the source, retrying with a fixed delay while it reports
// itself unavailable. A panicking source counts as a failed attempt that is
// not retried.
func (m *Manager) fetch(ctx context.Context, id string) (batch *source.Batch, attempts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch, err = nil, routine.ErrPanic(r)
		}
	}()

	for attempts = 1; ; attempts++ {
		batch, err = m.source.FetchAll(ctx)
		if err == nil {
			if batch == nil {
				batch = &source.Batch{}
			}
			return batch, attempts, nil
		}
		if ctx.Err() != nil {
			return nil, attempts, m.contextError(ctx, err)
		}
		if !errors.Is(err, source.ErrSourceUnavailable) || attempts >= m.cfg.MaxAttempts {
			return nil, attempts, err
		}

		m.collector.IncCounter(m.metric(metrics.RefreshRetries), 1)
		m.log.Warn("source unavailable, will retry",
			zap.String("cache", m.name),
			zap.String("refresh_id", id),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", m.cfg.MaxAttempts),
			zap.Duration("retry_delay", m.cfg.RetryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, attempts, m.contextError(ctx, err)
		case <-m.clk.After(m.cfg.RetryDelay):
		}
	}
}

func (m *Manager) contextError(ctx context.Context, cause error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrFetchTimeout(m.cfg.FetchTimeout, cause)
	}
	return cause
}

func (m *Manager) build(batch *source.Batch) (snap *snapshot.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, routine.ErrPanic(r)
		}
	}()
	return snapshot.New(batch.Metrics, batch.Degraded(), m.clk.Now(), m.cfg.TopN), nil
}

func (m *Manager) persist(snap *snapshot.Snapshot, last, next time.Time) {
	if m.shadow == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shadowTimeout)
	defer cancel()
	if err := m.shadow.Save(ctx, shadow.NewDocument(snap, last, next)); err != nil {
		m.log.Warn("failed to save shadow snapshot", zap.String("cache", m.name), zap.Error(err))
	}
}

func (m *Manager) notify(ev RefreshEvent) {
	if len(m.listeners) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), listenerTimeout)
	defer cancel()
	for _, l := range m.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("refresh listener panicked",
						zap.String("cache", m.name),
						zap.Any("panic", r),
					)
				}
			}()
			l.OnRefresh(ctx, ev)
		}()
	}
}

// Get returns the current snapshot. When none exists and bootstrap is
// enabled it runs a refresh and waits for it; if that fails the error wraps
// ErrCacheEmpty.
func (m *Manager) Get(ctx context.Context) (*snapshot.Snapshot, error) {
	if s := m.store.Current(); s != nil {
		return s, nil
	}
	if !m.cfg.BootstrapOnMissingCache {
		return nil, ErrCacheEmpty
	}

	m.collector.IncCounter(m.metric(metrics.BootstrapTotal), 1)
	m.log.Info("no snapshot yet, running bootstrap refresh", zap.String("cache", m.name))
	err := m.Refresh(ctx)
	if s := m.store.Current(); s != nil {
		return s, nil
	}
	return nil, ErrEmpty(err)
}

// GetMetric returns a copy of the data for metric, narrowed to region when
// region is non-empty. A missing metric or region reports false with a nil
// error.
func (m *Manager) GetMetric(ctx context.Context, metric, region string) (any, bool, error) {
	s, err := m.Get(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := s.Lookup(metric, region)
	return v, ok, nil
}

// Stop cancels the refresh loop and any in-flight refresh and waits for
// them to exit. It can be called multiple times safely.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.pending = false
		m.mu.Unlock()

		m.cancel()
		m.runner.Wait()
		m.log.Info("cache manager stopped", zap.String("cache", m.name))
	})
}
