package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/dailyyoga/regstats/routine"
	"github.com/dailyyoga/regstats/shadow"
	"github.com/dailyyoga/regstats/snapshot"
	"github.com/dailyyoga/regstats/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource counts calls and optionally blocks until released.
type fakeSource struct {
	calls   atomic.Int32
	block   chan struct{}
	fetchFn func(ctx context.Context, call int32) (*source.Batch, error)
}

func (f *fakeSource) FetchAll(ctx context.Context) (*source.Batch, error) {
	n := f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fetchFn != nil {
		return f.fetchFn(ctx, n)
	}
	return batchOf(float64(n)), nil
}

func batchOf(v float64) *source.Batch {
	return &source.Batch{Metrics: snapshot.Metrics{
		snapshot.Population: snapshot.Values(map[string]float64{"济南市": v, "青岛市": v, "烟台市": v}),
	}}
}

// recordingCollector keeps counter totals for assertions.
type recordingCollector struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: make(map[string]int64)}
}

func (c *recordingCollector) IncCounter(name string, delta int64) {
	c.mu.Lock()
	c.counters[name] += delta
	c.mu.Unlock()
}

func (c *recordingCollector) SetGauge(string, float64)         {}
func (c *recordingCollector) ObserveHistogram(string, float64) {}

func (c *recordingCollector) counter(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

func testConfig() *Config {
	return &Config{
		Name:                    "national",
		RefreshIntervalSeconds:  2,
		FetchTimeout:            time.Second,
		MaxAttempts:             3,
		RetryDelay:              time.Millisecond,
		BootstrapOnMissingCache: true,
	}
}

func newTestManager(t *testing.T, cfg *Config, src source.Source, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cfg, src, logger.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !m.Info().Refreshing
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, &fakeSource{}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewManager(&Config{}, &fakeSource{}, logger.NewNop())
	assert.ErrorContains(t, err, "name is required")

	_, err = NewManager(&Config{Name: "x"}, nil, logger.NewNop())
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewManager(&Config{Name: "x", RefreshIntervalSeconds: -1}, &fakeSource{}, logger.NewNop())
	assert.ErrorContains(t, err, "refresh_interval_seconds")
}

func TestConfig_MergeDefaults(t *testing.T) {
	cfg := (&Config{Name: "regional", RefreshIntervalSeconds: 1800}).MergeDefaults()
	assert.Equal(t, 1800, cfg.RefreshIntervalSeconds)
	assert.Equal(t, 5*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 10, cfg.TopN)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval())
}

func TestManager_TickAccounting(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{}
	m := newTestManager(t, testConfig(), src, WithClock(mock))
	require.NoError(t, m.Start(context.Background()))

	// Ticks fire at 2s and 4s within the first 5s.
	want := int32(0)
	for step := 1; step <= 10; step++ {
		mock.Add(500 * time.Millisecond)
		if step%4 == 0 {
			want++
			require.Eventually(t, func() bool {
				return src.calls.Load() == want && !m.Info().Refreshing
			}, 2*time.Second, 5*time.Millisecond)
		}
	}

	assert.Never(t, func() bool { return src.calls.Load() > 2 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.EqualValues(t, 2, src.calls.Load())

	info := m.Info()
	require.NotNil(t, info.NextRefreshAt)
	assert.Equal(t, mock.Now().Add(time.Second), *info.NextRefreshAt)
}

func TestManager_SkipsTicksWhileRefreshing(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{block: make(chan struct{})}
	col := newRecordingCollector()
	m := newTestManager(t, testConfig(), src, WithClock(mock), WithCollector(col))
	require.NoError(t, m.Start(context.Background()))

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	skipped := metrics.Name("national", metrics.RefreshSkippedTicks)
	for want := int64(1); want <= 2; want++ {
		mock.Add(2 * time.Second)
		require.Eventually(t, func() bool { return col.counter(skipped) == want }, time.Second, 5*time.Millisecond)
	}

	close(src.block)
	waitIdle(t, m)
	assert.EqualValues(t, 1, src.calls.Load())
	assert.False(t, m.Info().Pending)
}

func TestManager_ForceRefreshCoalesces(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	col := newRecordingCollector()
	m := newTestManager(t, testConfig(), src, WithCollector(col))

	assert.Equal(t, ForceStarted, m.ForceRefresh())
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, ForceQueued, m.ForceRefresh())
	assert.Equal(t, ForceCoalesced, m.ForceRefresh())
	assert.Equal(t, ForceCoalesced, m.ForceRefresh())
	assert.True(t, m.Info().Pending)

	close(src.block)
	require.Eventually(t, func() bool {
		return src.calls.Load() == 2 && !m.Info().Refreshing
	}, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return src.calls.Load() > 2 }, 100*time.Millisecond, 10*time.Millisecond)

	assert.EqualValues(t, 2, col.counter(metrics.Name("national", metrics.RefreshCoalesced)))
	assert.EqualValues(t, 2, col.counter(metrics.Name("national", metrics.RefreshTotal)))

	snap, err := m.Get(context.Background())
	require.NoError(t, err)
	pop, ok := snap.Metric(snapshot.Population)
	require.True(t, ok)
	assert.Equal(t, 2.0, pop.Values["济南市"])
}

func TestManager_ForceRefreshDuringTick(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{block: make(chan struct{})}
	m := newTestManager(t, testConfig(), src, WithClock(mock))
	require.NoError(t, m.Start(context.Background()))

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, ForceQueued, m.ForceRefresh())
	assert.Equal(t, ForceCoalesced, m.ForceRefresh())

	close(src.block)
	require.Eventually(t, func() bool {
		return src.calls.Load() == 2 && !m.Info().Refreshing
	}, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return src.calls.Load() > 2 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.False(t, m.Info().Pending)
}

func TestManager_ForceRefreshIdempotent(t *testing.T) {
	src := &fakeSource{fetchFn: func(context.Context, int32) (*source.Batch, error) {
		return batchOf(42), nil
	}}
	m := newTestManager(t, testConfig(), src)

	var snaps []*snapshot.Snapshot
	for want := int32(1); want <= 2; want++ {
		assert.Equal(t, ForceStarted, m.ForceRefresh())
		require.Eventually(t, func() bool {
			return src.calls.Load() == want && !m.Info().Refreshing
		}, 2*time.Second, 5*time.Millisecond)
		snap, err := m.Get(context.Background())
		require.NoError(t, err)
		snaps = append(snaps, snap)
	}

	assert.NotSame(t, snaps[0], snaps[1])
	assert.Equal(t, snaps[0].Metrics, snaps[1].Metrics)
	assert.Equal(t, snaps[0].Derived, snaps[1].Derived)
}

func TestManager_GetMetricReturnsCopy(t *testing.T) {
	src := &fakeSource{fetchFn: func(context.Context, int32) (*source.Batch, error) {
		b := batchOf(1)
		b.Metrics[snapshot.Gender] = snapshot.Groups(map[string]map[string]float64{"济南市": {"male": 10}})
		return b, nil
	}}
	m := newTestManager(t, testConfig(), src)
	ctx := context.Background()

	v, ok, err := m.GetMetric(ctx, snapshot.Population, "")
	require.NoError(t, err)
	require.True(t, ok)
	v.(map[string]float64)["济南市"] = 999

	v, ok, err = m.GetMetric(ctx, snapshot.Gender, "济南市")
	require.NoError(t, err)
	require.True(t, ok)
	v.(map[string]float64)["male"] = 999

	v, ok, err = m.GetMetric(ctx, snapshot.Gender, "")
	require.NoError(t, err)
	require.True(t, ok)
	v.(map[string]map[string]float64)["济南市"]["female"] = 999

	snap, err := m.Get(ctx)
	require.NoError(t, err)
	pop, _ := snap.Metric(snapshot.Population)
	assert.Equal(t, 1.0, pop.Values["济南市"])
	gender, _ := snap.Metric(snapshot.Gender)
	assert.Equal(t, map[string]float64{"male": 10}, gender.Groups["济南市"])
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestManager_RefreshWithoutStartHasNoSchedule(t *testing.T) {
	m := newTestManager(t, testConfig(), &fakeSource{})
	require.NoError(t, m.Refresh(context.Background()))

	info := m.Info()
	assert.True(t, info.HasData)
	assert.NotNil(t, info.LastRefreshAt)
	assert.Nil(t, info.NextRefreshAt)
}

func TestManager_RefreshJoinsInFlight(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	m := newTestManager(t, testConfig(), src)

	errs := make(chan error, 2)
	go func() { errs <- m.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	go func() { errs <- m.Refresh(context.Background()) }()

	// Give the second caller time to join before the fetch completes.
	time.Sleep(50 * time.Millisecond)
	close(src.block)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestManager_RefreshContextDoesNotCancelCycle(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	m := newTestManager(t, testConfig(), src)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(src.block)
	waitIdle(t, m)
	assert.True(t, m.Info().HasData)
}

func TestManager_AtomicPublish(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(t, testConfig(), src)
	require.NoError(t, m.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var torn atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				snap, err := m.Get(ctx)
				if err != nil {
					continue
				}
				pop, _ := snap.Metric(snapshot.Population)
				first := pop.Values["济南市"]
				for _, v := range pop.Values {
					if v != first {
						torn.Add(1)
					}
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, m.Refresh(context.Background()))
	}
	cancel()
	wg.Wait()
	assert.Zero(t, torn.Load())
}

func TestManager_StaleSnapshotSurvivesFailure(t *testing.T) {
	src := &fakeSource{fetchFn: func(_ context.Context, call int32) (*source.Batch, error) {
		if call == 1 {
			return batchOf(1), nil
		}
		return nil, errors.New("syntax error")
	}}
	m := newTestManager(t, testConfig(), src)

	require.NoError(t, m.Refresh(context.Background()))
	first, err := m.Get(context.Background())
	require.NoError(t, err)

	err = m.Refresh(context.Background())
	require.Error(t, err)

	second, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)

	info := m.Info()
	assert.Equal(t, StateIdle, info.State)
	assert.Equal(t, 1, info.ConsecutiveFailures)
	assert.Contains(t, info.LastError, "syntax error")
	assert.True(t, info.HasData)
	assert.Equal(t, 3, info.RegionCount)
}

func TestManager_BootstrapFailure(t *testing.T) {
	src := &fakeSource{fetchFn: func(context.Context, int32) (*source.Batch, error) {
		return nil, source.ErrUnavailable(errors.New("connection refused"))
	}}
	m := newTestManager(t, testConfig(), src)

	_, err := m.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheEmpty)
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
	assert.EqualValues(t, 3, src.calls.Load())

	_, ok, err := m.GetMetric(context.Background(), snapshot.Population, "")
	assert.ErrorIs(t, err, ErrCacheEmpty)
	assert.False(t, ok)
}

func TestManager_BootstrapDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.BootstrapOnMissingCache = false
	src := &fakeSource{}
	m := newTestManager(t, cfg, src)

	_, err := m.Get(context.Background())
	assert.ErrorIs(t, err, ErrCacheEmpty)
	assert.Zero(t, src.calls.Load())
}

func TestManager_BootstrapSucceeds(t *testing.T) {
	src := &fakeSource{}
	col := newRecordingCollector()
	m := newTestManager(t, testConfig(), src, WithCollector(col))

	v, ok, err := m.GetMetric(context.Background(), snapshot.Population, "青岛市")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok, err = m.GetMetric(context.Background(), snapshot.Population, "拉萨市")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.GetMetric(context.Background(), "unknown", "")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.EqualValues(t, 1, col.counter(metrics.Name("national", metrics.BootstrapTotal)))
}

func TestManager_PartialFailureDegrades(t *testing.T) {
	src := &fakeSource{fetchFn: func(context.Context, int32) (*source.Batch, error) {
		b := batchOf(1)
		b.Metrics[snapshot.Marriage] = snapshot.Empty(snapshot.KindGroups)
		b.Failures = map[string]error{snapshot.Marriage: errors.New("table missing")}
		return b, nil
	}}
	col := newRecordingCollector()
	m := newTestManager(t, testConfig(), src, WithCollector(col))

	snap, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{snapshot.Marriage}, snap.Degraded)

	marriage, ok := snap.Metric(snapshot.Marriage)
	require.True(t, ok)
	assert.Empty(t, marriage.Groups)

	assert.Equal(t, []string{snapshot.Marriage}, m.Info().Degraded)
	assert.EqualValues(t, 1, col.counter(metrics.Name("national", metrics.MetricFailures)))
}

func TestManager_RetriesUnavailableSource(t *testing.T) {
	src := &fakeSource{fetchFn: func(_ context.Context, call int32) (*source.Batch, error) {
		if call < 3 {
			return nil, source.ErrUnavailable(errors.New("connection refused"))
		}
		return batchOf(float64(call)), nil
	}}
	events := make(chan RefreshEvent, 1)
	col := newRecordingCollector()
	m := newTestManager(t, testConfig(), src, WithCollector(col), WithListener(ListenerFunc(func(_ context.Context, ev RefreshEvent) {
		events <- ev
	})))

	require.NoError(t, m.Refresh(context.Background()))
	assert.EqualValues(t, 3, src.calls.Load())
	assert.EqualValues(t, 2, col.counter(metrics.Name("national", metrics.RefreshRetries)))

	ev := <-events
	assert.True(t, ev.Success)
	assert.Equal(t, 3, ev.Attempts)
	assert.Equal(t, TriggerRequested, ev.Trigger)
	assert.NotEmpty(t, ev.RefreshID)
	assert.Equal(t, 3, ev.RegionCount)
}

func TestManager_DoesNotRetryQueryErrors(t *testing.T) {
	src := &fakeSource{fetchFn: func(context.Context, int32) (*source.Batch, error) {
		return nil, errors.New("bad query")
	}}
	m := newTestManager(t, testConfig(), src)

	require.Error(t, m.Refresh(context.Background()))
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestManager_FetchTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.FetchTimeout = 30 * time.Millisecond
	src := &fakeSource{block: make(chan struct{})}
	m := newTestManager(t, cfg, src)

	err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "fetch exceeded")
	assert.False(t, m.Info().HasData)
}

func TestManager_SourcePanic(t *testing.T) {
	src := &fakeSource{fetchFn: func(context.Context, int32) (*source.Batch, error) {
		panic("boom")
	}}
	m := newTestManager(t, testConfig(), src)

	err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, routine.ErrPanicRecovered)

	// The manager keeps working after a panic.
	src.fetchFn = nil
	require.NoError(t, m.Refresh(context.Background()))
}

func TestManager_ListenerSeesFailure(t *testing.T) {
	src := &fakeSource{fetchFn: func(context.Context, int32) (*source.Batch, error) {
		return nil, errors.New("bad query")
	}}
	var got []RefreshEvent
	var mu sync.Mutex
	m := newTestManager(t, testConfig(), src,
		WithListener(ListenerFunc(func(context.Context, RefreshEvent) { panic("listener") })),
		WithListener(ListenerFunc(func(_ context.Context, ev RefreshEvent) {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		})),
	)

	require.Error(t, m.Refresh(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.False(t, got[0].Success)
	assert.Contains(t, got[0].Error, "bad query")
}

func TestManager_StartTwice(t *testing.T) {
	cfg := testConfig()
	m := newTestManager(t, cfg, &fakeSource{}, WithClock(clock.NewMock()))

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
}

func TestManager_Stop(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	m, err := NewManager(testConfig(), src, logger.NewNop(), WithClock(clock.NewMock()))
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, ForceStarted, m.ForceRefresh())
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Stop cancels the blocked fetch and waits for it.
	m.Stop()
	m.Stop()

	assert.Equal(t, ForceRejected, m.ForceRefresh())
	assert.ErrorIs(t, m.Refresh(context.Background()), ErrStopped)
	assert.ErrorIs(t, m.Start(context.Background()), ErrStopped)
	assert.False(t, m.Info().Refreshing)
}

func TestManager_WarmOnStart(t *testing.T) {
	cfg := testConfig()
	cfg.WarmOnStart = true
	src := &fakeSource{}
	m := newTestManager(t, cfg, src, WithClock(clock.NewMock()))

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.Info().HasData }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, src.calls.Load())
}

func newFileShadow(t *testing.T) *shadow.File {
	t.Helper()
	f, err := shadow.NewFile(&shadow.FileConfig{Path: filepath.Join(t.TempDir(), "national.json")}, logger.NewNop())
	require.NoError(t, err)
	return f
}

func TestManager_RestoresFreshShadow(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	sh := newFileShadow(t)

	saved := snapshot.New(batchOf(7).Metrics, nil, mock.Now().Add(-time.Minute), 10)
	require.NoError(t, sh.Save(context.Background(), shadow.NewDocument(saved, mock.Now().Add(-time.Minute), mock.Now().Add(time.Minute))))

	cfg := testConfig()
	cfg.WarmOnStart = true
	src := &fakeSource{}
	m := newTestManager(t, cfg, src, WithClock(mock), WithShadow(sh))
	require.NoError(t, m.Start(context.Background()))

	snap, err := m.Get(context.Background())
	require.NoError(t, err)
	pop, _ := snap.Metric(snapshot.Population)
	assert.Equal(t, 7.0, pop.Values["烟台市"])

	assert.Never(t, func() bool { return src.calls.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	info := m.Info()
	require.NotNil(t, info.LastRefreshAt)
	assert.True(t, info.LastRefreshAt.Equal(mock.Now().Add(-time.Minute)))
}

func TestManager_RefreshesExpiredShadow(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	sh := newFileShadow(t)

	saved := snapshot.New(batchOf(7).Metrics, nil, mock.Now().Add(-time.Hour), 10)
	require.NoError(t, sh.Save(context.Background(), shadow.NewDocument(saved, mock.Now().Add(-time.Hour), mock.Now())))

	cfg := testConfig()
	cfg.WarmOnStart = true
	src := &fakeSource{}
	m := newTestManager(t, cfg, src, WithClock(mock), WithShadow(sh))
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return src.calls.Load() == 1 && !m.Info().Refreshing
	}, time.Second, 5*time.Millisecond)

	snap, err := m.Get(context.Background())
	require.NoError(t, err)
	pop, _ := snap.Metric(snapshot.Population)
	assert.Equal(t, 1.0, pop.Values["烟台市"])

	// The new snapshot is persisted for the next start.
	doc, err := sh.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc)
	pop, _ = doc.Snapshot.Metric(snapshot.Population)
	assert.Equal(t, 1.0, pop.Values["烟台市"])
	require.NotNil(t, doc.NextRefreshAt)
	assert.True(t, doc.NextRefreshAt.After(mock.Now()))
}

func TestManager_NoWarmWhenPublishedBeforeStart(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	sh := newFileShadow(t)

	stale := snapshot.New(batchOf(7).Metrics, nil, mock.Now().Add(-time.Hour), 10)
	require.NoError(t, sh.Save(context.Background(), shadow.NewDocument(stale, mock.Now().Add(-time.Hour), mock.Now().Add(-time.Minute))))

	cfg := testConfig()
	cfg.WarmOnStart = true
	src := &fakeSource{}
	m := newTestManager(t, cfg, src, WithClock(mock), WithShadow(sh))
	require.NoError(t, m.Refresh(context.Background()))
	require.EqualValues(t, 1, src.calls.Load())

	require.NoError(t, m.Start(context.Background()))
	assert.Never(t, func() bool { return src.calls.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	snap, err := m.Get(context.Background())
	require.NoError(t, err)
	pop, _ := snap.Metric(snapshot.Population)
	assert.Equal(t, 1.0, pop.Values["烟台市"])
}

func TestStore_SeedIgnoredAfterPublish(t *testing.T) {
	s := NewStore()
	now := time.Now()
	published := snapshot.New(nil, nil, now, 10)
	s.Publish(published, now, now.Add(time.Minute))

	assert.False(t, s.Seed(snapshot.New(nil, nil, now.Add(-time.Hour), 10), now, now))
	assert.Same(t, published, s.Current())

	s.Publish(nil, now, now)
	assert.Same(t, published, s.Current())
}

func TestInfo_Empty(t *testing.T) {
	m := newTestManager(t, testConfig(), &fakeSource{})
	info := m.Info()
	assert.Equal(t, "national", info.Name)
	assert.Equal(t, StateIdle, info.State)
	assert.False(t, info.HasData)
	assert.Nil(t, info.LastRefreshAt)
	assert.Nil(t, info.LastAttemptAt)
	assert.NotNil(t, info.RecordCounts)
	assert.Equal(t, 2, info.RefreshIntervalSeconds)
}
