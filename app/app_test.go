package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/config"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/memsync"
	"github.com/dailyyoga/regstats/shadow"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Host, cfg.Database.User, cfg.Database.Database = "localhost", "stats", "registry"
	return cfg
}

func TestModules_Validate(t *testing.T) {
	cases := map[string]fx.Option{
		"serve":       Serve,
		"refresh":     fx.Options(Base, Caches, Events),
		"sync-memory": fx.Options(Base, Syncer),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, fx.ValidateApp(opt, fx.Supply(testConfig()), fx.NopLogger))
		})
	}
}

func TestModules_MissingConfig(t *testing.T) {
	assert.Error(t, fx.ValidateApp(Base, fx.NopLogger, fx.Invoke(func(logger.Logger) {})))
}

type fakeRefresher struct {
	name   string
	forced int
}

func (f *fakeRefresher) Name() string { return f.name }

func (f *fakeRefresher) ForceRefresh() cache.ForceResult {
	f.forced++
	return cache.ForceStarted
}

func TestRefreshAfterSync(t *testing.T) {
	ok := &memsync.Summary{Results: []memsync.Result{{Table: "population_memory", Success: true, Records: 10}}}
	failed := &memsync.Summary{Results: []memsync.Result{{Table: "population_memory"}}}

	tests := []struct {
		name    string
		memory  bool
		summary *memsync.Summary
		want    int
	}{
		{"memory tables", true, ok, 1},
		{"live tables", false, ok, 0},
		{"nothing synced", true, failed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			national := &fakeRefresher{name: "national"}
			regional := &fakeRefresher{name: "regional"}
			refreshAfterSync(logger.NewNop(), tt.memory, national, regional)(context.Background(), tt.summary)
			assert.Equal(t, tt.want, national.forced)
			assert.Equal(t, tt.want, regional.forced)
		})
	}
}

func TestShadows_For(t *testing.T) {
	cfg := shadow.DefaultConfig()
	cfg.Dir = t.TempDir()

	s := &Shadows{cfg: cfg, log: logger.NewNop()}
	sh, err := s.For("national")
	require.NoError(t, err)
	assert.IsType(t, &shadow.File{}, sh)

	cfg.Backend = "none"
	sh, err = s.For("national")
	require.NoError(t, err)
	assert.Nil(t, sh)

	mr := miniredis.RunT(t)
	cfg.Backend = "redis"
	cfg.Redis = *(&shadow.RedisConfig{Addr: mr.Addr()}).MergeDefaults()
	s.client = redis.NewClient(cfg.Redis.Options())
	t.Cleanup(func() { _ = s.client.Close() })

	sh, err = s.For("regional")
	require.NoError(t, err)
	require.IsType(t, &shadow.Redis{}, sh)
	assert.Equal(t, "regstats:snapshot:regional", sh.(*shadow.Redis).Key())
}
