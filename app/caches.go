package app

import (
	"context"

	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/config"
	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/dailyyoga/regstats/shadow"
	"github.com/dailyyoga/regstats/source"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Caches provides the national and regional cache managers. They start with
// the application and stop before the database closes.
var Caches = fx.Module("caches",
	fx.Provide(
		newShadows,
		newCaches,
	),
)

// CacheSet holds one manager per dataset.
type CacheSet struct {
	National *cache.Manager
	Regional *cache.Manager
}

// All returns the managers in start order.
func (s *CacheSet) All() []*cache.Manager {
	return []*cache.Manager{s.National, s.Regional}
}

// Shadows opens the configured shadow backend per cache.
type Shadows struct {
	cfg    *shadow.Config
	client *redis.Client
	log    logger.Logger
}

func newShadows(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) (*Shadows, error) {
	s := &Shadows{cfg: cfg.Shadow, log: logger.Named(log, "shadow")}
	if cfg.Shadow.Backend != "redis" {
		return s, nil
	}
	client, err := shadow.NewRedisClient(context.Background(), &cfg.Shadow.Redis)
	if err != nil {
		return nil, err
	}
	s.client = client
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return s, nil
}

// For returns the shadow of the named cache, or nil when persistence is off.
func (s *Shadows) For(name string) (shadow.Shadow, error) {
	switch s.cfg.Backend {
	case "file":
		return shadow.NewFile(s.cfg.FileFor(name), s.log)
	case "redis":
		return shadow.NewRedis(s.client, &s.cfg.Redis, name, s.log)
	default:
		return nil, nil
	}
}

type cachesParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    logger.Logger
	Database  db.Database
	Collector metrics.Collector
	Shadows   *Shadows
	Listeners []cache.Listener `group:"listeners"`
}

func newCaches(p cachesParams) (*CacheSet, error) {
	national, err := source.NewNational(p.Database, logger.Named(p.Logger, "source.national"), p.Config.Source)
	if err != nil {
		return nil, err
	}
	regional, err := source.NewRegional(p.Database, logger.Named(p.Logger, "source.regional"), p.Config.Source)
	if err != nil {
		return nil, err
	}

	set := &CacheSet{}
	if set.National, err = p.newManager(p.Config.National, national); err != nil {
		return nil, err
	}
	if set.Regional, err = p.newManager(p.Config.Regional, regional); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, m := range set.All() {
				if err := m.Start(ctx); err != nil {
					return err
				}
			}
			return nil
		},
		OnStop: func(context.Context) error {
			for _, m := range set.All() {
				m.Stop()
			}
			return nil
		},
	})
	return set, nil
}

func (p cachesParams) newManager(cfg *cache.Config, src source.Source) (*cache.Manager, error) {
	sh, err := p.Shadows.For(cfg.Name)
	if err != nil {
		return nil, err
	}
	return cache.NewManager(cfg, src, logger.Named(p.Logger, "cache"),
		cache.WithShadow(sh),
		cache.WithCollector(p.Collector),
		cache.WithListener(p.Listeners...),
	)
}
