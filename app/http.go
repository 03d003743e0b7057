package app

import (
	"github.com/dailyyoga/regstats/api"
	"github.com/dailyyoga/regstats/config"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Mount prefixes of the two datasets.
const (
	NationalPrefix = "/api"
	RegionalPrefix = "/api/regional"
)

// HTTP serves the caches. It starts after the caches and stops before them.
var HTTP = fx.Module("http",
	fx.Provide(newServer),
	fx.Invoke(func(*api.Server) {}),
)

func newServer(lc fx.Lifecycle, cfg *config.Config, log logger.Logger, caches *CacheSet, collector metrics.Collector, reg *prometheus.Registry) (*api.Server, error) {
	opts := []api.Option{api.WithCollector(collector)}
	if cfg.Metrics.Backend == "prometheus" {
		opts = append(opts, api.WithGatherer(cfg.Metrics.Path, reg))
	}
	srv, err := api.New(cfg.HTTP, log, []api.Mount{
		{Prefix: NationalPrefix, Cache: caches.National},
		{Prefix: RegionalPrefix, Cache: caches.Regional},
	}, opts...)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  srv.Shutdown,
	})
	return srv, nil
}
