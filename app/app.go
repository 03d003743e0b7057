// Package app wires the service together with fx. Each module owns one
// concern and registers its own lifecycle hooks; commands compose the
// modules they need.
package app

import (
	"context"

	"github.com/dailyyoga/regstats/config"
	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Base provides the logger, metrics and the registry database.
// Requires a *config.Config to be supplied.
var Base = fx.Module("base",
	fx.Provide(
		newLogger,
		newRegistry,
		newCollector,
		newDatabase,
	),
)

// Serve is every module the long-running server needs.
var Serve = fx.Options(
	Base,
	Caches,
	Events,
	MemSync,
	HTTP,
)

// WithLogger routes fx's own events through the service logger.
func WithLogger() fx.Option {
	return fx.WithLogger(func(log logger.Logger) fxevent.Logger {
		if zl, ok := log.(*zap.Logger); ok {
			return &fxevent.ZapLogger{Logger: zl.Named("fx")}
		}
		return fxevent.NopLogger
	})
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newCollector(cfg *config.Config, reg *prometheus.Registry, log logger.Logger) (metrics.Collector, error) {
	return metrics.New(cfg.Metrics, reg, logger.Named(log, "metrics"))
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) (db.Database, error) {
	database, err := db.NewMySQL(context.Background(), logger.Named(log, "db"), cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return database.Close()
		},
	})
	return database, nil
}
