package app

import (
	"context"

	"github.com/dailyyoga/regstats/config"
	"github.com/dailyyoga/regstats/cron"
	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/events"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/memsync"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/dailyyoga/regstats/routine"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Syncer provides the memory-table syncer without scheduling it.
var Syncer = fx.Module("memsync.syncer",
	fx.Provide(newSyncer),
)

// MemSync schedules the memory-table sync when it is enabled and refreshes
// the caches after every successful run.
var MemSync = fx.Module("memsync",
	Syncer,
	fx.Invoke(scheduleMemSync),
)

func newSyncer(cfg *config.Config, database db.Database, log logger.Logger, collector metrics.Collector) (*memsync.Syncer, error) {
	return memsync.New(database, cfg.MemSync, logger.Named(log, "memsync"), collector)
}

func scheduleMemSync(lc fx.Lifecycle, cfg *config.Config, syncer *memsync.Syncer, caches *CacheSet, log logger.Logger, collector metrics.Collector) error {
	if !cfg.MemSync.Enabled {
		return nil
	}
	log = logger.Named(log, "cron")
	c := cron.NewCron(log,
		cron.WithCollector(collector),
		cron.WithChainTimeout(cfg.MemSync.Timeout),
	)
	hook := refreshAfterSync(log, cfg.Source.UseMemoryTables, caches.National, caches.Regional)
	if err := syncer.Register(c, hook); err != nil {
		return err
	}

	runner := routine.New(log)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			if cfg.MemSync.SyncOnStartup {
				runner.GoNamed("memsync-startup", func() {
					runCtx, done := context.WithTimeout(ctx, cfg.MemSync.Timeout)
					defer done()
					if err := c.RunChain(runCtx, memsync.ChainName); err != nil {
						log.Warn("startup memory sync failed", zap.Error(err))
					}
				})
			}
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			runner.Wait()
			c.Close()
			return nil
		},
	})
	return nil
}

// refreshAfterSync forces a refresh of caches after a sync when the sources
// read the memory tables. Otherwise the sync does not change what they see.
func refreshAfterSync(log logger.Logger, useMemoryTables bool, caches ...events.Refresher) memsync.Hook {
	return func(_ context.Context, summary *memsync.Summary) {
		if !useMemoryTables || summary.Succeeded() == 0 {
			return
		}
		for _, c := range caches {
			res := c.ForceRefresh()
			log.Info("refresh requested after memory sync",
				zap.String("cache", c.Name()),
				zap.String("result", string(res)),
				zap.Int64("records", summary.Records()),
			)
		}
	}
}
