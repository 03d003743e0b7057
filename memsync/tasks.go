package memsync

import (
	"context"
	"errors"

	"github.com/dailyyoga/regstats/cron"
	"go.uber.org/zap"
)

// ChainName is the cron chain the job is registered under.
const ChainName = "memsync"

const summaryKey = "memsync.summary"

// Hook is called with the summary of every run that reached the database.
type Hook func(ctx context.Context, summary *Summary)

// Tasks returns the chain run by the scheduler: the copy, then a report
// that fails the chain when a table did not sync and otherwise calls hooks.
func (s *Syncer) Tasks(hooks ...Hook) []cron.Task {
	return []cron.Task{
		cron.TaskFunc("sync_tables", func(ctx context.Context) error {
			summary, err := s.SyncAll(ctx)
			if summary != nil {
				cron.GetSharedData(ctx).Set(summaryKey, summary)
			}
			return err
		}),
		cron.TaskFunc("report", func(ctx context.Context) error {
			summary, ok := cron.Load[*Summary](ctx, summaryKey)
			if !ok {
				return errors.New("memsync: no summary from sync_tables")
			}
			for _, r := range summary.Results {
				if !r.Success {
					s.log.Warn("table not synced", zap.String("table", r.Table), zap.Error(r.Err))
				}
			}
			if err := summary.Err(); err != nil {
				return err
			}
			for _, h := range hooks {
				h(ctx, summary)
			}
			return nil
		}),
	}
}

// Register adds the job to c under ChainName using the configured schedule.
func (s *Syncer) Register(c cron.Cron, hooks ...Hook) error {
	return c.AddChain(cron.Chain{
		Name:  ChainName,
		Spec:  s.cfg.Schedule,
		Tasks: s.Tasks(hooks...),
	})
}

// Config returns the effective configuration.
func (s *Syncer) Config() *Config {
	return s.cfg
}
