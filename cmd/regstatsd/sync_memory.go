package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dailyyoga/regstats/app"
	"github.com/dailyyoga/regstats/memsync"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var syncMemoryCmd = &cobra.Command{
	Use:   "sync-memory",
	Short: "Copy registry tables into MEMORY tables once",
	Long: `Rebuild every configured *_memory table from its source table, record
the outcome in the metadata table and print the resulting table sizes
and the status recorded for every table.

The command exits non-zero when any table failed to sync.`,
	RunE: runSyncMemory,
}

func init() {
	rootCmd.AddCommand(syncMemoryCmd)
}

func runSyncMemory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var syncer *memsync.Syncer
	a := newApp(cfg, app.Base, app.Syncer, fx.Populate(&syncer))
	if err := a.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.MemSync.Timeout)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
		defer done()
		_ = a.Stop(stopCtx)
	}()

	summary, err := syncer.SyncAll(ctx)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return err
	}

	stats, err := syncer.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading memory table stats: %w", err)
	}
	printStats(stats)

	meta, err := syncer.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("reading sync metadata: %w", err)
	}
	printMetadata(meta)
	return summary.Err()
}

func printSummary(s *memsync.Summary) {
	fmt.Printf("Synced %d/%d tables, %d records in %s\n",
		s.Succeeded(), len(s.Results), s.Records(), s.Duration.Round(time.Millisecond))
	for _, r := range s.Results {
		status := "ok"
		if !r.Success {
			status = fmt.Sprintf("failed: %v", r.Err)
		}
		fmt.Printf("  %-32s %10d  %s\n", r.Table, r.Records, status)
	}
}

func printStats(stats []memsync.TableStats) {
	if len(stats) == 0 {
		fmt.Println("No memory tables found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tENGINE\tROWS\tDATA\tINDEX")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.Table, s.Engine, s.Rows, formatBytes(s.DataLength), formatBytes(s.IndexLength))
	}
	_ = w.Flush()
}

func printMetadata(rows []memsync.Metadata) {
	if len(rows) == 0 {
		fmt.Println("No sync metadata recorded.")
		return
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tLAST SYNC\tRECORDS\tDURATION\tSTATUS\tERROR")
	for _, r := range rows {
		last := "never"
		if r.LastSyncTime != nil {
			last = r.LastSyncTime.Local().Format(time.DateTime)
		}
		msg := "-"
		if r.ErrorMessage != nil && *r.ErrorMessage != "" {
			msg = *r.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2fs\t%s\t%s\n", r.Table, last, r.RecordCount, r.SyncDurationSeconds, r.SyncStatus, msg)
	}
	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
