package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dailyyoga/regstats/app"
	"github.com/dailyyoga/regstats/cache"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var refreshTimeout time.Duration

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the cached snapshots now",
	Long: `Run one refresh of the national and regional caches, wait for it,
persist the snapshots to the configured shadow and print each cache's info.

Refresh events and history are emitted as in the server when configured.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().DurationVar(&refreshTimeout, "timeout", 15*time.Minute, "maximum time to wait for the refreshes")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var caches *app.CacheSet
	a := newApp(cfg, app.Base, app.Caches, app.Events, fx.Populate(&caches))
	if err := a.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), refreshTimeout)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
		defer done()
		_ = a.Stop(stopCtx)
	}()

	var errs []error
	infos := make([]cache.Info, 0, 2)
	for _, m := range caches.All() {
		if err := m.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
		infos = append(infos, m.Info())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(infos); err != nil {
		return err
	}
	return errors.Join(errs...)
}
