package main

import (
	"github.com/dailyyoga/regstats/app"
	"github.com/dailyyoga/regstats/config"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	// Global flags.
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "regstatsd",
	Short: "Serve cached population registry statistics",
	Long: `regstatsd precomputes population, marriage, migration and other
statistics from the registry database and serves them over HTTP. Each
dataset is refreshed in the background and persisted so a restart can serve
the last snapshot immediately.

Configuration is read from --config and REGSTATS_* environment variables,
e.g. REGSTATS_DATABASE_PASSWORD overrides database.password.

Examples:
  # Run the server
  regstatsd serve --config regstats.yaml

  # Copy registry tables into MEMORY tables once
  regstatsd sync-memory --config regstats.yaml

  # Rebuild both snapshots now and persist them
  regstatsd refresh --config regstats.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig reads the configuration and applies global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logger.Level = "debug"
	}
	return cfg, nil
}

// newApp builds an fx application from cfg and opts.
func newApp(cfg *config.Config, opts ...fx.Option) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		app.WithLogger(),
		fx.Options(opts...),
	)
}
