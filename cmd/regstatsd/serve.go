package main

import (
	"github.com/dailyyoga/regstats/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background refreshes",
	Long: `Start both cache managers, the HTTP API, and, when configured, the
memory-table sync schedule, Kafka events and ClickHouse refresh history.
Runs until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a := newApp(cfg, app.Serve)
	if err := a.Err(); err != nil {
		return err
	}
	a.Run()
	return nil
}
