// Package main provides regstatsd, the registry statistics service: an HTTP
// API over periodically refreshed national and regional statistics, plus
// one-shot maintenance commands.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
