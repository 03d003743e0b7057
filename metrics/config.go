package metrics

import (
	"fmt"
	"slices"

	"github.com/dailyyoga/regstats/logger"
	"github.com/prometheus/client_golang/prometheus"
)

var validBackends = []string{"prometheus", "log", "noop"}

// Config selects the metrics backend
type Config struct {
	// Backend, prometheus, log or noop
	// default: "prometheus"
	Backend string `mapstructure:"backend"`
	// Path the HTTP server exposes prometheus metrics on
	// default: "/metrics"
	Path string `mapstructure:"path"`
}

// DefaultConfig returns the default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: "prometheus",
		Path:    "/metrics",
	}
}

// Validate validates the metrics configuration
func (c *Config) Validate() error {
	if !slices.Contains(validBackends, c.Backend) {
		return fmt.Errorf("metrics: invalid backend %q", c.Backend)
	}
	return nil
}

// New builds the collector selected by cfg.
func New(cfg *Config, registry prometheus.Registerer, log logger.Logger) (Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "log":
		return NewLog(log), nil
	case "noop":
		return NewNoop(), nil
	default:
		return NewPrometheus(registry), nil
	}
}
