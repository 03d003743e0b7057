package logger

import (
	"fmt"
	"slices"
	"strings"
)

var (
	validLevels    = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
	validEncodings = []string{"json", "console"}
)

// Config selects the level, format and sinks of the service logger.
type Config struct {
	Level            string   `mapstructure:"level"`              // default: info
	Encoding         string   `mapstructure:"encoding"`           // json or console, default: json
	OutputPaths      []string `mapstructure:"output_paths"`       // default: [stdout]
	ErrorOutputPaths []string `mapstructure:"error_output_paths"` // default: [stderr]
	// Service is added to every entry as the "service" field when set.
	Service string `mapstructure:"service"`
}

// DefaultConfig returns the defaults applied by MergeDefaults.
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// MergeDefaults returns a copy of c with empty fields filled in. A nil
// receiver yields DefaultConfig.
func (c *Config) MergeDefaults() *Config {
	merged := DefaultConfig()
	if c == nil {
		return merged
	}
	merged.Service = c.Service
	if c.Level != "" {
		merged.Level = c.Level
	}
	if c.Encoding != "" {
		merged.Encoding = c.Encoding
	}
	if len(c.OutputPaths) > 0 {
		merged.OutputPaths = c.OutputPaths
	}
	if len(c.ErrorOutputPaths) > 0 {
		merged.ErrorOutputPaths = c.ErrorOutputPaths
	}
	return merged
}

// Validate checks level and encoding names and rejects empty sinks.
func (c *Config) Validate() error {
	switch {
	case !slices.Contains(validLevels, c.Level):
		return ErrInvalidLevel(c.Level, fmt.Errorf("must be one of: %s", strings.Join(validLevels, ", ")))
	case !slices.Contains(validEncodings, c.Encoding):
		return ErrInvalidEncoding(c.Encoding)
	case slices.Contains(c.OutputPaths, ""):
		return ErrInvalidOutput("output_paths")
	case slices.Contains(c.ErrorOutputPaths, ""):
		return ErrInvalidOutput("error_output_paths")
	}
	return nil
}
