package ch

import (
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Config is the ClickHouse configuration
type Config struct {
	// Enabled turns on refresh history recording
	// default: false
	Enabled bool `mapstructure:"enabled"`
	// clickhouse connection config
	Hosts       []string      `mapstructure:"hosts"`
	Database    string        `mapstructure:"database"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Debug       bool          `mapstructure:"debug"`
	// clickhouse settings (https://clickhouse.com/docs/operations/settings/settings)
	Settings clickhouse.Settings `mapstructure:"settings"`
	// HistoryTable receives one row per cache refresh
	// default: "cache_refresh_history"
	HistoryTable string `mapstructure:"history_table"`
	// CreateTable issues CREATE TABLE IF NOT EXISTS for the history table on startup
	// default: false
	CreateTable bool `mapstructure:"create_table"`
	// batch insert config
	WriterConfig *WriterConfig `mapstructure:"writer"`
}

// WriterConfig controls batching
type WriterConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	FlushSize     int           `mapstructure:"flush_size"`
	// MinFlushSize is the minimum batch size for time-triggered flush.
	// Set to 0 to flush on every interval.
	MinFlushSize int `mapstructure:"min_flush_size"`
	// MaxWaitTime forces a time-triggered flush of a small batch once its
	// oldest row has waited this long. 0 waits indefinitely for MinFlushSize.
	MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
	// InsertTimeout bounds one batch insert
	InsertTimeout time.Duration `mapstructure:"insert_timeout"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Database:     "default",
		DialTimeout:  10 * time.Second,
		HistoryTable: "cache_refresh_history",
		WriterConfig: DefaultWriterConfig(),
	}
}

// DefaultWriterConfig returns the default writer config. Refreshes are rare,
// so batches are small and time-driven.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		FlushInterval: 10 * time.Second,
		FlushSize:     500,
		MinFlushSize:  0,
		MaxWaitTime:   60 * time.Second,
		InsertTimeout: 30 * time.Second,
	}
}

// MergeDefaults fills empty fields from DefaultConfig in place and returns c
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.HistoryTable == "" {
		c.HistoryTable = d.HistoryTable
	}
	if c.WriterConfig == nil {
		c.WriterConfig = d.WriterConfig
	} else if c.WriterConfig.InsertTimeout == 0 {
		c.WriterConfig.InsertTimeout = d.WriterConfig.InsertTimeout
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return ErrInvalidConfig("hosts are required")
	}
	if c.Username == "" {
		return ErrInvalidConfig("username is required")
	}
	if c.HistoryTable == "" {
		return ErrInvalidConfig("history_table is required")
	}
	if c.WriterConfig != nil {
		return c.WriterConfig.Validate()
	}
	return nil
}

// Validate validates the writer configuration
func (c *WriterConfig) Validate() error {
	if c.FlushInterval <= 0 {
		return ErrInvalidConfig("writer.flush_interval is required")
	}
	if c.FlushSize <= 0 {
		return ErrInvalidConfig("writer.flush_size is required")
	}
	if c.MinFlushSize < 0 {
		return ErrInvalidConfig("writer.min_flush_size cannot be negative")
	}
	if c.MinFlushSize > c.FlushSize {
		return ErrInvalidConfig("writer.min_flush_size cannot be greater than writer.flush_size")
	}
	if c.MaxWaitTime < 0 {
		return ErrInvalidConfig("writer.max_wait_time cannot be negative")
	}
	if c.InsertTimeout < 0 {
		return ErrInvalidConfig("writer.insert_timeout cannot be negative")
	}
	return nil
}
