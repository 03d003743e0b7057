package memsync

import (
	"fmt"
	"regexp"
	"time"
)

// Mapping copies Source into the MEMORY-engine table Target.
type Mapping struct {
	Source string `mapstructure:"source"`
	Target string `mapstructure:"target"`
}

// Config is the configuration for the memory-table sync job
type Config struct {
	// Enabled schedules the job inside the server
	// default: false
	Enabled bool `mapstructure:"enabled"`
	// Schedule is a six-field cron spec or descriptor
	// default: "@every 30m"
	Schedule string `mapstructure:"schedule"`
	// SyncOnStartup runs the job once when the server starts
	// default: true
	SyncOnStartup bool `mapstructure:"sync_on_startup"`
	// HeapTableSize is applied to max_heap_table_size and tmp_table_size
	// default: 20737418240
	HeapTableSize int64 `mapstructure:"heap_table_size"`
	// Tables lists the tables to copy, in order
	Tables []Mapping `mapstructure:"tables"`
	// MetadataTable receives one status row per target table
	// default: "memory_sync_metadata"
	MetadataTable string `mapstructure:"metadata_table"`
	// Pause is the delay between two tables
	// default: 1 * time.Second
	Pause time.Duration `mapstructure:"pause"`
	// Timeout bounds one scheduled run
	// default: 30 * time.Minute
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultTables are the registry tables served from memory.
func DefaultTables() []Mapping {
	return []Mapping{
		{Source: "population", Target: "population_memory"},
		{Source: "population_deceased", Target: "population_deceased_memory"},
		{Source: "marriage_info", Target: "marriage_info_memory"},
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule:      "@every 30m",
		SyncOnStartup: true,
		HeapTableSize: 20737418240,
		Tables:        DefaultTables(),
		MetadataTable: "memory_sync_metadata",
		Pause:         time.Second,
		Timeout:       30 * time.Minute,
	}
}

// MergeDefaults fills empty fields from DefaultConfig in place and returns c.
// Boolean fields are taken as given.
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	if c.Schedule == "" {
		c.Schedule = d.Schedule
	}
	if c.HeapTableSize == 0 {
		c.HeapTableSize = d.HeapTableSize
	}
	if len(c.Tables) == 0 {
		c.Tables = d.Tables
	}
	if c.MetadataTable == "" {
		c.MetadataTable = d.MetadataTable
	}
	if c.Pause == 0 {
		c.Pause = d.Pause
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	return c
}

var identifier = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validate validates the configuration. Table names are interpolated into
// DDL, so only plain identifiers are accepted.
func (c *Config) Validate() error {
	if c.HeapTableSize < 0 {
		return ErrInvalidConfig("heap_table_size must not be negative")
	}
	if c.Pause < 0 {
		return ErrInvalidConfig("pause must not be negative")
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig("timeout must be > 0")
	}
	if !identifier.MatchString(c.MetadataTable) {
		return ErrInvalidConfig(fmt.Sprintf("metadata_table %q is not a plain identifier", c.MetadataTable))
	}
	seen := make(map[string]bool, len(c.Tables))
	for _, m := range c.Tables {
		if !identifier.MatchString(m.Source) || !identifier.MatchString(m.Target) {
			return ErrInvalidConfig(fmt.Sprintf("table mapping %s -> %s is not a plain identifier pair", m.Source, m.Target))
		}
		if m.Source == m.Target {
			return ErrInvalidConfig(fmt.Sprintf("table %s is mapped onto itself", m.Source))
		}
		if seen[m.Target] {
			return ErrInvalidConfig(fmt.Sprintf("target table %s is listed twice", m.Target))
		}
		seen[m.Target] = true
	}
	return nil
}
