package cache

import "time"

// Config holds configuration for a Manager
type Config struct {
	// Name identifies the cache in logs, metrics and events (required)
	Name string `mapstructure:"name"`
	// RefreshIntervalSeconds is the period of the background refresh
	// default: 600
	RefreshIntervalSeconds int `mapstructure:"refresh_interval_seconds"`
	// FetchTimeout bounds one whole refresh including retries
	// default: 5 * time.Minute
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// MaxAttempts is the number of fetch attempts while the source is unavailable
	// default: 3
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryDelay is the fixed pause between attempts
	// default: 2 * time.Second
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// BootstrapOnMissingCache makes Get refresh synchronously when no
	// snapshot exists yet
	// default: true
	BootstrapOnMissingCache bool `mapstructure:"bootstrap_on_missing_cache"`
	// WarmOnStart forces one refresh from Start when there is no snapshot
	// or the restored one is past its next refresh time
	// default: true
	WarmOnStart bool `mapstructure:"warm_on_start"`
	// TopN is the length of the precomputed rankings
	// default: 10
	TopN int `mapstructure:"top_n"`
}

// DefaultConfig returns the default configuration. Name has no default.
func DefaultConfig() *Config {
	return &Config{
		RefreshIntervalSeconds:  600,
		FetchTimeout:            5 * time.Minute,
		MaxAttempts:             3,
		RetryDelay:              2 * time.Second,
		BootstrapOnMissingCache: true,
		WarmOnStart:             true,
		TopN:                    10,
	}
}

// MergeDefaults fills zero numeric fields from DefaultConfig in place and
// returns c. Boolean fields are taken as given.
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	if c.RefreshIntervalSeconds == 0 {
		c.RefreshIntervalSeconds = d.RefreshIntervalSeconds
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.TopN == 0 {
		c.TopN = d.TopN
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrInvalidConfig("name is required")
	}
	if c.RefreshIntervalSeconds <= 0 {
		return ErrInvalidConfig("refresh_interval_seconds must be a positive integer")
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidConfig("fetch_timeout must be > 0")
	}
	if c.MaxAttempts < 1 {
		return ErrInvalidConfig("max_attempts must be >= 1")
	}
	if c.RetryDelay < 0 {
		return ErrInvalidConfig("retry_delay must not be negative")
	}
	if c.TopN < 1 {
		return ErrInvalidConfig("top_n must be >= 1")
	}
	return nil
}

// RefreshInterval returns the refresh period as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}
