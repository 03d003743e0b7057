package api

import "time"

// Config is the HTTP server configuration
type Config struct {
	// Addr is the listen address
	// default: ":5000"
	Addr string `mapstructure:"addr"`
	// ReadTimeout bounds reading a whole request
	// default: 15 * time.Second
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds writing a response. A bootstrap refresh runs
	// inside a request, so keep this above the cache fetch timeout.
	// default: 6 * time.Minute
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown
	// default: 10 * time.Second
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RefreshRate is the number of POST /cache/update requests per second
	// accepted per cache
	// default: 0.2
	RefreshRate float64 `mapstructure:"refresh_rate"`
	// RefreshBurst is the burst allowed above RefreshRate
	// default: 2
	RefreshBurst int `mapstructure:"refresh_burst"`
	// Service is reported by the health endpoint
	// default: "regstats"
	Service string `mapstructure:"service"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":5000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    6 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
		RefreshRate:     0.2,
		RefreshBurst:    2,
		Service:         "regstats",
	}
}

// MergeDefaults fills empty fields from DefaultConfig in place and returns c
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.RefreshRate == 0 {
		c.RefreshRate = d.RefreshRate
	}
	if c.RefreshBurst == 0 {
		c.RefreshBurst = d.RefreshBurst
	}
	if c.Service == "" {
		c.Service = d.Service
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrInvalidConfig("addr is required")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return ErrInvalidConfig("timeouts must not be negative")
	}
	if c.RefreshRate < 0 {
		return ErrInvalidConfig("refresh_rate must not be negative")
	}
	if c.RefreshBurst < 1 {
		return ErrInvalidConfig("refresh_burst must be >= 1")
	}
	return nil
}
