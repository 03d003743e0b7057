package db

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

var validLogLevels = []string{"silent", "error", "warn", "info"}

// Config describes the registry database connection.
//
// Pool settings map onto database/sql. ConnectAttempts and ConnectRetryDelay
// bound how long Open keeps trying before giving up.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"` // default: 3306
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // default: 25
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // default: 10
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // default: 30m
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // default: 10m

	// LogLevel is the gorm log level, one of silent, error, warn or info.
	LogLevel      string        `mapstructure:"log_level"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"` // default: 1s

	ConnectAttempts   int           `mapstructure:"connect_attempts"`    // default: 3
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"` // default: 2s

	Charset string `mapstructure:"charset"` // default: utf8mb4
	// Loc is the time zone used to parse DATETIME columns.
	Loc string `mapstructure:"loc"` // default: Local
}

// DefaultConfig returns the defaults applied by MergeDefaults.
func DefaultConfig() *Config {
	return &Config{
		Port:              3306,
		MaxOpenConns:      25,
		MaxIdleConns:      10,
		ConnMaxLifetime:   30 * time.Minute,
		ConnMaxIdleTime:   10 * time.Minute,
		LogLevel:          "warn",
		SlowThreshold:     time.Second,
		ConnectAttempts:   3,
		ConnectRetryDelay: 2 * time.Second,
		Charset:           "utf8mb4",
		Loc:               "Local",
	}
}

// MergeDefaults fills zero fields in place and returns c.
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	setDefault(&c.Port, d.Port)
	setDefault(&c.MaxOpenConns, d.MaxOpenConns)
	setDefault(&c.MaxIdleConns, d.MaxIdleConns)
	setDefault(&c.ConnMaxLifetime, d.ConnMaxLifetime)
	setDefault(&c.ConnMaxIdleTime, d.ConnMaxIdleTime)
	setDefault(&c.LogLevel, d.LogLevel)
	setDefault(&c.SlowThreshold, d.SlowThreshold)
	setDefault(&c.ConnectAttempts, d.ConnectAttempts)
	setDefault(&c.ConnectRetryDelay, d.ConnectRetryDelay)
	setDefault(&c.Charset, d.Charset)
	setDefault(&c.Loc, d.Loc)
	return c
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return ErrInvalidConfig("host is required")
	case c.Port <= 0:
		return ErrInvalidConfig("port is required")
	case c.User == "":
		return ErrInvalidConfig("user is required")
	case c.Database == "":
		return ErrInvalidConfig("database is required")
	case c.ConnectAttempts < 1:
		return ErrInvalidConfig("connect_attempts must be at least 1")
	case c.ConnectRetryDelay < 0:
		return ErrInvalidConfig("connect_retry_delay must not be negative")
	}
	if !slices.ContainsFunc(validLogLevels, func(level string) bool {
		return strings.EqualFold(c.LogLevel, level)
	}) {
		return ErrInvalidConfig(fmt.Sprintf("log_level %q must be one of: %s", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	if _, err := time.LoadLocation(c.Loc); err != nil {
		return ErrInvalidConfig(fmt.Sprintf("loc %q: %v", c.Loc, err))
	}
	return nil
}

// MySQL converts c into a driver config. Validate must have passed.
func (c *Config) MySQL() *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.ParseTime = true
	if loc, err := time.LoadLocation(c.Loc); err == nil {
		mc.Loc = loc
	}
	mc.Params = map[string]string{"charset": c.Charset}
	return mc
}

// DSN renders the data source name passed to the gorm mysql dialector.
func (c *Config) DSN() string {
	return c.MySQL().FormatDSN()
}
