package shadow

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

var validBackends = []string{"file", "redis", "none"}

// Config selects and configures the shadow backend
type Config struct {
	// Backend, file, redis or none
	// default: "file"
	Backend string `mapstructure:"backend"`
	// Dir holds one <cache>_cache.json document per cache for the file backend
	// default: "data"
	Dir   string      `mapstructure:"dir"`
	File  FileConfig  `mapstructure:"file"`
	Redis RedisConfig `mapstructure:"redis"`
}

// DefaultConfig returns the default shadow configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: "file",
		Dir:     "data",
		File:    *DefaultFileConfig(),
		Redis:   *DefaultRedisConfig(),
	}
}

// Validate validates the selected backend's configuration
func (c *Config) Validate() error {
	if !slices.Contains(validBackends, c.Backend) {
		return ErrInvalidConfig("backend must be one of file, redis, none")
	}
	switch c.Backend {
	case "file":
		if c.Dir == "" {
			return ErrInvalidConfig("dir is required for the file backend")
		}
		if c.File.LockTimeout < 0 {
			return ErrInvalidConfig("file.lock_timeout must not be negative")
		}
	case "redis":
		return c.Redis.Validate()
	}
	return nil
}

// FileFor returns the file shadow configuration of the named cache.
func (c *Config) FileFor(name string) *FileConfig {
	return (&FileConfig{
		Path:        filepath.Join(c.Dir, name+"_cache.json"),
		LockTimeout: c.File.LockTimeout,
	}).MergeDefaults()
}

// FileConfig configures the file shadow
type FileConfig struct {
	// Path of the snapshot document; the lock file lives next to it
	Path string `mapstructure:"path"`
	// LockTimeout bounds the wait for the cross-process lock, after which
	// the operation proceeds unlocked
	// default: 100 * time.Millisecond
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// DefaultFileConfig returns the default file shadow configuration
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		LockTimeout: 100 * time.Millisecond,
	}
}

// MergeDefaults fills zero fields in place and returns c
func (c *FileConfig) MergeDefaults() *FileConfig {
	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultFileConfig().LockTimeout
	}
	return c
}

// Validate validates the file shadow configuration
func (c *FileConfig) Validate() error {
	if c.Path == "" {
		return ErrInvalidConfig("file.path is required")
	}
	if c.LockTimeout < 0 {
		return ErrInvalidConfig("file.lock_timeout must not be negative")
	}
	return nil
}

// RedisConfig configures the redis shadow
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// PoolSize default: 10
	PoolSize int `mapstructure:"pool_size"`
	// DialTimeout default: 5 * time.Second
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// Key the document is stored under; the cache name is appended
	// default: "regstats:snapshot"
	Key string `mapstructure:"key"`
	// TTL of the stored document, 0 keeps it forever
	TTL time.Duration `mapstructure:"ttl"`
}

// DefaultRedisConfig returns the default redis shadow configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
		Key:         "regstats:snapshot",
	}
}

// MergeDefaults fills zero fields in place and returns c
func (c *RedisConfig) MergeDefaults() *RedisConfig {
	d := DefaultRedisConfig()
	if c.PoolSize == 0 {
		c.PoolSize = d.PoolSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.Key == "" {
		c.Key = d.Key
	}
	return c
}

// Validate validates the redis shadow configuration
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return ErrInvalidConfig("redis.addr is required")
	}
	if c.DB < 0 {
		return ErrInvalidConfig("redis.db must not be negative")
	}
	if c.PoolSize < 0 {
		return ErrInvalidConfig("redis.pool_size must not be negative")
	}
	if c.DialTimeout < 0 || c.TTL < 0 {
		return ErrInvalidConfig("redis timeouts must not be negative")
	}
	return nil
}

// Options converts the configuration into go-redis options
func (c *RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:        c.Addr,
		Username:    c.Username,
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		DialTimeout: c.DialTimeout,
	}
}
