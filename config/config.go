// Package config loads the service configuration from a YAML file and
// REGSTATS_* environment variables into one struct holding every
// component's Config.
package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/dailyyoga/regstats/api"
	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/ch"
	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/kafka"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/memsync"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/dailyyoga/regstats/shadow"
	"github.com/dailyyoga/regstats/source"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// REGSTATS_DATABASE_HOST for database.host.
const EnvPrefix = "REGSTATS"

// Config is the aggregate service configuration
type Config struct {
	Logger   *logger.Config  `mapstructure:"logger"`
	Database *db.Config      `mapstructure:"database"`
	Source   *source.Config  `mapstructure:"source"`
	National *cache.Config   `mapstructure:"national"`
	Regional *cache.Config   `mapstructure:"regional"`
	Shadow   *shadow.Config  `mapstructure:"shadow"`
	Metrics  *metrics.Config `mapstructure:"metrics"`
	MemSync  *memsync.Config `mapstructure:"memsync"`
	HTTP     *api.Config     `mapstructure:"http"`
	// Kafka enables refresh events (producer) and change triggers
	// (consumer); nil disables both
	Kafka      *kafka.Config `mapstructure:"kafka"`
	ClickHouse *ch.Config    `mapstructure:"clickhouse"`
}

// Default returns the configuration used when nothing is overridden. The
// database connection has no usable default.
func Default() *Config {
	national := cache.DefaultConfig()
	national.Name = "national"
	regional := cache.DefaultConfig()
	regional.Name = "regional"
	regional.RefreshIntervalSeconds = 1800

	return &Config{
		Logger:     logger.DefaultConfig(),
		Database:   db.DefaultConfig(),
		Source:     source.DefaultConfig(),
		National:   national,
		Regional:   regional,
		Shadow:     shadow.DefaultConfig(),
		Metrics:    metrics.DefaultConfig(),
		MemSync:    memsync.DefaultConfig(),
		HTTP:       api.DefaultConfig(),
		ClickHouse: ch.DefaultConfig(),
	}
}

// Load reads path (when non-empty) and the environment on top of Default,
// then fills remaining defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v, Default()); err != nil {
		return nil, ErrLoad(path, err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, ErrLoad(path, err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, ErrLoad(path, err)
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every leaf of def as a viper default so that
// AutomaticEnv can override keys the file does not mention.
func setDefaults(v *viper.Viper, def *Config) error {
	var tree map[string]any
	if err := mapstructure.Decode(def, &tree); err != nil {
		return err
	}
	walk("", tree, v.SetDefault)
	return nil
}

func walk(prefix string, tree map[string]any, set func(key string, value any)) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			walk(key, sub, set)
			continue
		}
		if isNil(val) {
			continue
		}
		set(key, val)
	}
}

func isNil(val any) bool {
	rv := reflect.ValueOf(val)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Prepare fills missing sections and defaults in place and validates every
// enabled component.
func (c *Config) Prepare() error {
	d := Default()
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	c.Logger = c.Logger.MergeDefaults()
	if c.Database == nil {
		c.Database = d.Database
	}
	c.Database.MergeDefaults()
	if c.Source == nil {
		c.Source = d.Source
	}
	c.Source.MergeDefaults()
	if c.National == nil {
		c.National = d.National
	}
	c.National.MergeDefaults()
	if c.Regional == nil {
		c.Regional = d.Regional
	}
	c.Regional.MergeDefaults()
	if c.Shadow == nil {
		c.Shadow = d.Shadow
	}
	c.Shadow.File.MergeDefaults()
	c.Shadow.Redis.MergeDefaults()
	if c.Metrics == nil {
		c.Metrics = d.Metrics
	}
	if c.MemSync == nil {
		c.MemSync = d.MemSync
	}
	c.MemSync.MergeDefaults()
	if c.HTTP == nil {
		c.HTTP = d.HTTP
	}
	c.HTTP.MergeDefaults()
	if c.ClickHouse == nil {
		c.ClickHouse = d.ClickHouse
	}
	c.ClickHouse.MergeDefaults()
	if c.Kafka != nil {
		c.Kafka.MergeDefaults()
	}
	return c.Validate()
}

// Validate validates every component's configuration
func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, ErrSection(section, err))
		}
	}
	add("logger", c.Logger.Validate())
	add("database", c.Database.Validate())
	add("source", c.Source.Validate())
	add("national", c.National.Validate())
	add("regional", c.Regional.Validate())
	if c.National.Name == c.Regional.Name {
		add("regional", ErrDuplicateCacheName(c.Regional.Name))
	}
	add("shadow", c.Shadow.Validate())
	add("metrics", c.Metrics.Validate())
	add("memsync", c.MemSync.Validate())
	add("http", c.HTTP.Validate())
	if c.ClickHouse.Enabled {
		add("clickhouse", c.ClickHouse.Validate())
	}
	if c.Kafka != nil {
		add("kafka", c.Kafka.Validate())
	}
	return errors.Join(errs...)
}

// KafkaProducerEnabled reports whether refresh events are published.
func (c *Config) KafkaProducerEnabled() bool {
	return c.Kafka != nil && c.Kafka.Producer != nil
}

// KafkaConsumerEnabled reports whether change messages trigger refreshes.
func (c *Config) KafkaConsumerEnabled() bool {
	return c.Kafka != nil && c.Kafka.Consumer != nil
}
