package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Config is the shared kafka configuration. A nil Producer or Consumer
// disables that side.
type Config struct {
	// kafka cluster brokers
	Brokers []string `mapstructure:"brokers"`

	// Security protocol: only "PLAINTEXT" is supported for now
	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol"`

	// ConnectAttempts is how many times the cluster check is tried
	// default: 3
	ConnectAttempts int `mapstructure:"connect_attempts"`

	// ConnectRetryDelay is the fixed pause between cluster checks
	// default: 2s
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`

	Producer *ProducerConfig `mapstructure:"producer"`
	Consumer *ConsumerConfig `mapstructure:"consumer"`
}

// MergeDefaults fills empty fields in place and returns c
func (c *Config) MergeDefaults() *Config {
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 3
	}
	if c.ConnectRetryDelay == 0 {
		c.ConnectRetryDelay = 2 * time.Second
	}
	if c.Producer != nil {
		c.Producer.mergeDefaults()
	}
	if c.Consumer != nil {
		c.Consumer.mergeDefaults()
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if c.SecurityProtocol != "PLAINTEXT" {
		return ErrInvalidConfig(fmt.Sprintf("unsupported security_protocol: %s", c.SecurityProtocol))
	}
	if c.ConnectAttempts < 1 {
		return ErrInvalidConfig("connect_attempts must be >= 1")
	}
	if c.Producer != nil {
		if err := c.Producer.Validate(); err != nil {
			return err
		}
	}
	if c.Consumer != nil {
		if err := c.Consumer.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ConsumerConfig is the configuration for kafka consumer
type ConsumerConfig struct {
	GroupID string   `mapstructure:"group_id"`
	Topics  []string `mapstructure:"topics"`

	// MaxRetries is how many times a failing handler is called per message
	// default: 3
	MaxRetries int `mapstructure:"max_retries"`

	// RetryBackoff is the pause between handler attempts
	// default: 500ms
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// Instance number for parallel processing
	// default: 1
	InstanceNum int `mapstructure:"instance_num"`

	// Auto offset reset policy: "earliest" or "latest"
	// default: "latest"
	AutoOffsetReset string `mapstructure:"auto_offset_reset"`

	// Enable auto commit of offsets
	// default: false
	EnableAutoCommit bool `mapstructure:"enable_auto_commit"`

	// Auto commit interval (only used when EnableAutoCommit is true)
	// default: 5s
	AutoCommitInterval time.Duration `mapstructure:"auto_commit_interval"`

	// Session timeout
	// default: 30s
	SessionTimeout time.Duration `mapstructure:"session_timeout"`

	// Max poll interval - maximum time between two polls
	// default: 120s
	MaxPollInterval time.Duration `mapstructure:"max_poll_interval"`

	// PollTimeout bounds one Poll so the loop notices cancellation
	// default: 500ms
	PollTimeout time.Duration `mapstructure:"poll_timeout"`

	// Debug enables librdkafka consumer debug logs
	Debug bool `mapstructure:"debug"`
}

// DefaultConsumerConfig returns the consumer defaults
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		MaxRetries:         3,
		RetryBackoff:       500 * time.Millisecond,
		InstanceNum:        1,
		AutoOffsetReset:    "latest",
		AutoCommitInterval: 5 * time.Second,
		SessionTimeout:     30 * time.Second,
		MaxPollInterval:    120 * time.Second,
		PollTimeout:        500 * time.Millisecond,
	}
}

func (c *ConsumerConfig) mergeDefaults() {
	d := DefaultConsumerConfig()
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.InstanceNum == 0 {
		c.InstanceNum = d.InstanceNum
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = d.AutoOffsetReset
	}
	if c.AutoCommitInterval == 0 {
		c.AutoCommitInterval = d.AutoCommitInterval
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = d.SessionTimeout
	}
	if c.MaxPollInterval == 0 {
		c.MaxPollInterval = d.MaxPollInterval
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = d.PollTimeout
	}
}

// Validate validates the consumer configuration
func (c *ConsumerConfig) Validate() error {
	if c.GroupID == "" {
		return ErrInvalidConfig("consumer.group_id is required")
	}
	if len(c.Topics) == 0 {
		return ErrInvalidConfig("consumer.topics are required")
	}
	if c.AutoOffsetReset != "earliest" && c.AutoOffsetReset != "latest" {
		return ErrInvalidConfig(
			fmt.Sprintf("invalid auto_offset_reset: %s, must be either 'earliest' or 'latest'", c.AutoOffsetReset),
		)
	}
	if c.EnableAutoCommit && c.AutoCommitInterval <= 0 {
		return ErrInvalidConfig("auto_commit_interval must be greater than 0 when enable_auto_commit is true")
	}
	if c.MaxRetries < 1 {
		return ErrInvalidConfig("consumer.max_retries must be >= 1")
	}
	if c.InstanceNum < 1 {
		return ErrInvalidConfig("consumer.instance_num must be >= 1")
	}
	if c.SessionTimeout <= 0 || c.MaxPollInterval <= 0 || c.PollTimeout <= 0 {
		return ErrInvalidConfig("consumer timeouts must be greater than 0")
	}
	return nil
}

// BuildConfigMap renders the librdkafka consumer configuration
func (c *ConsumerConfig) BuildConfigMap(brokers []string, protocol string) *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":    strings.Join(brokers, ","),
		"group.id":             c.GroupID,
		"auto.offset.reset":    strings.ToLower(c.AutoOffsetReset),
		"enable.auto.commit":   c.EnableAutoCommit,
		"session.timeout.ms":   int(c.SessionTimeout.Milliseconds()),
		"max.poll.interval.ms": int(c.MaxPollInterval.Milliseconds()),
		"security.protocol":    protocol,
	}
	if c.EnableAutoCommit {
		_ = configMap.SetKey("auto.commit.interval.ms", int(c.AutoCommitInterval.Milliseconds()))
	}
	if c.Debug {
		_ = configMap.SetKey("debug", "consumer,cgrp,topic,fetch")
	}
	return configMap
}

// ProducerConfig is the configuration for kafka producer
type ProducerConfig struct {
	// Topic receives refresh events
	Topic string `mapstructure:"topic"`

	// ClientID identifies this producer in broker logs and metrics
	ClientID string `mapstructure:"client_id"`

	// Acks: "all", "1" or "0"
	// default: "all"
	Acks string `mapstructure:"acks"`

	// Compression: none, gzip, snappy, lz4, zstd
	// default: "none"
	Compression string `mapstructure:"compression"`

	// LingerMs batch sending wait time in milliseconds
	// default: 0
	LingerMs int `mapstructure:"linger_ms"`

	// BatchSize in bytes
	// default: 100KB
	BatchSize int `mapstructure:"batch_size"`

	// Max retries for kafka producer
	// default: 3
	MaxRetries int `mapstructure:"max_retries"`

	// FlushTimeout bounds the flush of queued messages on Close
	// default: 10s
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
}

// DefaultProducerConfig returns the producer defaults
func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Acks:         "all",
		Compression:  "none",
		BatchSize:    100 * 1024,
		MaxRetries:   3,
		FlushTimeout: 10 * time.Second,
	}
}

func (p *ProducerConfig) mergeDefaults() {
	d := DefaultProducerConfig()
	if p.Acks == "" {
		p.Acks = d.Acks
	}
	if p.Compression == "" {
		p.Compression = d.Compression
	}
	if p.BatchSize == 0 {
		p.BatchSize = d.BatchSize
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = d.MaxRetries
	}
	if p.FlushTimeout == 0 {
		p.FlushTimeout = d.FlushTimeout
	}
}

// Validate validates the producer configuration
func (p *ProducerConfig) Validate() error {
	if p.Topic == "" {
		return ErrInvalidConfig("producer.topic is required")
	}
	switch strings.ToLower(p.Acks) {
	case "all", "-1", "0", "1":
	default:
		return ErrInvalidConfig(fmt.Sprintf("invalid producer.acks: %s", p.Acks))
	}
	return nil
}

// BuildConfigMap renders the librdkafka producer configuration
func (p *ProducerConfig) BuildConfigMap(brokers []string, protocol string) *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(brokers, ","),
		"compression.type":  strings.ToLower(p.Compression),
		"acks":              strings.ToLower(p.Acks),
		"linger.ms":         p.LingerMs,
		"batch.size":        p.BatchSize,
		"retries":           p.MaxRetries,
		"security.protocol": protocol,
	}
	if p.ClientID != "" {
		_ = configMap.SetKey("client.id", p.ClientID)
	}
	return configMap
}
