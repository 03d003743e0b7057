package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{"no brokers", &Config{}, "brokers are required"},
		{"sasl", &Config{Brokers: []string{"b:9092"}, SecurityProtocol: "SASL_SSL"}, "unsupported security_protocol"},
		{"producer without topic", &Config{Brokers: []string{"b:9092"}, Producer: &ProducerConfig{}}, "producer.topic is required"},
		{"bad acks", &Config{Brokers: []string{"b:9092"}, Producer: &ProducerConfig{Topic: "t", Acks: "2"}}, "invalid producer.acks"},
		{"consumer without group", &Config{Brokers: []string{"b:9092"}, Consumer: &ConsumerConfig{Topics: []string{"t"}}}, "group_id is required"},
		{"bad offset reset", &Config{Brokers: []string{"b:9092"}, Consumer: &ConsumerConfig{GroupID: "g", Topics: []string{"t"}, AutoOffsetReset: "middle"}}, "auto_offset_reset"},
		{"ok", &Config{Brokers: []string{"b:9092"}, Producer: &ProducerConfig{Topic: "t"}, Consumer: &ConsumerConfig{GroupID: "g", Topics: []string{"t"}}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.MergeDefaults().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuildConfigMap(t *testing.T) {
	cfg := (&Config{
		Brokers:  []string{"a:9092", "b:9092"},
		Producer: &ProducerConfig{Topic: "events", ClientID: "regstats", Compression: "LZ4"},
		Consumer: &ConsumerConfig{GroupID: "g", Topics: []string{"changes"}, EnableAutoCommit: true},
	}).MergeDefaults()

	pm := cfg.Producer.BuildConfigMap(cfg.Brokers, cfg.SecurityProtocol)
	v, err := pm.Get("bootstrap.servers", nil)
	require.NoError(t, err)
	assert.Equal(t, "a:9092,b:9092", v)
	v, _ = pm.Get("compression.type", nil)
	assert.Equal(t, "lz4", v)
	v, _ = pm.Get("client.id", nil)
	assert.Equal(t, "regstats", v)

	cm := cfg.Consumer.BuildConfigMap(cfg.Brokers, cfg.SecurityProtocol)
	v, _ = cm.Get("auto.commit.interval.ms", nil)
	assert.Equal(t, 5000, v)
	v, _ = cm.Get("group.id", nil)
	assert.Equal(t, "g", v)
}

func TestMessageConversion(t *testing.T) {
	topic := "changes"
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 2, Offset: 42},
		Key:            []byte("national"),
		Value:          []byte(`{}`),
		Headers:        []kafka.Header{{Key: "source", Value: []byte("registry")}},
	}
	m := toMessage(km)
	assert.Equal(t, "changes", m.Topic)
	assert.EqualValues(t, 42, m.Offset)
	assert.Equal(t, []byte("registry"), m.Header("source"))
	assert.Nil(t, m.Header("missing"))

	back := fromMessage(&Message{Topic: "events", Partition: PartitionAny, Key: []byte("k"), Value: []byte("v"), Headers: m.Headers})
	assert.Equal(t, "events", *back.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, back.TopicPartition.Partition)
	require.Len(t, back.Headers, 1)
}

func TestValidateMessage(t *testing.T) {
	assert.Error(t, validateMessage(nil))
	assert.ErrorContains(t, validateMessage(&Message{Value: []byte("x")}), "topic is required")
	assert.ErrorContains(t, validateMessage(&Message{Topic: "t"}), "value is required")
	assert.NoError(t, validateMessage(&Message{Topic: "t", Value: []byte("x")}))
}

func TestRunHandler(t *testing.T) {
	calls := 0
	err := runHandler(context.Background(), func(context.Context, *Message) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, &Message{}, 3, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = runHandler(context.Background(), func(context.Context, *Message) error {
		calls++
		return boom
	}, &Message{}, 2, time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = runHandler(ctx, func(context.Context, *Message) error {
		calls++
		return boom
	}, &Message{}, 5, time.Hour)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
