// Package kafka wraps confluent-kafka-go with the small producer and
// consumer surface used for refresh events and change triggers.
package kafka

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Message is a kafka message decoupled from the client library
type Message struct {
	Topic     string
	// Partition must be set to PartitionAny to let the partitioner choose
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

// Header gets the first header value for key
func (m *Message) Header(key string) []byte {
	for _, h := range m.Headers {
		if h.Key == key {
			return h.Value
		}
	}
	return nil
}

// PartitionAny lets the partitioner choose
const PartitionAny = kafka.PartitionAny

// Header is a message header
type Header struct {
	Key   string
	Value []byte
}

// Handler handles one consumed message
type Handler func(ctx context.Context, msg *Message) error

// Consumer consumes the configured topics until ctx is done or Close
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	Close() error
}

// Producer produces messages asynchronously; delivery failures are logged
type Producer interface {
	Produce(ctx context.Context, msg *Message) error
	Close() error
}

func toMessage(msg *kafka.Message) *Message {
	m := &Message{
		Partition: msg.TopicPartition.Partition,
		Offset:    int64(msg.TopicPartition.Offset),
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	if msg.TopicPartition.Topic != nil {
		m.Topic = *msg.TopicPartition.Topic
	}
	if len(msg.Headers) > 0 {
		m.Headers = make([]Header, len(msg.Headers))
		for i, h := range msg.Headers {
			m.Headers[i] = Header{Key: h.Key, Value: h.Value}
		}
	}
	return m
}

func fromMessage(msg *Message) *kafka.Message {
	topic := msg.Topic
	m := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: msg.Partition},
		Key:            msg.Key,
		Value:          msg.Value,
	}
	for _, h := range msg.Headers {
		m.Headers = append(m.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}
	return m
}
