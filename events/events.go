// Package events connects cache refreshes to Kafka and ClickHouse: it
// publishes refresh events, records refresh history and turns registry
// change messages into forced refreshes.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/kafka"
	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

// HeaderEventType is set on every published message.
const HeaderEventType = "event-type"

// EventTypeRefresh marks a RefreshEvent payload.
const EventTypeRefresh = "cache.refresh"

// Publisher publishes every refresh attempt as JSON keyed by cache name.
type Publisher struct {
	producer kafka.Producer
	topic    string
	log      logger.Logger
}

var _ cache.Listener = (*Publisher)(nil)

// NewPublisher creates a publisher writing to topic.
func NewPublisher(producer kafka.Producer, topic string, log logger.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, log: log}
}

// payload is the wire form of a refresh event.
type payload struct {
	cache.RefreshEvent
	DurationMs int64 `json:"duration_ms"`
}

// OnRefresh implements cache.Listener. Publishing failures are logged.
func (p *Publisher) OnRefresh(ctx context.Context, ev cache.RefreshEvent) {
	value, err := json.Marshal(payload{RefreshEvent: ev, DurationMs: ev.Duration.Milliseconds()})
	if err != nil {
		p.log.Error("failed to encode refresh event", zap.String("cache", ev.Cache), zap.Error(err))
		return
	}
	msg := &kafka.Message{
		Topic:     p.topic,
		Partition: kafka.PartitionAny,
		Key:       []byte(ev.Cache),
		Value:     value,
		Headers:   []kafka.Header{{Key: HeaderEventType, Value: []byte(EventTypeRefresh)}},
		Timestamp: time.Now(),
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		p.log.Warn("failed to publish refresh event",
			zap.String("cache", ev.Cache),
			zap.String("refresh_id", ev.RefreshID),
			zap.Error(err),
		)
	}
}
