package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

// consumeInstance is a single kafka consumer in the group
type consumeInstance struct {
	logger logger.Logger
	config *ConsumerConfig
	name   string
	c      *kafka.Consumer

	closed atomic.Bool
}

func newConsumeInstance(name string, cfg *Config, log logger.Logger) (*consumeInstance, error) {
	consumer, err := kafka.NewConsumer(cfg.Consumer.BuildConfigMap(cfg.Brokers, cfg.SecurityProtocol))
	if err != nil {
		return nil, ErrConnection(err)
	}
	if err := consumer.SubscribeTopics(cfg.Consumer.Topics, nil); err != nil {
		consumer.Close()
		return nil, ErrSubscribe(cfg.Consumer.Topics, err)
	}
	return &consumeInstance{
		logger: log,
		config: cfg.Consumer,
		name:   name,
		c:      consumer,
	}, nil
}

func (c *consumeInstance) close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if err := c.c.Close(); err != nil {
		c.logger.Warn("kafka consumer close failed", zap.String("instance_name", c.name), zap.Error(err))
	}
	c.logger.Info("kafka consumer instance closed", zap.String("instance_name", c.name))
}

// consumeLoop polls until ctx is done or all brokers are down. Poll is
// bounded by PollTimeout so cancellation is noticed promptly.
func (c *consumeInstance) consumeLoop(ctx context.Context, handler Handler) error {
	timeoutMs := int(c.config.PollTimeout.Milliseconds())
	for {
		if ctx.Err() != nil {
			return nil
		}

		ev := c.c.Poll(timeoutMs)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := c.handleMessage(ctx, e, handler); err != nil {
				c.logger.Error("kafka consumer handle message failed",
					zap.String("instance_name", c.name),
					zap.Int32("partition", e.TopicPartition.Partition),
					zap.Int64("offset", int64(e.TopicPartition.Offset)),
					zap.Error(err),
				)
			}
		case kafka.Error:
			c.logger.Error("kafka consumer error", zap.Int("code", int(e.Code())), zap.String("error", e.String()))
			if e.Code() == kafka.ErrAllBrokersDown {
				return ErrConsume(e)
			}
		case kafka.OffsetsCommitted:
			if e.Error != nil {
				c.logger.Error("failed to commit offsets", zap.Error(e.Error))
			}
		default:
			c.logger.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", e)))
		}
	}
}

// handleMessage runs the handler and commits the offset. A message whose
// handler keeps failing is committed anyway so one bad record cannot stall
// the partition.
func (c *consumeInstance) handleMessage(ctx context.Context, msg *kafka.Message, handler Handler) error {
	start := time.Now()
	m := toMessage(msg)

	herr := runHandler(ctx, handler, m, c.config.MaxRetries, c.config.RetryBackoff)
	if herr != nil {
		c.logger.Warn("dropping message after handler failures",
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.Int("attempts", c.config.MaxRetries),
			zap.Error(herr),
		)
	}

	if !c.config.EnableAutoCommit {
		if _, err := c.c.CommitMessage(msg); err != nil {
			return ErrCommit(err)
		}
	}

	c.logger.Debug("kafka message processed",
		zap.String("topic", m.Topic),
		zap.Int32("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.Duration("duration", time.Since(start)),
	)
	return herr
}

// runHandler calls handler up to attempts times, pausing backoff between
// failures. It stops early when ctx is done.
func runHandler(ctx context.Context, handler Handler, msg *Message, attempts int, backoff time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
	}
	return err
}
