package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/routine"
	"go.uber.org/zap"
)

type defaultProducer struct {
	logger       logger.Logger
	p            *kafka.Producer
	runner       routine.Runner
	flushTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewProducer validates the cluster and creates a producer that logs
// delivery reports in the background
func NewProducer(ctx context.Context, log logger.Logger, cfg *Config) (Producer, error) {
	if cfg == nil || cfg.Producer == nil {
		return nil, ErrInvalidConfig("producer config is required")
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateCluster(ctx, log, cfg); err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(cfg.Producer.BuildConfigMap(cfg.Brokers, cfg.SecurityProtocol))
	if err != nil {
		return nil, ErrConnection(err)
	}

	kp := &defaultProducer{
		logger:       log,
		p:            producer,
		runner:       routine.New(log),
		flushTimeout: cfg.Producer.FlushTimeout,
		done:         make(chan struct{}),
	}
	kp.runner.GoNamed("kafka-delivery-reports", kp.handleDeliveryReports)

	log.Info("kafka producer initialized", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Producer.Topic))
	return kp, nil
}

func (kp *defaultProducer) handleDeliveryReports() {
	for {
		select {
		case <-kp.done:
			return
		case e, ok := <-kp.p.Events():
			if !ok {
				return
			}
			switch ev := e.(type) {
			case *kafka.Message:
				topic := ""
				if ev.TopicPartition.Topic != nil {
					topic = *ev.TopicPartition.Topic
				}
				if ev.TopicPartition.Error != nil {
					kp.logger.Error("failed to deliver message",
						zap.Error(ev.TopicPartition.Error),
						zap.String("topic", topic),
					)
				} else {
					kp.logger.Debug("message delivered",
						zap.String("topic", topic),
						zap.Int32("partition", ev.TopicPartition.Partition),
						zap.Int64("offset", int64(ev.TopicPartition.Offset)),
					)
				}
			case kafka.Error:
				kp.logger.Error("kafka producer error",
					zap.Int("code", int(ev.Code())),
					zap.String("error", ev.String()),
				)
			default:
				kp.logger.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
			}
		}
	}
}

// Produce enqueues msg; delivery is reported asynchronously
func (kp *defaultProducer) Produce(ctx context.Context, msg *Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-kp.done:
		return ErrClosed
	default:
	}
	return kp.p.Produce(fromMessage(msg), nil)
}

func validateMessage(msg *Message) error {
	if msg == nil {
		return ErrInvalidMessage("message is nil")
	}
	if msg.Topic == "" {
		return ErrInvalidMessage("topic is required")
	}
	if msg.Value == nil {
		return ErrInvalidMessage("value is required")
	}
	return nil
}

// Close flushes queued messages and closes the producer
func (kp *defaultProducer) Close() error {
	kp.closeOnce.Do(func() {
		remaining := kp.p.Flush(int(kp.flushTimeout.Milliseconds()))
		if remaining > 0 {
			kp.logger.Warn("producer closed with undelivered messages", zap.Int("remaining", remaining))
		}
		close(kp.done)
		kp.runner.Wait()
		kp.p.Close()
	})
	return nil
}
