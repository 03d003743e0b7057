package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/routine"
	"go.uber.org/zap"
)

type defaultConsumer struct {
	logger    logger.Logger
	instances []*consumeInstance
	runner    routine.Runner

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewConsumer validates the cluster and creates cfg.Consumer.InstanceNum
// consumers in the same group
func NewConsumer(ctx context.Context, log logger.Logger, cfg *Config) (Consumer, error) {
	if cfg == nil || cfg.Consumer == nil {
		return nil, ErrInvalidConfig("consumer config is required")
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateCluster(ctx, log, cfg); err != nil {
		return nil, err
	}

	instances := make([]*consumeInstance, 0, cfg.Consumer.InstanceNum)
	for i := 0; i < cfg.Consumer.InstanceNum; i++ {
		name := fmt.Sprintf("%s-instance-%d", cfg.Consumer.GroupID, i+1)
		inst, err := newConsumeInstance(name, cfg, log)
		if err != nil {
			for _, created := range instances {
				created.close()
			}
			return nil, err
		}
		instances = append(instances, inst)
	}

	return &defaultConsumer{
		logger:    log,
		instances: instances,
		runner:    routine.New(log),
	}, nil
}

// Start runs one consume loop per instance in the background
func (c *defaultConsumer) Start(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if len(c.instances) == 0 {
		return ErrNoConsumerInstances
	}

	ctx, c.cancel = context.WithCancel(ctx)
	for _, inst := range c.instances {
		inst := inst
		c.runner.GoNamedWithContext(ctx, inst.name, func(ctx context.Context) {
			if err := inst.consumeLoop(ctx, handler); err != nil {
				c.logger.Error("kafka consumer loop exited with error",
					zap.String("instance_name", inst.name),
					zap.Error(err),
				)
			}
		})
		c.logger.Info("kafka consumer instance started", zap.String("instance_name", inst.name))
	}
	return nil
}

// Close stops the loops, waits for them and closes every instance
func (c *defaultConsumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.runner.Wait()
	for _, inst := range c.instances {
		inst.close()
	}
	return nil
}
