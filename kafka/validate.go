package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

const metadataTimeout = 10 * time.Second

// validateCluster checks that the brokers answer a metadata request,
// retrying with a fixed delay
func validateCluster(ctx context.Context, log logger.Logger, cfg *Config) error {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(cfg.Brokers, ","),
		"request.timeout.ms": int(metadataTimeout.Milliseconds()),
		"security.protocol":  cfg.SecurityProtocol,
	}

	var err error
	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		if err = fetchMetadata(configMap); err == nil {
			log.Info("kafka brokers connection validated", zap.Strings("brokers", cfg.Brokers))
			return nil
		}
		if attempt == cfg.ConnectAttempts {
			break
		}
		log.Warn("kafka brokers not reachable, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.ConnectAttempts),
		)
		select {
		case <-ctx.Done():
			return ErrConnection(ctx.Err())
		case <-time.After(cfg.ConnectRetryDelay):
		}
	}
	return ErrConnection(fmt.Errorf("after %d attempts: %w", cfg.ConnectAttempts, err))
}

func fetchMetadata(configMap *kafka.ConfigMap) error {
	admin, err := kafka.NewAdminClient(configMap)
	if err != nil {
		return err
	}
	defer admin.Close()
	_, err = admin.GetMetadata(nil, false, int(metadataTimeout.Milliseconds()))
	return err
}
