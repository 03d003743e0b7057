package app

import (
	"context"

	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/ch"
	"github.com/dailyyoga/regstats/config"
	"github.com/dailyyoga/regstats/events"
	"github.com/dailyyoga/regstats/kafka"
	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Events publishes refresh events to Kafka, records refresh history in
// ClickHouse and forces refreshes on registry change messages. Each part is
// skipped when its configuration is absent or disabled.
var Events = fx.Module("events",
	fx.Provide(
		fx.Annotate(newPublisherListeners, fx.ResultTags(`group:"listeners,flatten"`)),
		fx.Annotate(newHistoryListeners, fx.ResultTags(`group:"listeners,flatten"`)),
	),
	fx.Invoke(startChangeTrigger),
)

func newPublisherListeners(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) ([]cache.Listener, error) {
	if !cfg.KafkaProducerEnabled() {
		return nil, nil
	}
	log = logger.Named(log, "kafka.producer")
	producer, err := kafka.NewProducer(context.Background(), log, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return producer.Close()
		},
	})
	return []cache.Listener{events.NewPublisher(producer, cfg.Kafka.Producer.Topic, log)}, nil
}

func newHistoryListeners(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) ([]cache.Listener, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	log = logger.Named(log, "clickhouse")
	client, err := ch.NewClient(context.Background(), cfg.ClickHouse, log)
	if err != nil {
		return nil, err
	}
	writer, err := client.Writer()
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	table := cfg.ClickHouse.HistoryTable
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.ClickHouse.CreateTable {
				if err := client.Exec(ctx, events.HistoryDDL(table)); err != nil {
					return err
				}
				log.Info("refresh history table ready", zap.String("table", table))
			}
			return writer.Start()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return []cache.Listener{events.NewHistory(writer, table, log)}, nil
}

func startChangeTrigger(lc fx.Lifecycle, cfg *config.Config, log logger.Logger, caches *CacheSet) error {
	if !cfg.KafkaConsumerEnabled() {
		return nil
	}
	log = logger.Named(log, "kafka.consumer")
	consumer, err := kafka.NewConsumer(context.Background(), log, cfg.Kafka)
	if err != nil {
		return err
	}
	trigger := events.NewTrigger(log, caches.National, caches.Regional)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// the hook context expires with the start timeout; the loops
			// run until Close
			return consumer.Start(context.Background(), trigger.Handle)
		},
		OnStop: func(context.Context) error {
			return consumer.Close()
		},
	})
	return nil
}
