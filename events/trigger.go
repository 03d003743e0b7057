package events

import (
	"context"
	"encoding/json"

	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/kafka"
	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

// Refresher is the part of a cache manager the trigger needs.
type Refresher interface {
	Name() string
	ForceRefresh() cache.ForceResult
}

// Change is a registry change notification. An empty Caches list means
// every cache is affected.
type Change struct {
	Table  string   `json:"table"`
	Caches []string `json:"caches"`
}

// Trigger forces a refresh of the caches named in each change message.
// Bursts of changes coalesce into at most one follow-up refresh per cache.
type Trigger struct {
	caches map[string]Refresher
	order  []string
	log    logger.Logger
}

// NewTrigger creates a trigger over the given caches.
func NewTrigger(log logger.Logger, caches ...Refresher) *Trigger {
	t := &Trigger{caches: make(map[string]Refresher, len(caches)), log: log}
	for _, c := range caches {
		t.caches[c.Name()] = c
		t.order = append(t.order, c.Name())
	}
	return t
}

// Handle is a kafka.Handler. Malformed messages are logged and dropped
// rather than retried.
func (t *Trigger) Handle(_ context.Context, msg *kafka.Message) error {
	var change Change
	if len(msg.Value) > 0 {
		if err := json.Unmarshal(msg.Value, &change); err != nil {
			t.log.Warn("ignoring malformed change message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			return nil
		}
	}

	names := change.Caches
	if len(names) == 0 {
		names = t.order
	}

	var unknown []string
	for _, name := range names {
		c, ok := t.caches[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		result := c.ForceRefresh()
		t.log.Info("refresh triggered by change",
			zap.String("cache", name),
			zap.String("table", change.Table),
			zap.String("result", string(result)),
		)
	}
	if len(unknown) > 0 {
		t.log.Warn("change names unknown caches", zap.Strings("caches", unknown))
	}
	return nil
}
