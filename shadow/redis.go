package shadow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dailyyoga/regstats/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis stores the document under a single key. SET replaces the value
// atomically, so readers see either the old or the new document.
type Redis struct {
	client *redis.Client
	key    string
	cfg    *RedisConfig
	log    logger.Logger
}

var _ Shadow = (*Redis)(nil)

// NewRedisClient opens and pings a client for cfg.
func NewRedisClient(ctx context.Context, cfg *RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(cfg.Options())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ErrRead(err)
	}
	return client, nil
}

// NewRedis creates a redis shadow for the named cache on an existing client.
func NewRedis(client *redis.Client, cfg *RedisConfig, name string, log logger.Logger) (*Redis, error) {
	if client == nil {
		return nil, ErrInvalidConfig("redis client is required")
	}
	if cfg == nil {
		cfg = DefaultRedisConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	key := cfg.Key
	if name != "" {
		key += ":" + name
	}
	return &Redis{client: client, key: key, cfg: cfg, log: log}, nil
}

// Key returns the redis key the document is stored under.
func (r *Redis) Key() string {
	return r.key
}

// Save implements Shadow.
func (r *Redis) Save(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return ErrEncode(err)
	}
	if err := r.client.Set(ctx, r.key, data, r.cfg.TTL).Err(); err != nil {
		return ErrWrite(err)
	}
	return nil
}

// Load implements Shadow.
func (r *Redis) Load(ctx context.Context) (*Document, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, ErrRead(err)
	}
	return decode(data, r.log, zap.String("key", r.key)), nil
}
