package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// valkeySingleImpl implements ValkeyCluster against a single-node Valkey/Redis instance.
type valkeySingleImpl struct {
	client *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

func NewValkeySingle(addr string, db int, password string, defaultTTL time.Duration, log logger.Logger) (ValkeyCluster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey single-node: %w", err)
	}

	return &valkeySingleImpl{client: client, logger: log, ttl: defaultTTL}, nil
}

func (v *valkeySingleImpl) Get(ctx context.Context, key string) ([]byte, error) {
	return recordGet(v.client.Get(ctx, key).Bytes())
}

func (v *valkeySingleImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error")
		v.logger.Warn("cache set failed", "key", key, "error", err)
		return err
	}
	monitoring.RecordCacheOperation("set", "ok")
	return nil
}

func (v *valkeySingleImpl) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := v.client.Del(ctx, keys...).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error")
		return err
	}
	monitoring.RecordCacheOperation("delete", "ok")
	return nil
}

func (v *valkeySingleImpl) Incr(ctx context.Context, key string) (int64, error) {
	n, err := v.client.Incr(ctx, key).Result()
	if err != nil {
		monitoring.RecordCacheOperation("incr", "error")
		return 0, err
	}
	monitoring.RecordCacheOperation("incr", "ok")
	return n, nil
}

func (v *valkeySingleImpl) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}
