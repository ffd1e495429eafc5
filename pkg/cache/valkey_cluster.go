package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// ValkeyCluster is the cache surface used by the dashboard resolver.
type ValkeyCluster interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. []byte and string are stored as-is, other
	// values are JSON encoded. ttl <= 0 uses the client's default TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr atomically bumps an integer counter and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	HealthCheck(ctx context.Context) error
}

type valkeyClusterImpl struct {
	client *redis.ClusterClient
	logger logger.Logger
	ttl    time.Duration
}

func NewValkeyCluster(nodes []string, password string, defaultTTL time.Duration, log logger.Logger) (ValkeyCluster, error) {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        nodes,
		Password:     password,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey cluster: %w", err)
	}

	return &valkeyClusterImpl{client: client, logger: log, ttl: defaultTTL}, nil
}

func (v *valkeyClusterImpl) Get(ctx context.Context, key string) ([]byte, error) {
	return recordGet(v.client.Get(ctx, key).Bytes())
}

func (v *valkeyClusterImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	monitoring.RecordCacheOperation("set", "ok")
	return nil
}

// Delete removes keys one by one; a multi-key DEL would cross hash slots.
func (v *valkeyClusterImpl) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := v.client.Del(ctx, k).Err(); err != nil {
			monitoring.RecordCacheOperation("delete", "error")
			return err
		}
	}
	monitoring.RecordCacheOperation("delete", "ok")
	return nil
}

func (v *valkeyClusterImpl) Incr(ctx context.Context, key string) (int64, error) {
	n, err := v.client.Incr(ctx, key).Result()
	if err != nil {
		monitoring.RecordCacheOperation("incr", "error")
		return 0, err
	}
	monitoring.RecordCacheOperation("incr", "ok")
	return n, nil
}

func (v *valkeyClusterImpl) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func recordGet(b []byte, err error) ([]byte, error) {
	switch {
	case errors.Is(err, redis.Nil):
		monitoring.RecordCacheOperation("get", "miss")
		return nil, ErrCacheMiss
	case err != nil:
		monitoring.RecordCacheOperation("get", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("get", "hit")
	return b, nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return b, nil
}
