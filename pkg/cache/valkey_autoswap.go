package cache

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// autoSwapCache starts on a fallback (usually the in-memory cache) and swaps
// to a real Valkey client once one can be dialed.
type autoSwapCache struct {
	mu       sync.RWMutex
	current  ValkeyCluster
	swapped  bool
	logger   logger.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newAutoSwapCache(fallback ValkeyCluster, log logger.Logger, interval time.Duration, dialReal func() (ValkeyCluster, error)) *autoSwapCache {
	a := &autoSwapCache{
		current: fallback,
		logger:  log,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				real, err := dialReal()
				if err != nil {
					a.logger.Warn("Valkey connection attempt failed; will retry", "error", err)
					continue
				}
				a.mu.Lock()
				a.current = real
				a.swapped = true
				a.mu.Unlock()
				a.logger.Info("Valkey connection established; switched from in-memory to real cache")
				return
			}
		}
	}()

	return a
}

// Stop ends the background connector. Safe to call more than once.
func (a *autoSwapCache) Stop() { a.stopOnce.Do(func() { close(a.stopCh) }) }

// Swapped reports whether the real client is active.
func (a *autoSwapCache) Swapped() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.swapped
}

func (a *autoSwapCache) active() ValkeyCluster {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

func (a *autoSwapCache) Get(ctx context.Context, key string) ([]byte, error) {
	return a.active().Get(ctx, key)
}

func (a *autoSwapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.active().Set(ctx, key, value, ttl)
}

func (a *autoSwapCache) Delete(ctx context.Context, keys ...string) error {
	return a.active().Delete(ctx, keys...)
}

func (a *autoSwapCache) Incr(ctx context.Context, key string) (int64, error) {
	return a.active().Incr(ctx, key)
}

func (a *autoSwapCache) HealthCheck(ctx context.Context) error {
	return a.active().HealthCheck(ctx)
}

// NewAutoSwapForSingle upgrades from fallback to a single-node client when reachable.
func NewAutoSwapForSingle(addr string, db int, password string, ttl, retry time.Duration, log logger.Logger, fallback ValkeyCluster) ValkeyCluster {
	return newAutoSwapCache(fallback, log, retry, func() (ValkeyCluster, error) {
		return NewValkeySingle(addr, db, password, ttl, log)
	})
}

// NewAutoSwapForCluster upgrades from fallback to a cluster client when reachable.
func NewAutoSwapForCluster(nodes []string, password string, ttl, retry time.Duration, log logger.Logger, fallback ValkeyCluster) ValkeyCluster {
	return newAutoSwapCache(fallback, log, retry, func() (ValkeyCluster, error) {
		return NewValkeyCluster(nodes, password, ttl, log)
	})
}

// Stopper is implemented by caches that own a background goroutine.
type Stopper interface{ Stop() }
