package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// noopValkeyCache is a process-local fallback used when no Valkey node is
// configured or reachable. Entries are not shared across replicas.
type noopValkeyCache struct {
	mu        sync.Mutex
	m         map[string]noopEntry
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
	logger    logger.Logger
}

// sweepInterval bounds how often Set scans for expired entries. Keys that are
// never read again, such as stale vals generations, are only reclaimed here.
const sweepInterval = time.Minute

type noopEntry struct {
	data    []byte
	expires time.Time
}

func NewNoopValkeyCache(defaultTTL time.Duration, log logger.Logger) ValkeyCluster {
	log.Warn("Valkey cache unavailable; using in-memory fallback")
	return &noopValkeyCache{m: make(map[string]noopEntry), ttl: defaultTTL, now: time.Now, logger: log}
}

func (n *noopValkeyCache) Get(_ context.Context, key string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.m[key]
	if ok && !e.expires.IsZero() && !n.now().Before(e.expires) {
		delete(n.m, key)
		ok = false
	}
	if !ok {
		monitoring.RecordCacheOperation("get", "miss")
		return nil, ErrCacheMiss
	}
	monitoring.RecordCacheOperation("get", "hit")
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (n *noopValkeyCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = n.ttl
	}
	e := noopEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expires = n.now().Add(ttl)
	}
	n.mu.Lock()
	n.sweepLocked()
	n.m[key] = e
	n.mu.Unlock()
	monitoring.RecordCacheOperation("set", "ok")
	return nil
}

func (n *noopValkeyCache) sweepLocked() {
	now := n.now()
	if now.Before(n.nextSweep) {
		return
	}
	n.nextSweep = now.Add(sweepInterval)
	removed := 0
	for k, e := range n.m {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(n.m, k)
			removed++
		}
	}
	if removed > 0 {
		n.logger.Debug("In-memory cache swept", "removed", removed, "remaining", len(n.m))
	}
}

func (n *noopValkeyCache) Delete(_ context.Context, keys ...string) error {
	n.mu.Lock()
	for _, k := range keys {
		delete(n.m, k)
	}
	n.mu.Unlock()
	monitoring.RecordCacheOperation("delete", "ok")
	return nil
}

// Incr mirrors Redis INCR: counters never expire.
func (n *noopValkeyCache) Incr(_ context.Context, key string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var cur int64
	if e, ok := n.m[key]; ok {
		v, err := strconv.ParseInt(string(e.data), 10, 64)
		if err != nil {
			return 0, err
		}
		cur = v
	}
	cur++
	n.m[key] = noopEntry{data: []byte(strconv.FormatInt(cur, 10))}
	monitoring.RecordCacheOperation("incr", "ok")
	return cur, nil
}

func (n *noopValkeyCache) HealthCheck(context.Context) error { return nil }
