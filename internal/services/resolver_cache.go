package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/pkg/cache"
)

// Cached dashboard values are keyed by a per-action generation counter.
// Bumping the counter orphans every cached entry of the action, which then
// expires through its TTL.
const (
	valsKeyPrefix = "dashboard:vals:"
	genKeyPrefix  = "dashboard:gen:"
)

func genKey(actionID int64) string {
	return genKeyPrefix + strconv.FormatInt(actionID, 10)
}

func (r *Resolver) generation(ctx context.Context, actionID int64) int64 {
	b, err := r.valkey.Get(ctx, genKey(actionID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("Failed to read cache generation", "action_id", actionID, "error", err)
		}
		return 0
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (r *Resolver) cacheKey(ctx context.Context, actionID int64, dr *models.DateRange, id models.Identity) string {
	start, end := "-", "-"
	if dr != nil {
		start = dr.Start.UTC().Format("20060102T150405")
		end = dr.End.UTC().Format("20060102T150405")
	}
	return fmt.Sprintf("%s%d:g%d:%s:%s:u%d:c%d",
		valsKeyPrefix, actionID, r.generation(ctx, actionID), start, end, id.UserID, id.CompanyID)
}

func (r *Resolver) cachedResults(ctx context.Context, key string) ([]models.BlockResult, bool) {
	ctx, span := r.tracer.StartCacheOperationSpan(ctx, "get", key)
	defer span.End()

	b, err := r.valkey.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("Failed to read cached dashboard values", "key", key, "error", err)
			r.tracer.RecordError(span, err)
		}
		r.tracer.RecordCacheMetrics(span, false)
		return nil, false
	}
	var out []models.BlockResult
	if err := json.Unmarshal(b, &out); err != nil {
		r.logger.Warn("Discarding undecodable cached dashboard values", "key", key, "error", err)
		r.tracer.RecordCacheMetrics(span, false)
		return nil, false
	}
	r.tracer.RecordCacheMetrics(span, true)
	return out, true
}

// Invalidate drops the cached values of the given actions. Zero ids are
// ignored. Failures are logged; stale entries still expire with their TTL.
func (r *Resolver) Invalidate(ctx context.Context, actionIDs ...int64) {
	if r.valkey == nil {
		return
	}
	seen := make(map[int64]bool, len(actionIDs))
	for _, id := range actionIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := r.valkey.Incr(ctx, genKey(id)); err != nil {
			r.logger.Warn("Failed to invalidate dashboard cache", "action_id", id, "error", err)
		}
	}
}

// Invalidator drops cached dashboard values after writes.
type Invalidator interface {
	Invalidate(ctx context.Context, actionIDs ...int64)
}

var _ Invalidator = (*Resolver)(nil)
