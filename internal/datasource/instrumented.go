package datasource

import (
	"context"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
)

type instrumented struct {
	next    DataSource
	timeout time.Duration
}

// WithMetrics records query counts and latencies of next. A positive timeout
// bounds every query.
func WithMetrics(next DataSource, timeout time.Duration) DataSource {
	return &instrumented{next: next, timeout: timeout}
}

func (i *instrumented) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, i.timeout)
}

func (i *instrumented) Count(ctx context.Context, entity string, pred filter.Predicate) (int64, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	start := time.Now()
	n, err := i.next.Count(ctx, entity, pred)
	monitoring.RecordDatasourceQuery("count", entity, time.Since(start), err == nil)
	return n, err
}

func (i *instrumented) Aggregate(ctx context.Context, q AggregateQuery) ([]Group, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	start := time.Now()
	groups, err := i.next.Aggregate(ctx, q)
	monitoring.RecordDatasourceQuery("aggregate", q.Entity, time.Since(start), err == nil)
	return groups, err
}

func (i *instrumented) ReadColumns(ctx context.Context, q ReadQuery) ([]Row, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	start := time.Now()
	rows, err := i.next.ReadColumns(ctx, q)
	monitoring.RecordDatasourceQuery("read", q.Entity, time.Since(start), err == nil)
	return rows, err
}

func (i *instrumented) ResolveFieldMeta(ctx context.Context, entity, field string) (FieldMeta, error) {
	return i.next.ResolveFieldMeta(ctx, entity, field)
}
