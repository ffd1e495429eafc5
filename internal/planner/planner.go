// Package planner turns a block's operation, measured field and group-by
// field into aggregate queries against a data source.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// UndefinedLabel names the bucket of records without a group value.
const UndefinedLabel = "Undefined"

// Plan is a resolved aggregate query.
type Plan struct {
	Entity    string
	Predicate filter.Predicate
	Op        models.Operation
	Measure   string
	GroupBy   string
	// GroupMeta is set when GroupBy is.
	GroupMeta *datasource.FieldMeta
	// NoData is set when a non-count operation has no numeric measured field.
	NoData bool
}

// Point is one labelled value of a result.
type Point struct {
	Key   any
	Label string
	Value float64
	Count int64
}

// Result is the outcome of executing a plan.
type Result struct {
	Points []Point
	NoData bool
}

// Planner builds and executes plans.
type Planner struct {
	ds datasource.DataSource
}

func New(ds datasource.DataSource) *Planner {
	return &Planner{ds: ds}
}

// Plan validates the entity and fields. A missing entity or group-by field is
// a resolution error; a missing or non-numeric measured field only marks the
// plan as NoData.
func (p *Planner) Plan(ctx context.Context, entity string, op models.Operation, measured, groupBy string, pred filter.Predicate) (Plan, error) {
	if op == "" {
		op = models.OperationCount
	}
	if !op.Valid() {
		return Plan{}, fmt.Errorf("%w: unsupported operation %q", models.ErrAggregation, op)
	}
	if entity == "" {
		return Plan{}, fmt.Errorf("%w: no model selected", models.ErrResolution)
	}
	if _, err := p.ds.ResolveFieldMeta(ctx, entity, datasource.IDField); err != nil {
		return Plan{}, err
	}

	plan := Plan{Entity: entity, Predicate: pred, Op: op, GroupBy: groupBy}
	if op != models.OperationCount {
		plan.Measure = measured
		if measured == "" {
			plan.NoData = true
		} else {
			meta, err := p.ds.ResolveFieldMeta(ctx, entity, measured)
			switch {
			case errors.Is(err, models.ErrResolution):
				plan.NoData = true
			case err != nil:
				return Plan{}, err
			case !meta.Type.Numeric():
				plan.NoData = true
			}
		}
	}
	if groupBy != "" {
		meta, err := p.ds.ResolveFieldMeta(ctx, entity, groupBy)
		if err != nil {
			return Plan{}, err
		}
		plan.GroupMeta = &meta
	}
	return plan, nil
}

// Execute runs plan. Grouped results keep the data source's native order.
func (p *Planner) Execute(ctx context.Context, plan Plan) (Result, error) {
	if plan.NoData {
		return Result{NoData: true}, nil
	}
	if plan.GroupBy == "" && plan.Op == models.OperationCount {
		n, err := p.ds.Count(ctx, plan.Entity, plan.Predicate)
		if err != nil {
			return Result{}, err
		}
		return Result{Points: []Point{{Value: float64(n), Count: n}}}, nil
	}

	groups, err := p.ds.Aggregate(ctx, datasource.AggregateQuery{
		Entity:    plan.Entity,
		Predicate: plan.Predicate,
		GroupBy:   plan.GroupBy,
		Measure:   plan.Measure,
		Op:        plan.Op,
	})
	if err != nil {
		return Result{}, err
	}
	points := make([]Point, len(groups))
	for i, g := range groups {
		points[i] = Point{Key: g.Key, Label: Label(g.Key), Value: g.Value, Count: g.Count}
	}
	return Result{Points: points}, nil
}

// Value computes the single ungrouped value of a block. NoData yields 0.
func (p *Planner) Value(ctx context.Context, entity string, op models.Operation, measured string, pred filter.Predicate) (float64, error) {
	plan, err := p.Plan(ctx, entity, op, measured, "", pred)
	if err != nil {
		return 0, err
	}
	res, err := p.Execute(ctx, plan)
	if err != nil {
		return 0, err
	}
	if res.NoData || len(res.Points) == 0 {
		return 0, nil
	}
	return res.Points[0].Value, nil
}

// Label renders a group key. Falsy keys become UndefinedLabel so their
// records stay accounted for.
func Label(key any) string {
	switch k := key.(type) {
	case nil:
		return UndefinedLabel
	case bool:
		if !k {
			return UndefinedLabel
		}
		return "True"
	case string:
		if k == "" {
			return UndefinedLabel
		}
		return k
	case datasource.Ref:
		return k.Name
	case time.Time:
		if k.Hour() == 0 && k.Minute() == 0 && k.Second() == 0 {
			return k.Format("2006-01-02")
		}
		return k.Format(filter.TimeLayout)
	case int64:
		return strconv.FormatInt(k, 10)
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	}
	return fmt.Sprint(key)
}
