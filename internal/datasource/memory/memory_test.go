package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

func newSalesStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.DefineEntity(ctx, datasource.EntityDef{
		Name:   "res.partner",
		Fields: []datasource.FieldMeta{{Name: "name", Type: datasource.FieldChar}},
	}))
	require.NoError(t, s.DefineEntity(ctx, datasource.EntityDef{
		Name: "sale.order",
		Fields: []datasource.FieldMeta{
			{Name: "name", Type: datasource.FieldChar},
			{Name: "amount_total", Type: datasource.FieldMonetary, DisplayName: "Total"},
			{Name: "state", Type: datasource.FieldSelection},
			{Name: "partner_id", Type: datasource.FieldMany2one, Relation: "res.partner"},
			{Name: "user_id", Type: datasource.FieldInteger},
			{Name: "create_date", Type: datasource.FieldDatetime},
			{Name: "tag_ids", Type: datasource.FieldMany2many, Relation: "crm.tag"},
		},
	}))
	_, err := s.InsertRows(ctx, "res.partner", []datasource.Row{{"name": "Azure"}, {"name": "Deco"}})
	require.NoError(t, err)
	_, err = s.InsertRows(ctx, "sale.order", []datasource.Row{
		{"name": "SO1", "amount_total": 100, "state": "sale", "partner_id": 1, "user_id": 7, "create_date": "2024-01-05 10:00:00"},
		{"name": "SO2", "amount_total": 250.5, "state": "draft", "partner_id": 2, "user_id": 8, "create_date": "2024-01-20 10:00:00"},
		{"name": "SO3", "amount_total": 50, "state": "sale", "partner_id": 1, "user_id": 7, "create_date": "2024-02-02 10:00:00"},
		{"name": "SO4", "amount_total": 10, "state": "cancel", "partner_id": nil, "user_id": 7, "create_date": time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return s
}

func TestCount_FiltersRows(t *testing.T) {
	s := newSalesStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx, "sale.order", filter.Empty())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	n, err = s.Count(ctx, "sale.order", filter.Cond("user_id", "=", int64(7)))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	n, err = s.Count(ctx, "sale.order", filter.DateRange("create_date", start, end))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCount_Unresolved(t *testing.T) {
	s := newSalesStore(t)
	ctx := context.Background()

	_, err := s.Count(ctx, "no.such.model", filter.Empty())
	assert.True(t, errors.Is(err, models.ErrResolution))

	_, err = s.Count(ctx, "sale.order", filter.Cond("missing", "=", int64(1)))
	assert.True(t, errors.Is(err, models.ErrResolution))
}

func TestAggregate_GroupedByMany2one(t *testing.T) {
	s := newSalesStore(t)
	groups, err := s.Aggregate(context.Background(), datasource.AggregateQuery{
		Entity:  "sale.order",
		GroupBy: "partner_id",
		Measure: "amount_total",
		Op:      models.OperationSum,
	})
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, datasource.Ref{ID: 1, Name: "Azure"}, groups[0].Key)
	assert.Equal(t, 150.0, groups[0].Value)
	assert.EqualValues(t, 2, groups[0].Count)
	assert.Equal(t, datasource.Ref{ID: 2, Name: "Deco"}, groups[1].Key)
	assert.Nil(t, groups[2].Key)
	assert.Equal(t, 10.0, groups[2].Value)
}

func TestAggregate_Operations(t *testing.T) {
	s := newSalesStore(t)
	ctx := context.Background()
	want := map[models.Operation]float64{
		models.OperationSum:   410.5,
		models.OperationAvg:   102.625,
		models.OperationMin:   10,
		models.OperationMax:   250.5,
		models.OperationCount: 4,
	}
	for op, v := range want {
		groups, err := s.Aggregate(ctx, datasource.AggregateQuery{Entity: "sale.order", Measure: "amount_total", Op: op})
		require.NoError(t, err, op)
		require.Len(t, groups, 1)
		assert.Equal(t, v, groups[0].Value, op)
	}
}

func TestAggregate_UngroupedEmptyIsZero(t *testing.T) {
	s := newSalesStore(t)
	groups, err := s.Aggregate(context.Background(), datasource.AggregateQuery{
		Entity:    "sale.order",
		Predicate: filter.Cond("state", "=", "done"),
		Measure:   "amount_total",
		Op:        models.OperationMax,
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 0.0, groups[0].Value)
	assert.EqualValues(t, 0, groups[0].Count)
}

func TestAggregate_Errors(t *testing.T) {
	s := newSalesStore(t)
	ctx := context.Background()

	_, err := s.Aggregate(ctx, datasource.AggregateQuery{Entity: "sale.order", Measure: "name", Op: models.OperationSum})
	assert.True(t, errors.Is(err, models.ErrAggregation))

	_, err = s.Aggregate(ctx, datasource.AggregateQuery{Entity: "sale.order", Measure: "nope", Op: models.OperationSum})
	assert.True(t, errors.Is(err, models.ErrResolution))

	_, err = s.Aggregate(ctx, datasource.AggregateQuery{Entity: "sale.order", GroupBy: "tag_ids", Op: models.OperationCount})
	assert.True(t, errors.Is(err, models.ErrResolution))
}

func TestReadColumns_NewestFirstWithLimit(t *testing.T) {
	s := newSalesStore(t)
	rows, err := s.ReadColumns(context.Background(), datasource.ReadQuery{
		Entity:  "sale.order",
		Columns: []string{"name", "partner_id"},
		Limit:   2,
		Order:   "id desc",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "SO4", rows[0]["name"])
	assert.Nil(t, rows[0]["partner_id"])
	assert.Equal(t, "SO3", rows[1]["name"])
	assert.Equal(t, datasource.Ref{ID: 1, Name: "Azure"}, rows[1]["partner_id"])
	assert.EqualValues(t, 3, rows[1]["id"])
}

func TestReadColumns_UnknownColumn(t *testing.T) {
	s := newSalesStore(t)
	_, err := s.ReadColumns(context.Background(), datasource.ReadQuery{Entity: "sale.order", Columns: []string{"ghost"}})
	assert.True(t, errors.Is(err, models.ErrResolution))
}

func TestResolveFieldMeta(t *testing.T) {
	s := newSalesStore(t)
	ctx := context.Background()

	meta, err := s.ResolveFieldMeta(ctx, "sale.order", "amount_total")
	require.NoError(t, err)
	assert.True(t, meta.Type.Numeric())
	assert.Equal(t, "Total", meta.Label())

	meta, err = s.ResolveFieldMeta(ctx, "sale.order", "partner_id")
	require.NoError(t, err)
	assert.True(t, meta.Type.Relational())

	_, err = s.ResolveFieldMeta(ctx, "sale.order", "ghost")
	assert.True(t, errors.Is(err, models.ErrResolution))
}

func TestInsertRows_RejectsUnknownField(t *testing.T) {
	s := newSalesStore(t)
	_, err := s.InsertRows(context.Background(), "sale.order", []datasource.Row{{"ghost": 1}})
	assert.True(t, errors.Is(err, models.ErrResolution))
}
