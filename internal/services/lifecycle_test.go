package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/palette"
)

func TestCreate_AppliesDefaults(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.manager.now = func() time.Time { return now }

	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order"})

	assert.NotZero(t, b.ID)
	assert.True(t, b.Active)
	assert.Equal(t, models.BlockTypeTile, b.Type)
	assert.Equal(t, models.OperationCount, b.Operation)
	assert.Equal(t, models.VisibilityPrivate, b.Visibility)
	assert.Equal(t, models.DefaultSequence, b.Sequence)
	assert.Equal(t, f.ident.UserID, b.OwnerID)
	assert.Contains(t, palette.TileColors, b.TileColor)
	assert.Equal(t, "#FFFFFF", b.TextColor)
	assert.Equal(t, "fa-cube", b.Icon)
	assert.Equal(t, models.IconMedium, b.IconSize)
	assert.Equal(t, models.TrendMonth, b.TrendPeriod)
	assert.Equal(t, models.DefaultHeight, b.Height)
	assert.Equal(t, 1, b.GridWidth)
	assert.Equal(t, 1, b.GridHeight)
	assert.Equal(t, 4.0, b.RecordValue)
	assert.Equal(t, now, b.LastUpdate)
}

func TestCreate_FixedTileColorAndChartDefaults(t *testing.T) {
	f := newFixture(t)
	s := testSettings()
	s.RandomTileColor = false
	s.DefaultChartType = "line"
	f.settings.Set(s)

	b := f.addBlock(t, models.Block{Name: "Trend", Type: models.BlockTypeChart, Model: "sale.order", GroupBy: "state"})
	assert.Equal(t, "#1f6abb", b.TileColor)
	assert.Equal(t, models.ChartLine, b.ChartType)
	assert.Empty(t, b.Icon)
}

func TestCreate_RecordValue(t *testing.T) {
	f := newFixture(t)
	sum := f.addBlock(t, models.Block{Name: "Revenue", Type: models.BlockTypeKPI, Model: "sale.order",
		Operation: models.OperationSum, MeasuredField: "amount_total"})
	assert.Equal(t, 410.5, sum.RecordValue)

	missing := f.addBlock(t, models.Block{Name: "Ghost", Model: "no.such"})
	assert.Zero(t, missing.RecordValue)
}

func TestCreate_RelationalMeasureForcesCount(t *testing.T) {
	f := newFixture(t)
	b := f.addBlock(t, models.Block{Name: "Tags", Model: "sale.order",
		Operation: models.OperationSum, MeasuredField: "tag_ids"})
	assert.Equal(t, models.OperationCount, b.Operation)
	assert.Equal(t, 4.0, b.RecordValue)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name  string
		block models.Block
	}{
		{"missing name", models.Block{Model: "sale.order", ClientActionID: f.actionID}},
		{"unknown action", models.Block{Name: "x", ClientActionID: 999}},
		{"bad color", models.Block{Name: "x", TileColor: "blue", ClientActionID: f.actionID}},
		{"bad type", models.Block{Name: "x", Type: "gauge", ClientActionID: f.actionID}},
		{"bad operation", models.Block{Name: "x", Operation: "median", ClientActionID: f.actionID}},
		{"bad model name", models.Block{Name: "x", Model: "sale order; drop", ClientActionID: f.actionID}},
		{"negative position", models.Block{Name: "x", X: -1, ClientActionID: f.actionID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Create(ctx, f.ident, &tt.block)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestCreate_PerUserLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := testSettings()
	s.MaxBlocksPerUser = 2
	f.settings.Set(s)

	f.addBlock(t, models.Block{Name: "one"})
	f.addBlock(t, models.Block{Name: "two"})
	_, err := f.manager.Create(ctx, f.ident, &models.Block{Name: "three", ClientActionID: f.actionID})
	assert.ErrorIs(t, err, models.ErrValidation)

	other := models.Identity{UserID: 8, Roles: []string{models.RoleUser}}
	_, err = f.manager.Create(ctx, other, &models.Block{Name: "theirs", ClientActionID: f.actionID})
	assert.NoError(t, err)
}

func TestUpdate_TypeChangeResetsDataSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Revenue", Model: "sale.order", Operation: models.OperationSum,
		MeasuredField: "amount_total", Filter: `[('state', '=', 'sale')]`})
	require.Equal(t, 150.0, b.RecordValue)

	chart := models.BlockTypeChart
	got, err := f.manager.Update(ctx, f.ident, b.ID, models.BlockPatch{Type: &chart, GroupBy: ptr("state")})
	require.NoError(t, err)
	assert.Equal(t, models.BlockTypeChart, got.Type)
	assert.Equal(t, models.OperationCount, got.Operation)
	assert.Empty(t, got.MeasuredField)
	assert.Empty(t, got.Filter)
	assert.Equal(t, "state", got.GroupBy)
	assert.Equal(t, models.ChartBar, got.ChartType)
	assert.Equal(t, 4.0, got.RecordValue)
}

func TestUpdate_ModelChangeResetsFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Revenue", Model: "sale.order", Operation: models.OperationSum,
		MeasuredField: "amount_total"})

	got, err := f.manager.Update(ctx, f.ident, b.ID, models.BlockPatch{Model: ptr("note.note")})
	require.NoError(t, err)
	assert.Equal(t, "note.note", got.Model)
	assert.Equal(t, models.OperationCount, got.Operation)
	assert.Empty(t, got.MeasuredField)
	assert.Equal(t, 2.0, got.RecordValue)
}

func TestUpdate_CosmeticPatchKeepsValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order"})
	stamp := b.LastUpdate

	f.manager.now = func() time.Time { return stamp.Add(time.Hour) }
	got, err := f.manager.Update(ctx, f.ident, b.ID, models.BlockPatch{Name: ptr("All orders"), TileColor: ptr("#000000")})
	require.NoError(t, err)
	assert.Equal(t, "All orders", got.Name)
	assert.Equal(t, "#000000", got.TileColor)
	assert.Equal(t, stamp, got.LastUpdate)

	_, err = f.manager.Update(ctx, f.ident, b.ID, models.BlockPatch{TileColor: ptr("red")})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.manager.Update(ctx, f.ident, 999, models.BlockPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order", X: 2, Y: 3, Sequence: 5})

	other := models.Identity{UserID: 8}
	dup, err := f.manager.Duplicate(ctx, other, src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "Orders (Copy)", dup.Name)
	assert.Equal(t, 6, dup.Sequence)
	assert.Equal(t, 3, dup.X)
	assert.Equal(t, 4, dup.Y)
	assert.Equal(t, int64(8), dup.OwnerID)
	assert.Equal(t, src.ClientActionID, dup.ClientActionID)
	assert.Equal(t, src.TileColor, dup.TileColor)
}

func TestArchiveAndUnarchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order"})

	archived, err := f.manager.Archive(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, archived.Active)
	res, err := f.resolver.ResolveAll(ctx, f.actionID, nil, f.ident)
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = f.manager.Unarchive(ctx, b.ID)
	require.NoError(t, err)
	res, err = f.resolver.ResolveAll(ctx, f.actionID, nil, f.ident)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order"})
	_, err := f.ds.InsertRows(ctx, "sale.order", []datasource.Row{{"name": "SO5"}})
	require.NoError(t, err)

	n, err := f.manager.Refresh(ctx, f.ident, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Notification{Title: "Data Refreshed", Message: "Dashboard data has been refreshed.", Type: "success"}, n)

	got, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.RecordValue)
}

func TestDeleteAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addBlock(t, models.Block{Name: "Sales Revenue"})
	b := f.addBlock(t, models.Block{Name: "Open quotes"})
	c := f.addBlock(t, models.Block{Name: "Revenue by month"})
	_, err := f.manager.Archive(ctx, c.ID)
	require.NoError(t, err)

	ids, err := f.manager.Search(ctx, "revenue")
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, ids)

	require.NoError(t, f.manager.Delete(ctx, b.ID))
	_, err = f.manager.Get(ctx, b.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, f.manager.Delete(ctx, b.ID), models.ErrNotFound)
}
