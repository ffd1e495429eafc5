package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

func TestSaveLayout_AppliesPresentFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order", X: 1, Y: 1})

	res, err := f.layout.SaveLayout(ctx, []models.LayoutEdit{{ID: b.ID, X: ptr(4), W: ptr(3), Height: ptr(240)}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Layout saved successfully", res.Message)
	assert.Equal(t, 1, res.Applied)

	got, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.X)
	assert.Equal(t, 1, got.Y, "y was not part of the edit")
	assert.Equal(t, 3, got.GridWidth)
	assert.Equal(t, 1, got.GridHeight)
	assert.Equal(t, "240px", got.Height)
}

func TestSaveLayout_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order"})
	edits := []models.LayoutEdit{{ID: b.ID, X: ptr(2), Y: ptr(3), W: ptr(4), H: ptr(2)}}

	_, err := f.layout.SaveLayout(ctx, edits)
	require.NoError(t, err)
	first, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.layout.SaveLayout(ctx, edits)
	require.NoError(t, err)
	second, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, []int{first.X, first.Y, first.GridWidth, first.GridHeight},
		[]int{second.X, second.Y, second.GridWidth, second.GridHeight})
	assert.Equal(t, []int{2, 3, 4, 2}, []int{second.X, second.Y, second.GridWidth, second.GridHeight})
}

func TestSaveLayout_SkipsUnknownAndEmptyEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order"})

	res, err := f.layout.SaveLayout(ctx, []models.LayoutEdit{
		{ID: 9999, X: ptr(1)},
		{ID: b.ID},
		{ID: b.ID, Y: ptr(2)},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Skipped)
}

func TestSaveLayout_ClampsAndIgnoresInvalidSizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order", X: 3, GridWidth: 2, GridHeight: 2})

	_, err := f.layout.SaveLayout(ctx, []models.LayoutEdit{{ID: b.ID, X: ptr(-5), W: ptr(0), H: ptr(-1)}})
	require.NoError(t, err)

	got, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.X)
	assert.Equal(t, 2, got.GridWidth)
	assert.Equal(t, 2, got.GridHeight)
}
