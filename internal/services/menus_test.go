package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

func TestMenuCreate_BuildsActionAndNavMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	menu, err := f.menuMgr.Create(ctx, &models.DashboardMenu{Name: "  Inventory ", Sequence: 3, GroupIDs: []int64{4}})
	require.NoError(t, err)
	assert.Equal(t, "Inventory", menu.Name)

	action, err := f.menus.GetAction(ctx, menu.ClientActionID)
	require.NoError(t, err)
	assert.Equal(t, "Inventory", action.Name)
	assert.Equal(t, models.ClientActionTag, action.Tag)

	nav, err := f.menus.GetNavMenu(ctx, menu.NavMenuID)
	require.NoError(t, err)
	assert.Equal(t, menu.ClientActionID, nav.ActionID)
	assert.Equal(t, 3, nav.Sequence)
	assert.Equal(t, []int64{4}, nav.GroupIDs)
}

func TestMenuCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.menuMgr.Create(ctx, &models.DashboardMenu{Name: "  "})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.menuMgr.Create(ctx, &models.DashboardMenu{Name: "Sales"})
	assert.ErrorIs(t, err, models.ErrValidation, "name taken by the fixture menu")

	_, err = f.menuMgr.Create(ctx, &models.DashboardMenu{Name: "Child", ParentMenuID: 999})
	assert.ErrorIs(t, err, models.ErrValidation)

	menus, err := f.menuMgr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, menus, 1)
}

func TestMenuUpdate_SyncsNavMenuAndAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent, err := f.menuMgr.Create(ctx, &models.DashboardMenu{Name: "Reports"})
	require.NoError(t, err)
	menus, err := f.menuMgr.List(ctx)
	require.NoError(t, err)
	var sales *models.DashboardMenu
	for _, m := range menus {
		if m.Name == "Sales" {
			sales = m
		}
	}
	require.NotNil(t, sales)

	got, err := f.menuMgr.Update(ctx, sales.ID, models.MenuPatch{
		Name:         ptr("Revenue"),
		ParentMenuID: ptr(parent.NavMenuID),
		Sequence:     ptr(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "Revenue", got.Name)

	nav, err := f.menus.GetNavMenu(ctx, got.NavMenuID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue", nav.Name)
	assert.Equal(t, parent.NavMenuID, nav.ParentID)
	assert.Equal(t, 7, nav.Sequence)

	action, err := f.menus.GetAction(ctx, got.ClientActionID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue", action.Name)

	_, err = f.menuMgr.Update(ctx, sales.ID, models.MenuPatch{Name: ptr("Reports")})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestMenuDelete_DetachesBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBlock(t, models.Block{Name: "Orders", Model: "sale.order"})

	menus, err := f.menuMgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, menus, 1)
	menu := menus[0]

	require.NoError(t, f.menuMgr.Delete(ctx, menu.ID))

	_, err = f.menuMgr.Get(ctx, menu.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.menus.GetNavMenu(ctx, menu.NavMenuID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.menus.GetAction(ctx, menu.ClientActionID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	kept, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, kept.ClientActionID)

	res, err := f.resolver.ResolveAll(ctx, menu.ClientActionID, nil, f.ident)
	require.NoError(t, err)
	assert.Empty(t, res)
}
