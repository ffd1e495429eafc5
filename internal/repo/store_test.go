package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource/sqlite"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

type stores struct {
	blocks BlockStore
	menus  MenuStore
}

func forEachStore(t *testing.T, fn func(t *testing.T, s stores)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, stores{blocks: NewMemoryBlockStore(), menus: NewMemoryMenuStore()})
	})
	t.Run("sqlite", func(t *testing.T) {
		ctx := context.Background()
		db, err := sqlite.Open(ctx, "file::memory:", 1)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, MigrateSQLite(ctx, db))
		fn(t, stores{blocks: NewSQLiteBlockStore(db), menus: NewSQLiteMenuStore(db)})
	})
}

func TestBlockStore_CRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		action, err := s.menus.CreateAction(ctx, &models.ClientAction{Name: "Sales", Tag: models.ClientActionTag})
		require.NoError(t, err)

		created, err := s.blocks.CreateBlock(ctx, &models.Block{
			Name:           "Revenue",
			Type:           models.BlockTypeKPI,
			Active:         true,
			OwnerID:        7,
			Model:          "sale.order",
			TableColumns:   []string{"name"},
			ClientActionID: action.ID,
		})
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := s.blocks.GetBlock(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Revenue", got.Name)
		assert.Equal(t, []string{"name"}, got.TableColumns)
		assert.Equal(t, action.ID, got.ClientActionID)

		updated, err := s.blocks.MutateBlock(ctx, created.ID, func(b *models.Block) error {
			b.X = 3
			b.Name = "Revenue (EUR)"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.X)

		_, err = s.blocks.MutateBlock(ctx, created.ID, func(b *models.Block) error {
			b.X = 99
			return models.Validationf("nope")
		})
		assert.True(t, errors.Is(err, models.ErrValidation))
		got, err = s.blocks.GetBlock(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.X)
		assert.Equal(t, "Revenue (EUR)", got.Name)

		require.NoError(t, s.blocks.DeleteBlock(ctx, created.ID))
		_, err = s.blocks.GetBlock(ctx, created.ID)
		assert.True(t, errors.Is(err, models.ErrNotFound))
		assert.True(t, errors.Is(s.blocks.DeleteBlock(ctx, created.ID), models.ErrNotFound))
		_, err = s.blocks.MutateBlock(ctx, created.ID, func(*models.Block) error { return nil })
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})
}

func TestBlockStore_ListAndDetach(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		a1, err := s.menus.CreateAction(ctx, &models.ClientAction{Name: "A1", Tag: models.ClientActionTag})
		require.NoError(t, err)
		a2, err := s.menus.CreateAction(ctx, &models.ClientAction{Name: "A2", Tag: models.ClientActionTag})
		require.NoError(t, err)

		seed := []*models.Block{
			{Name: "Open Leads", Active: true, OwnerID: 1, ClientActionID: a1.ID},
			{Name: "Won leads", Active: false, OwnerID: 1, ClientActionID: a1.ID},
			{Name: "Invoices", Active: true, OwnerID: 2, ClientActionID: a2.ID},
		}
		for _, b := range seed {
			_, err := s.blocks.CreateBlock(ctx, b)
			require.NoError(t, err)
		}

		list, err := s.blocks.ListBlocks(ctx, BlockQuery{ActionID: a1.ID, ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Open Leads", list[0].Name)

		list, err = s.blocks.ListBlocks(ctx, BlockQuery{NameContains: "LEADS"})
		require.NoError(t, err)
		assert.Len(t, list, 2)

		list, err = s.blocks.ListBlocks(ctx, BlockQuery{OwnerID: 2})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		n, err := s.blocks.DetachAction(ctx, a1.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		list, err = s.blocks.ListBlocks(ctx, BlockQuery{ActionID: a1.ID})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestBlockStore_SearchFoldsNonASCII(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		for _, name := range []string{"Überblick Umsatz", "Ventes été", "Plain"} {
			_, err := s.blocks.CreateBlock(ctx, &models.Block{Name: name, Active: true})
			require.NoError(t, err)
		}

		for q, want := range map[string]string{
			"überblick": "Überblick Umsatz",
			"ÉTÉ":       "Ventes été",
			"PLAIN":     "Plain",
		} {
			list, err := s.blocks.ListBlocks(ctx, BlockQuery{NameContains: q})
			require.NoError(t, err, q)
			require.Len(t, list, 1, q)
			assert.Equal(t, want, list[0].Name)
		}
	})
}

func TestMenuStore_ReferencesBlockDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		action, err := s.menus.CreateAction(ctx, &models.ClientAction{Name: "Sales", Tag: models.ClientActionTag})
		require.NoError(t, err)
		nav, err := s.menus.CreateNavMenu(ctx, &models.NavMenu{Name: "Sales", ActionID: action.ID, Sequence: 10})
		require.NoError(t, err)
		menu, err := s.menus.CreateMenu(ctx, &models.DashboardMenu{
			Name: "Sales", ClientActionID: action.ID, NavMenuID: nav.ID, Sequence: 10, GroupIDs: []int64{3},
		})
		require.NoError(t, err)

		got, err := s.menus.GetMenu(ctx, menu.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, got.GroupIDs)

		// Still referenced by the menu and the nav menu.
		assert.Error(t, s.menus.DeleteAction(ctx, action.ID))

		_, err = s.menus.MutateMenu(ctx, menu.ID, func(m *models.DashboardMenu) error {
			m.ClientActionID = 0
			m.NavMenuID = 0
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, s.menus.DeleteMenu(ctx, menu.ID))
		require.NoError(t, s.menus.DeleteNavMenu(ctx, nav.ID))
		require.NoError(t, s.menus.DeleteAction(ctx, action.ID))

		_, err = s.menus.GetAction(ctx, action.ID)
		assert.True(t, errors.Is(err, models.ErrNotFound))
		_, err = s.menus.GetNavMenu(ctx, nav.ID)
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})
}

func TestMenuStore_ListOrdersBySequence(t *testing.T) {
	forEachStore(t, func(t *testing.T, s stores) {
		ctx := context.Background()
		_, err := s.menus.CreateMenu(ctx, &models.DashboardMenu{Name: "B", Sequence: 20})
		require.NoError(t, err)
		_, err = s.menus.CreateMenu(ctx, &models.DashboardMenu{Name: "A", Sequence: 10})
		require.NoError(t, err)

		list, err := s.menus.ListMenus(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "A", list[0].Name)
		assert.Equal(t, "B", list[1].Name)
	})
}
