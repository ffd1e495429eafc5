package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/config"
	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/datasource/memory"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/repo"
	"github.com/platformbuilds/mirador-dashboards/internal/tracing"
	"github.com/platformbuilds/mirador-dashboards/pkg/cache"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

func testSettings() config.DashboardSettings {
	return config.DashboardSettings{
		DefaultTileColor:   "#1f6abb",
		DefaultTextColor:   "#FFFFFF",
		RandomTileColor:    true,
		GridCellHeight:     80,
		GridColumns:        12,
		MaxBlocksPerUser:   50,
		DefaultChartType:   "bar",
		DateRangeDefault:   "this_month",
		CacheDuration:      5,
		MaxTableLimit:      500,
		ResolveConcurrency: 4,
		BlockTimeout:       time.Second,
		DateField:          "create_date",
	}
}

type fixture struct {
	ds       *memory.Store
	blocks   *repo.MemoryBlockStore
	menus    *repo.MemoryMenuStore
	settings *SettingsStore
	valkey   cache.ValkeyCluster
	resolver *Resolver
	manager  *BlockManager
	layout   *LayoutManager
	menuMgr  *MenuManager
	ident    models.Identity
	actionID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	f := &fixture{
		ds:       newSalesStore(t),
		blocks:   repo.NewMemoryBlockStore(),
		menus:    repo.NewMemoryMenuStore(),
		settings: NewSettingsStore(testSettings()),
		valkey:   cache.NewNoopValkeyCache(time.Minute, log),
		ident:    models.Identity{UserID: 7, CompanyID: 1, Roles: []string{models.RoleUser}},
	}
	parser := filter.NewParser(log)
	f.resolver = NewResolver(f.blocks, f.ds, parser, f.valkey, f.settings, tracing.NewDashboardTracer("test"), log)
	f.manager = NewBlockManager(f.blocks, f.menus, f.ds, NewValueComputer(f.ds, parser, log), f.settings, f.resolver, log)
	f.manager.rng = rand.New(rand.NewSource(1))
	f.layout = NewLayoutManager(f.blocks, f.resolver, log)
	f.menuMgr = NewMenuManager(f.menus, f.blocks, f.resolver, log)

	menu, err := f.menuMgr.Create(context.Background(), &models.DashboardMenu{Name: "Sales"})
	require.NoError(t, err)
	f.actionID = menu.ClientActionID
	return f
}

// newSalesStore loads two partners and four orders. Totals per partner:
// Azure 150 (SO1, SO3), Deco 250.5 (SO2), none 10 (SO4).
func newSalesStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.DefineEntity(ctx, datasource.EntityDef{
		Name:   "res.partner",
		Fields: []datasource.FieldMeta{{Name: "name", Type: datasource.FieldChar}},
	}))
	require.NoError(t, s.DefineEntity(ctx, datasource.EntityDef{
		Name: "sale.order",
		Fields: []datasource.FieldMeta{
			{Name: "name", Type: datasource.FieldChar},
			{Name: "amount_total", Type: datasource.FieldMonetary},
			{Name: "state", Type: datasource.FieldSelection},
			{Name: "partner_id", Type: datasource.FieldMany2one, Relation: "res.partner"},
			{Name: "user_id", Type: datasource.FieldInteger},
			{Name: "create_date", Type: datasource.FieldDatetime},
			{Name: "tag_ids", Type: datasource.FieldMany2many, Relation: "crm.tag"},
		},
	}))
	require.NoError(t, s.DefineEntity(ctx, datasource.EntityDef{
		Name:   "note.note",
		Fields: []datasource.FieldMeta{{Name: "name", Type: datasource.FieldChar}},
	}))
	_, err := s.InsertRows(ctx, "res.partner", []datasource.Row{{"name": "Azure"}, {"name": "Deco"}})
	require.NoError(t, err)
	_, err = s.InsertRows(ctx, "sale.order", []datasource.Row{
		{"name": "SO1", "amount_total": 100, "state": "sale", "partner_id": 1, "user_id": 7, "create_date": "2024-01-05 10:00:00"},
		{"name": "SO2", "amount_total": 250.5, "state": "draft", "partner_id": 2, "user_id": 8, "create_date": "2024-01-20 10:00:00"},
		{"name": "SO3", "amount_total": 50, "state": "sale", "partner_id": 1, "user_id": 7, "create_date": "2024-02-02 10:00:00"},
		{"name": "SO4", "amount_total": 10, "state": "cancel", "partner_id": nil, "user_id": 7, "create_date": "2024-02-03 00:00:00"},
	})
	require.NoError(t, err)
	_, err = s.InsertRows(ctx, "note.note", []datasource.Row{{"name": "a"}, {"name": "b"}})
	require.NoError(t, err)
	return s
}

// addBlock stores b on the fixture's action through the block manager.
func (f *fixture) addBlock(t *testing.T, b models.Block) *models.Block {
	t.Helper()
	b.ClientActionID = f.actionID
	out, err := f.manager.Create(context.Background(), f.ident, &b)
	require.NoError(t, err)
	return out
}

func ptr[T any](v T) *T { return &v }
