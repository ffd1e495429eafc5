package repo

import (
	"context"
	"strings"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// BlockQuery selects blocks. Zero fields do not filter.
type BlockQuery struct {
	ActionID     int64
	ActiveOnly   bool
	NameContains string
	OwnerID      int64
}

// nameMatches is the case-insensitive substring test behind NameContains.
// Both stores fold case in Go so non-ASCII names match the same way.
func (q BlockQuery) nameMatches(name string) bool {
	return q.NameContains == "" || strings.Contains(strings.ToLower(name), strings.ToLower(q.NameContains))
}

// BlockStore persists block definitions. Returned blocks are copies; callers
// change stored blocks only through MutateBlock.
type BlockStore interface {
	CreateBlock(ctx context.Context, b *models.Block) (*models.Block, error)
	GetBlock(ctx context.Context, id int64) (*models.Block, error)
	// MutateBlock applies fn to the stored block atomically. An error from fn
	// aborts the write.
	MutateBlock(ctx context.Context, id int64, fn func(*models.Block) error) (*models.Block, error)
	DeleteBlock(ctx context.Context, id int64) error
	// ListBlocks returns matching blocks ordered by id.
	ListBlocks(ctx context.Context, q BlockQuery) ([]*models.Block, error)
	// DetachAction clears the action reference of every block bound to
	// actionID and returns how many were changed.
	DetachAction(ctx context.Context, actionID int64) (int, error)
}

// MenuStore persists dashboard menus and the actions and navigation menus
// they own.
type MenuStore interface {
	CreateAction(ctx context.Context, a *models.ClientAction) (*models.ClientAction, error)
	GetAction(ctx context.Context, id int64) (*models.ClientAction, error)
	UpdateAction(ctx context.Context, a *models.ClientAction) error
	DeleteAction(ctx context.Context, id int64) error

	CreateNavMenu(ctx context.Context, m *models.NavMenu) (*models.NavMenu, error)
	GetNavMenu(ctx context.Context, id int64) (*models.NavMenu, error)
	UpdateNavMenu(ctx context.Context, m *models.NavMenu) error
	DeleteNavMenu(ctx context.Context, id int64) error

	CreateMenu(ctx context.Context, m *models.DashboardMenu) (*models.DashboardMenu, error)
	GetMenu(ctx context.Context, id int64) (*models.DashboardMenu, error)
	ListMenus(ctx context.Context) ([]*models.DashboardMenu, error)
	MutateMenu(ctx context.Context, id int64, fn func(*models.DashboardMenu) error) (*models.DashboardMenu, error)
	DeleteMenu(ctx context.Context, id int64) error
}
