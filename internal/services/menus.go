package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/repo"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// MenuManager keeps a dashboard menu, its client action and its navigation
// menu in sync.
type MenuManager struct {
	menus       repo.MenuStore
	blocks      repo.BlockStore
	invalidator Invalidator
	logger      logger.Logger
}

func NewMenuManager(menus repo.MenuStore, blocks repo.BlockStore, inv Invalidator, log logger.Logger) *MenuManager {
	return &MenuManager{menus: menus, blocks: blocks, invalidator: inv, logger: log}
}

func (m *MenuManager) List(ctx context.Context) ([]*models.DashboardMenu, error) {
	return m.menus.ListMenus(ctx)
}

func (m *MenuManager) Get(ctx context.Context, id int64) (*models.DashboardMenu, error) {
	return m.menus.GetMenu(ctx, id)
}

// Create makes the client action and the navigation menu pointing at it,
// then the dashboard menu owning both.
func (m *MenuManager) Create(ctx context.Context, in *models.DashboardMenu) (*models.DashboardMenu, error) {
	if in == nil {
		return nil, models.Validationf("menu is required")
	}
	menu := in.Clone()
	menu.Name = strings.TrimSpace(menu.Name)
	if menu.Name == "" {
		return nil, models.Validationf("menu name is required")
	}
	if menu.Sequence == 0 {
		menu.Sequence = models.DefaultSequence
	}
	if err := m.checkName(ctx, menu.Name, 0); err != nil {
		return nil, err
	}
	if err := m.checkParent(ctx, menu.ParentMenuID); err != nil {
		return nil, err
	}

	action, err := m.menus.CreateAction(ctx, &models.ClientAction{Name: menu.Name, Tag: models.ClientActionTag})
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard action: %w", err)
	}
	nav, err := m.menus.CreateNavMenu(ctx, &models.NavMenu{
		Name:     menu.Name,
		ParentID: menu.ParentMenuID,
		ActionID: action.ID,
		Sequence: menu.Sequence,
		GroupIDs: menu.GroupIDs,
	})
	if err != nil {
		m.rollback(ctx, 0, action.ID)
		return nil, fmt.Errorf("failed to create navigation menu: %w", err)
	}

	menu.ClientActionID = action.ID
	menu.NavMenuID = nav.ID
	created, err := m.menus.CreateMenu(ctx, menu)
	if err != nil {
		m.rollback(ctx, nav.ID, action.ID)
		return nil, fmt.Errorf("failed to create dashboard menu: %w", err)
	}
	m.logger.Info("Dashboard menu created", "menu_id", created.ID, "action_id", action.ID, "nav_menu_id", nav.ID)
	return created, nil
}

func (m *MenuManager) rollback(ctx context.Context, navID, actionID int64) {
	if navID != 0 {
		if err := m.menus.DeleteNavMenu(ctx, navID); err != nil {
			m.logger.Error("Failed to roll back navigation menu", "nav_menu_id", navID, "error", err)
		}
	}
	if actionID != 0 {
		if err := m.menus.DeleteAction(ctx, actionID); err != nil {
			m.logger.Error("Failed to roll back dashboard action", "action_id", actionID, "error", err)
		}
	}
}

func (m *MenuManager) checkName(ctx context.Context, name string, selfID int64) error {
	menus, err := m.menus.ListMenus(ctx)
	if err != nil {
		return err
	}
	for _, x := range menus {
		if x.ID != selfID && x.Name == name {
			return models.Validationf("dashboard menu name must be unique: %q", name)
		}
	}
	return nil
}

func (m *MenuManager) checkParent(ctx context.Context, parentID int64) error {
	if parentID == 0 {
		return nil
	}
	if _, err := m.menus.GetNavMenu(ctx, parentID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Validationf("parent menu %d does not exist", parentID)
		}
		return err
	}
	return nil
}

// Update applies patch and propagates name, parent, sequence and groups to
// the navigation menu and the name to the action.
func (m *MenuManager) Update(ctx context.Context, id int64, patch models.MenuPatch) (*models.DashboardMenu, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, models.Validationf("menu name is required")
		}
		if err := m.checkName(ctx, name, id); err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	if patch.ParentMenuID != nil {
		if err := m.checkParent(ctx, *patch.ParentMenuID); err != nil {
			return nil, err
		}
	}

	menu, err := m.menus.MutateMenu(ctx, id, func(menu *models.DashboardMenu) error {
		setIf(&menu.Name, patch.Name)
		setIf(&menu.ParentMenuID, patch.ParentMenuID)
		setIf(&menu.Sequence, patch.Sequence)
		if patch.GroupIDs != nil {
			menu.GroupIDs = append([]int64(nil), (*patch.GroupIDs)...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if menu.NavMenuID != 0 {
		err := m.menus.UpdateNavMenu(ctx, &models.NavMenu{
			ID:       menu.NavMenuID,
			Name:     menu.Name,
			ParentID: menu.ParentMenuID,
			ActionID: menu.ClientActionID,
			Sequence: menu.Sequence,
			GroupIDs: menu.GroupIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to sync navigation menu %d: %w", menu.NavMenuID, err)
		}
	}
	if menu.ClientActionID != 0 {
		err := m.menus.UpdateAction(ctx, &models.ClientAction{
			ID:   menu.ClientActionID,
			Name: menu.Name,
			Tag:  models.ClientActionTag,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to sync dashboard action %d: %w", menu.ClientActionID, err)
		}
	}
	return menu, nil
}

// Delete removes a menu in two phases: references to the action and the
// navigation menu are cleared first, then the menu, the navigation menu and
// the action are deleted in that order. Blocks of the action are kept and
// lose their action.
func (m *MenuManager) Delete(ctx context.Context, id int64) error {
	menu, err := m.menus.GetMenu(ctx, id)
	if err != nil {
		return err
	}
	actionID, navID := menu.ClientActionID, menu.NavMenuID

	if actionID != 0 {
		n, err := m.blocks.DetachAction(ctx, actionID)
		if err != nil {
			return fmt.Errorf("failed to detach blocks from action %d: %w", actionID, err)
		}
		m.logger.Debug("Blocks detached from deleted dashboard", "action_id", actionID, "blocks", n)
	}
	if _, err := m.menus.MutateMenu(ctx, id, func(menu *models.DashboardMenu) error {
		menu.ClientActionID = 0
		menu.NavMenuID = 0
		return nil
	}); err != nil {
		return fmt.Errorf("failed to clear menu references: %w", err)
	}

	if err := m.menus.DeleteMenu(ctx, id); err != nil {
		return err
	}
	if navID != 0 {
		if err := m.menus.DeleteNavMenu(ctx, navID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to delete navigation menu %d: %w", navID, err)
		}
	}
	if actionID != 0 {
		if err := m.menus.DeleteAction(ctx, actionID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to delete dashboard action %d: %w", actionID, err)
		}
		if m.invalidator != nil {
			m.invalidator.Invalidate(ctx, actionID)
		}
	}
	m.logger.Info("Dashboard menu deleted", "menu_id", id)
	return nil
}
