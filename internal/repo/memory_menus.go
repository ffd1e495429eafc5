package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// MemoryMenuStore is a MenuStore kept in process memory.
type MemoryMenuStore struct {
	mu      sync.RWMutex
	actions map[int64]*models.ClientAction
	navs    map[int64]*models.NavMenu
	menus   map[int64]*models.DashboardMenu
	nextID  int64
	now     func() time.Time
}

var _ MenuStore = (*MemoryMenuStore)(nil)

func NewMemoryMenuStore() *MemoryMenuStore {
	return &MemoryMenuStore{
		actions: make(map[int64]*models.ClientAction),
		navs:    make(map[int64]*models.NavMenu),
		menus:   make(map[int64]*models.DashboardMenu),
		nextID:  1,
		now:     time.Now,
	}
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", models.ErrNotFound, kind, id)
}

func (s *MemoryMenuStore) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *MemoryMenuStore) CreateAction(_ context.Context, a *models.ClientAction) (*models.ClientAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	c.ID = s.id()
	s.actions[c.ID] = &c
	out := c
	return &out, nil
}

func (s *MemoryMenuStore) GetAction(_ context.Context, id int64) (*models.ClientAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, notFound("action", id)
	}
	c := *a
	return &c, nil
}

func (s *MemoryMenuStore) UpdateAction(_ context.Context, a *models.ClientAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[a.ID]; !ok {
		return notFound("action", a.ID)
	}
	c := *a
	s.actions[a.ID] = &c
	return nil
}

func (s *MemoryMenuStore) DeleteAction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[id]; !ok {
		return notFound("action", id)
	}
	for _, n := range s.navs {
		if n.ActionID == id {
			return fmt.Errorf("action %d is still referenced by nav menu %d", id, n.ID)
		}
	}
	for _, m := range s.menus {
		if m.ClientActionID == id {
			return fmt.Errorf("action %d is still referenced by menu %d", id, m.ID)
		}
	}
	delete(s.actions, id)
	return nil
}

func cloneNav(n *models.NavMenu) *models.NavMenu {
	c := *n
	if n.GroupIDs != nil {
		c.GroupIDs = append([]int64(nil), n.GroupIDs...)
	}
	return &c
}

func (s *MemoryMenuStore) CreateNavMenu(_ context.Context, n *models.NavMenu) (*models.NavMenu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneNav(n)
	c.ID = s.id()
	s.navs[c.ID] = c
	return cloneNav(c), nil
}

func (s *MemoryMenuStore) GetNavMenu(_ context.Context, id int64) (*models.NavMenu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.navs[id]
	if !ok {
		return nil, notFound("nav menu", id)
	}
	return cloneNav(n), nil
}

func (s *MemoryMenuStore) UpdateNavMenu(_ context.Context, n *models.NavMenu) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.navs[n.ID]; !ok {
		return notFound("nav menu", n.ID)
	}
	s.navs[n.ID] = cloneNav(n)
	return nil
}

func (s *MemoryMenuStore) DeleteNavMenu(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.navs[id]; !ok {
		return notFound("nav menu", id)
	}
	for _, m := range s.menus {
		if m.NavMenuID == id {
			return fmt.Errorf("nav menu %d is still referenced by menu %d", id, m.ID)
		}
	}
	delete(s.navs, id)
	return nil
}

func (s *MemoryMenuStore) CreateMenu(_ context.Context, m *models.DashboardMenu) (*models.DashboardMenu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := m.Clone()
	c.ID = s.id()
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.menus[c.ID] = c
	return c.Clone(), nil
}

func (s *MemoryMenuStore) GetMenu(_ context.Context, id int64) (*models.DashboardMenu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.menus[id]
	if !ok {
		return nil, notFound("menu", id)
	}
	return m.Clone(), nil
}

func (s *MemoryMenuStore) ListMenus(_ context.Context) ([]*models.DashboardMenu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.DashboardMenu, 0, len(s.menus))
	for _, m := range s.menus {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryMenuStore) MutateMenu(_ context.Context, id int64, fn func(*models.DashboardMenu) error) (*models.DashboardMenu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.menus[id]
	if !ok {
		return nil, notFound("menu", id)
	}
	c := m.Clone()
	if err := fn(c); err != nil {
		return nil, err
	}
	c.ID = id
	c.CreatedAt = m.CreatedAt
	c.UpdatedAt = s.now().UTC()
	s.menus[id] = c
	return c.Clone(), nil
}

func (s *MemoryMenuStore) DeleteMenu(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.menus[id]; !ok {
		return notFound("menu", id)
	}
	delete(s.menus, id)
	return nil
}
