package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
)

// SQLiteMenuStore persists menus, actions and nav menus.
type SQLiteMenuStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ MenuStore = (*SQLiteMenuStore)(nil)

func NewSQLiteMenuStore(db *sql.DB) *SQLiteMenuStore {
	return &SQLiteMenuStore{db: db, now: time.Now}
}

func uniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkAffected(res sql.Result, kind string, id int64) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (s *SQLiteMenuStore) CreateAction(ctx context.Context, a *models.ClientAction) (*models.ClientAction, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO client_actions (name, tag) VALUES (?, ?)`, a.Name, a.Tag)
	monitoring.RecordStoreOperation("create", "client_actions", err == nil)
	if err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}
	c := *a
	c.ID, err = res.LastInsertId()
	return &c, err
}

func (s *SQLiteMenuStore) GetAction(ctx context.Context, id int64) (*models.ClientAction, error) {
	var a models.ClientAction
	err := s.db.QueryRowContext(ctx, `SELECT id, name, tag FROM client_actions WHERE id = ?`, id).Scan(&a.ID, &a.Name, &a.Tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("action", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteMenuStore) UpdateAction(ctx context.Context, a *models.ClientAction) error {
	res, err := s.db.ExecContext(ctx, `UPDATE client_actions SET name = ?, tag = ? WHERE id = ?`, a.Name, a.Tag, a.ID)
	monitoring.RecordStoreOperation("update", "client_actions", err == nil)
	if err != nil {
		return fmt.Errorf("update action %d: %w", a.ID, err)
	}
	return checkAffected(res, "action", a.ID)
}

func (s *SQLiteMenuStore) DeleteAction(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM client_actions WHERE id = ?`, id)
	monitoring.RecordStoreOperation("delete", "client_actions", err == nil)
	if err != nil {
		return fmt.Errorf("delete action %d: %w", id, err)
	}
	return checkAffected(res, "action", id)
}

func (s *SQLiteMenuStore) CreateNavMenu(ctx context.Context, n *models.NavMenu) (*models.NavMenu, error) {
	groups, err := json.Marshal(n.GroupIDs)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO nav_menus (name, parent_id, action_id, sequence, group_ids) VALUES (?, ?, ?, ?, ?)`,
		n.Name, nullID(n.ParentID), nullID(n.ActionID), n.Sequence, string(groups))
	monitoring.RecordStoreOperation("create", "nav_menus", err == nil)
	if err != nil {
		return nil, fmt.Errorf("insert nav menu: %w", err)
	}
	c := cloneNav(n)
	c.ID, err = res.LastInsertId()
	return c, err
}

func (s *SQLiteMenuStore) GetNavMenu(ctx context.Context, id int64) (*models.NavMenu, error) {
	var (
		n              models.NavMenu
		parent, action sql.NullInt64
		groups         string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, parent_id, action_id, sequence, group_ids FROM nav_menus WHERE id = ?`, id).
		Scan(&n.ID, &n.Name, &parent, &action, &n.Sequence, &groups)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("nav menu", id)
	}
	if err != nil {
		return nil, err
	}
	n.ParentID = parent.Int64
	n.ActionID = action.Int64
	if err := json.Unmarshal([]byte(groups), &n.GroupIDs); err != nil {
		return nil, fmt.Errorf("decode nav menu %d: %w", id, err)
	}
	return &n, nil
}

func (s *SQLiteMenuStore) UpdateNavMenu(ctx context.Context, n *models.NavMenu) error {
	groups, err := json.Marshal(n.GroupIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE nav_menus SET name = ?, parent_id = ?, action_id = ?, sequence = ?, group_ids = ? WHERE id = ?`,
		n.Name, nullID(n.ParentID), nullID(n.ActionID), n.Sequence, string(groups), n.ID)
	monitoring.RecordStoreOperation("update", "nav_menus", err == nil)
	if err != nil {
		return fmt.Errorf("update nav menu %d: %w", n.ID, err)
	}
	return checkAffected(res, "nav menu", n.ID)
}

func (s *SQLiteMenuStore) DeleteNavMenu(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nav_menus WHERE id = ?`, id)
	monitoring.RecordStoreOperation("delete", "nav_menus", err == nil)
	if err != nil {
		return fmt.Errorf("delete nav menu %d: %w", id, err)
	}
	return checkAffected(res, "nav menu", id)
}

func (s *SQLiteMenuStore) CreateMenu(ctx context.Context, m *models.DashboardMenu) (*models.DashboardMenu, error) {
	c := m.Clone()
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dashboard_menus (name, client_action_id, nav_menu_id, sequence, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, nullID(c.ClientActionID), nullID(c.NavMenuID), c.Sequence, string(payload), formatTime(now), formatTime(now))
	monitoring.RecordStoreOperation("create", "dashboard_menus", err == nil)
	if uniqueViolation(err) {
		return nil, models.Validationf("menu name %q already exists", c.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("insert menu: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

const menuColumns = `id, name, client_action_id, nav_menu_id, sequence, payload, created_at, updated_at`

func scanMenu(sc scanner) (*models.DashboardMenu, error) {
	var (
		m                models.DashboardMenu
		id               int64
		name             string
		seq              int
		action, nav      sql.NullInt64
		payload          string
		created, updated string
	)
	if err := sc.Scan(&id, &name, &action, &nav, &seq, &payload, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("decode menu %d: %w", id, err)
	}
	m.ID = id
	m.Name = name
	m.ClientActionID = action.Int64
	m.NavMenuID = nav.Int64
	m.Sequence = seq
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return &m, nil
}

func getMenu(ctx context.Context, q querier, id int64) (*models.DashboardMenu, error) {
	m, err := scanMenu(q.QueryRowContext(ctx, `SELECT `+menuColumns+` FROM dashboard_menus WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("menu", id)
	}
	return m, err
}

func (s *SQLiteMenuStore) GetMenu(ctx context.Context, id int64) (*models.DashboardMenu, error) {
	return getMenu(ctx, s.db, id)
}

func (s *SQLiteMenuStore) ListMenus(ctx context.Context) ([]*models.DashboardMenu, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+menuColumns+` FROM dashboard_menus ORDER BY sequence, id`)
	if err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	defer rows.Close()
	var out []*models.DashboardMenu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteMenuStore) MutateMenu(ctx context.Context, id int64, fn func(*models.DashboardMenu) error) (*models.DashboardMenu, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := getMenu(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	created := m.CreatedAt
	if err := fn(m); err != nil {
		return nil, err
	}
	m.ID = id
	m.CreatedAt = created
	m.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE dashboard_menus
		SET name = ?, client_action_id = ?, nav_menu_id = ?, sequence = ?, payload = ?, updated_at = ?
		WHERE id = ?`,
		m.Name, nullID(m.ClientActionID), nullID(m.NavMenuID), m.Sequence, string(payload), formatTime(m.UpdatedAt), id)
	if err == nil {
		err = tx.Commit()
	}
	monitoring.RecordStoreOperation("update", "dashboard_menus", err == nil)
	if uniqueViolation(err) {
		return nil, models.Validationf("menu name %q already exists", m.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("update menu %d: %w", id, err)
	}
	return m, nil
}

func (s *SQLiteMenuStore) DeleteMenu(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dashboard_menus WHERE id = ?`, id)
	monitoring.RecordStoreOperation("delete", "dashboard_menus", err == nil)
	if err != nil {
		return fmt.Errorf("delete menu %d: %w", id, err)
	}
	return checkAffected(res, "menu", id)
}
