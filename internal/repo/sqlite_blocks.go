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

// SQLiteBlockStore stores each block as a JSON payload next to the columns
// it is queried by.
type SQLiteBlockStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ BlockStore = (*SQLiteBlockStore)(nil)

func NewSQLiteBlockStore(db *sql.DB) *SQLiteBlockStore {
	return &SQLiteBlockStore{db: db, now: time.Now}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteBlockStore) CreateBlock(ctx context.Context, b *models.Block) (*models.Block, error) {
	c := b.Clone()
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dashboard_blocks (client_action_id, owner_id, active, name, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullID(c.ClientActionID), c.OwnerID, c.Active, c.Name, string(payload), formatTime(now), formatTime(now))
	monitoring.RecordStoreOperation("create", "blocks", err == nil)
	if err != nil {
		return nil, fmt.Errorf("insert block: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

func (s *SQLiteBlockStore) GetBlock(ctx context.Context, id int64) (*models.Block, error) {
	return getBlock(ctx, s.db, id)
}

func getBlock(ctx context.Context, q querier, id int64) (*models.Block, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, client_action_id, owner_id, active, name, payload, created_at, updated_at
		FROM dashboard_blocks WHERE id = ?`, id)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blockNotFound(id)
	}
	return b, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBlock(sc scanner) (*models.Block, error) {
	var (
		id, owner        int64
		action           sql.NullInt64
		active           bool
		name, payload    string
		created, updated string
	)
	if err := sc.Scan(&id, &action, &owner, &active, &name, &payload, &created, &updated); err != nil {
		return nil, err
	}
	var b models.Block
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("decode block %d: %w", id, err)
	}
	b.ID = id
	b.ClientActionID = action.Int64
	b.OwnerID = owner
	b.Active = active
	b.Name = name
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(updated)
	return &b, nil
}

func (s *SQLiteBlockStore) MutateBlock(ctx context.Context, id int64, fn func(*models.Block) error) (*models.Block, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := getBlock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	created := b.CreatedAt
	if err := fn(b); err != nil {
		monitoring.RecordStoreOperation("update", "blocks", false)
		return nil, err
	}
	b.ID = id
	b.CreatedAt = created
	b.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE dashboard_blocks
		SET client_action_id = ?, owner_id = ?, active = ?, name = ?, payload = ?, updated_at = ?
		WHERE id = ?`,
		nullID(b.ClientActionID), b.OwnerID, b.Active, b.Name, string(payload), formatTime(b.UpdatedAt), id)
	if err == nil {
		err = tx.Commit()
	}
	monitoring.RecordStoreOperation("update", "blocks", err == nil)
	if err != nil {
		return nil, fmt.Errorf("update block %d: %w", id, err)
	}
	return b, nil
}

func (s *SQLiteBlockStore) DeleteBlock(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dashboard_blocks WHERE id = ?`, id)
	monitoring.RecordStoreOperation("delete", "blocks", err == nil)
	if err != nil {
		return fmt.Errorf("delete block %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return blockNotFound(id)
	}
	return nil
}

func (s *SQLiteBlockStore) ListBlocks(ctx context.Context, q BlockQuery) ([]*models.Block, error) {
	var (
		conds []string
		args  []any
	)
	if q.ActionID != 0 {
		conds = append(conds, "client_action_id = ?")
		args = append(args, q.ActionID)
	}
	if q.ActiveOnly {
		conds = append(conds, "active = 1")
	}
	if q.OwnerID != 0 {
		conds = append(conds, "owner_id = ?")
		args = append(args, q.OwnerID)
	}
	stmt := `SELECT id, client_action_id, owner_id, active, name, payload, created_at, updated_at FROM dashboard_blocks`
	if len(conds) > 0 {
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	stmt += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	var out []*models.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		if !q.nameMatches(b.Name) {
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteBlockStore) DetachAction(ctx context.Context, actionID int64) (int, error) {
	blocks, err := s.ListBlocks(ctx, BlockQuery{ActionID: actionID})
	if err != nil {
		return 0, err
	}
	for _, b := range blocks {
		if _, err := s.MutateBlock(ctx, b.ID, func(b *models.Block) error {
			b.ClientActionID = 0
			return nil
		}); err != nil {
			return 0, err
		}
	}
	return len(blocks), nil
}
