package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqliteSchema keeps the cross references as real foreign keys, so deleting
// an action or nav menu that is still referenced fails.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS client_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	tag TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS nav_menus (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	parent_id INTEGER,
	action_id INTEGER REFERENCES client_actions(id),
	sequence INTEGER NOT NULL DEFAULT 10,
	group_ids TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS dashboard_menus (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	client_action_id INTEGER REFERENCES client_actions(id),
	nav_menu_id INTEGER REFERENCES nav_menus(id),
	sequence INTEGER NOT NULL DEFAULT 10,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dashboard_blocks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	client_action_id INTEGER REFERENCES client_actions(id),
	owner_id INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1,
	name TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dashboard_blocks_action ON dashboard_blocks(client_action_id, active);
CREATE INDEX IF NOT EXISTS idx_dashboard_blocks_owner ON dashboard_blocks(owner_id);
`

// MigrateSQLite creates the block and menu tables.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to migrate dashboard schema: %w", err)
	}
	return nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
