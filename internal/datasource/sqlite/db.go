// Package sqlite implements datasource.Store on SQLite through the pure Go
// modernc.org/sqlite driver. Entities map to tables named after the entity
// with dots replaced by underscores and an "x_" prefix.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Open opens dsn and applies the connection pragmas the stores rely on.
// In-memory databases are limited to a single connection so every caller
// sees the same database.
func Open(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file:dashboards.db"
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	memory := isMemory(dsn)

	pragmas := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"}
	if !memory {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	full := dsn + sep + strings.Join(pragmas, "&")

	db, err := sql.Open(driverName, full)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	return db, nil
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// quoteIdent quotes a validated identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func tableName(entity string) string {
	return "x_" + strings.ReplaceAll(entity, ".", "_")
}
