package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

type entity struct {
	def    datasource.EntityDef
	table  string
	fields map[string]datasource.FieldMeta
}

// Store is a datasource.Store over a SQLite database. Entity definitions are
// persisted in ds_entities/ds_fields and cached in memory.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	entities map[string]*entity
}

var _ datasource.Store = (*Store)(nil)

var idMeta = datasource.FieldMeta{Name: datasource.IDField, Type: datasource.FieldInteger, DisplayName: "ID"}

// New prepares the metadata schema and loads existing entity definitions.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db, entities: make(map[string]*entity)}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.loadEntities(ctx); err != nil {
		return nil, fmt.Errorf("failed to load entity definitions: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ds_entities (
		name TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS ds_fields (
		entity TEXT NOT NULL REFERENCES ds_entities(name) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		relation TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (entity, name)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) loadEntities(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.name, e.display_name, f.name, f.type, f.display_name, f.relation
		FROM ds_entities e LEFT JOIN ds_fields f ON f.entity = e.name
		ORDER BY e.name, f.position`)
	if err != nil {
		return err
	}
	defer rows.Close()

	defs := map[string]*datasource.EntityDef{}
	var order []string
	for rows.Next() {
		var name, display string
		var fname, ftype, fdisplay, frel sql.NullString
		if err := rows.Scan(&name, &display, &fname, &ftype, &fdisplay, &frel); err != nil {
			return err
		}
		def, ok := defs[name]
		if !ok {
			def = &datasource.EntityDef{Name: name, DisplayName: display}
			defs[name] = def
			order = append(order, name)
		}
		if fname.Valid {
			def.Fields = append(def.Fields, datasource.FieldMeta{
				Name:        fname.String,
				Type:        datasource.FieldType(ftype.String),
				DisplayName: fdisplay.String,
				Relation:    frel.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range order {
		s.entities[name] = newEntity(*defs[name])
	}
	return nil
}

func newEntity(def datasource.EntityDef) *entity {
	fields := make(map[string]datasource.FieldMeta, len(def.Fields)+1)
	fields[datasource.IDField] = idMeta
	for _, f := range def.Fields {
		fields[f.Name] = f
	}
	return &entity{def: def, table: tableName(def.Name), fields: fields}
}

func columnType(t datasource.FieldType) string {
	switch t {
	case datasource.FieldInteger, datasource.FieldMany2one, datasource.FieldBoolean:
		return "INTEGER"
	case datasource.FieldFloat, datasource.FieldMonetary:
		return "REAL"
	}
	return "TEXT"
}

// DefineEntity creates or extends the entity's table. Columns are only ever
// added, never dropped.
func (s *Store) DefineEntity(ctx context.Context, def datasource.EntityDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	table := tableName(def.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.entities {
		if name != def.Name && e.table == table {
			return models.Validationf("entity %s collides with %s", def.Name, name)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrAggregation, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ds_entities (name, display_name) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET display_name = excluded.display_name`,
		def.Name, def.DisplayName); err != nil {
		return fmt.Errorf("%w: %v", models.ErrAggregation, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ds_fields WHERE entity = ?`, def.Name); err != nil {
		return fmt.Errorf("%w: %v", models.ErrAggregation, err)
	}
	for i, f := range def.Fields {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ds_fields (entity, position, name, type, display_name, relation)
			VALUES (?, ?, ?, ?, ?, ?)`,
			def.Name, i, f.Name, string(f.Type), f.DisplayName, f.Relation); err != nil {
			return fmt.Errorf("%w: %v", models.ErrAggregation, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY)`, quoteIdent(table))); err != nil {
		return fmt.Errorf("%w: %v", models.ErrAggregation, err)
	}
	existing, err := tableColumns(ctx, tx, table)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrAggregation, err)
	}
	for _, f := range def.Fields {
		if !f.Stored() || existing[f.Name] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, quoteIdent(table), quoteIdent(f.Name), columnType(f.Type))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", models.ErrAggregation, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrAggregation, err)
	}
	s.entities[def.Name] = newEntity(def)
	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func (s *Store) entity(name string) (*entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[name]
	if !ok {
		return nil, datasource.Unresolved(name, "")
	}
	return e, nil
}

// hasEntity is used to decide whether many2one labels can be joined.
func (s *Store) hasEntity(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[name]
	if !ok {
		return false
	}
	_, ok = e.fields[datasource.NameField]
	return ok
}

// InsertRows inserts rows in one transaction and returns their ids.
func (s *Store) InsertRows(ctx context.Context, name string, rows []datasource.Row) ([]int64, error) {
	e, err := s.entity(name)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAggregation, err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		cols := make([]string, 0, len(row))
		for k := range row {
			meta, ok := e.fields[k]
			if !ok || !meta.Stored() {
				return nil, datasource.Unresolved(name, k)
			}
			cols = append(cols, k)
		}
		sort.Strings(cols)

		quoted := make([]string, len(cols))
		marks := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, c := range cols {
			v, err := sqlValue(e.fields[c], row[c])
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", models.ErrValidation, name, c, err)
			}
			quoted[i] = quoteIdent(c)
			marks[i] = "?"
			args[i] = v
		}
		var stmt string
		if len(cols) == 0 {
			stmt = fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES`, quoteIdent(e.table))
		} else {
			stmt = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(e.table),
				strings.Join(quoted, ", "), strings.Join(marks, ", "))
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrAggregation, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrAggregation, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAggregation, err)
	}
	return ids, nil
}

// sqlValue converts a Go value into its column representation.
func sqlValue(meta datasource.FieldMeta, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case datasource.Ref:
		return x.ID, nil
	case time.Time:
		return x.UTC().Format(filter.TimeLayout), nil
	case bool:
		if meta.Type == datasource.FieldMany2one && !x {
			return nil, nil
		}
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case string:
		if meta.Type == datasource.FieldDate || meta.Type == datasource.FieldDatetime {
			t, ok := filter.ParseTime(x)
			if !ok {
				return nil, fmt.Errorf("invalid date %q", x)
			}
			return t.UTC().Format(filter.TimeLayout), nil
		}
		return x, nil
	case int64, float64:
		return x, nil
	case []any:
		return nil, fmt.Errorf("list values are not supported here")
	}
	return fmt.Sprint(v), nil
}

func (s *Store) ResolveFieldMeta(_ context.Context, name, field string) (datasource.FieldMeta, error) {
	e, err := s.entity(name)
	if err != nil {
		return datasource.FieldMeta{}, err
	}
	meta, ok := e.fields[field]
	if !ok {
		return datasource.FieldMeta{}, datasource.Unresolved(name, field)
	}
	return meta, nil
}
