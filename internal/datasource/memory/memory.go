// Package memory is an in-process datasource.Store used for development,
// seeding and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

type entity struct {
	def    datasource.EntityDef
	fields map[string]datasource.FieldMeta
	rows   []datasource.Row
	nextID int64
}

// Store keeps entities and their rows in memory. Rows are immutable once
// inserted, so readers only need the read lock.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*entity
}

var _ datasource.Store = (*Store)(nil)

func New() *Store {
	return &Store{entities: make(map[string]*entity)}
}

// DefineEntity registers def. Redefining an entity replaces its field list
// and keeps existing rows.
func (s *Store) DefineEntity(_ context.Context, def datasource.EntityDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	fields := make(map[string]datasource.FieldMeta, len(def.Fields)+1)
	fields[datasource.IDField] = idMeta
	for _, f := range def.Fields {
		fields[f.Name] = f
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[def.Name]; ok {
		e.def = def
		e.fields = fields
		return nil
	}
	s.entities[def.Name] = &entity{def: def, fields: fields, nextID: 1}
	return nil
}

var idMeta = datasource.FieldMeta{Name: datasource.IDField, Type: datasource.FieldInteger, DisplayName: "ID"}

// InsertRows appends rows to entity and returns their ids. Rows without an id
// get the next free one.
func (s *Store) InsertRows(_ context.Context, name string, rows []datasource.Row) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[name]
	if !ok {
		return nil, datasource.Unresolved(name, "")
	}

	normalized := make([]datasource.Row, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	next := e.nextID
	for _, row := range rows {
		out := make(datasource.Row, len(row)+1)
		for k, v := range row {
			meta, ok := e.fields[k]
			if !ok || !meta.Stored() {
				return nil, datasource.Unresolved(name, k)
			}
			nv, err := normalize(meta, v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", models.ErrValidation, name, k, err)
			}
			out[k] = nv
		}
		id, _ := out[datasource.IDField].(int64)
		if id <= 0 {
			id = next
			out[datasource.IDField] = id
		}
		if id >= next {
			next = id + 1
		}
		normalized = append(normalized, out)
		ids = append(ids, id)
	}
	e.rows = append(e.rows, normalized...)
	e.nextID = next
	return ids, nil
}

func normalize(meta datasource.FieldMeta, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch meta.Type {
	case datasource.FieldInteger:
		f, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
		return int64(f), nil
	case datasource.FieldFloat, datasource.FieldMonetary:
		f, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return f, nil
	case datasource.FieldBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", v)
		}
		return b, nil
	case datasource.FieldMany2one:
		if b, ok := v.(bool); ok && !b {
			return nil, nil
		}
		if r, ok := v.(datasource.Ref); ok {
			return r.ID, nil
		}
		f, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("expected record id, got %T", v)
		}
		return int64(f), nil
	case datasource.FieldDate, datasource.FieldDatetime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			t, ok := filter.ParseTime(x)
			if !ok {
				return nil, fmt.Errorf("invalid date %q", x)
			}
			return t, nil
		}
		return nil, fmt.Errorf("expected date, got %T", v)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func (s *Store) entity(name string) (*entity, error) {
	e, ok := s.entities[name]
	if !ok {
		return nil, datasource.Unresolved(name, "")
	}
	return e, nil
}

// record is the filter view of a row: every stored field is present.
func (e *entity) record(row datasource.Row) filter.Record {
	rec := make(filter.Record, len(e.fields))
	for name, meta := range e.fields {
		if meta.Stored() {
			rec[name] = row[name]
		}
	}
	return rec
}

func (e *entity) match(ctx context.Context, pred filter.Predicate) ([]datasource.Row, error) {
	for _, f := range pred.Fields() {
		if meta, ok := e.fields[f]; !ok || !meta.Stored() {
			return nil, datasource.Unresolved(e.def.Name, f)
		}
	}
	var out []datasource.Row
	for i, row := range e.rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", models.ErrAggregation, err)
			}
		}
		ok, err := filter.Matches(pred, e.record(row))
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", e.def.Name, err)
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, name string, pred filter.Predicate) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.entity(name)
	if err != nil {
		return 0, err
	}
	rows, err := e.match(ctx, pred)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

type bucket struct {
	key   any
	sum   float64
	min   float64
	max   float64
	n     int64
	count int64
}

func (b *bucket) add(v any) {
	b.count++
	f, ok := number(v)
	if !ok {
		return
	}
	if b.n == 0 || f < b.min {
		b.min = f
	}
	if b.n == 0 || f > b.max {
		b.max = f
	}
	b.sum += f
	b.n++
}

func (b *bucket) value(op models.Operation) float64 {
	switch op {
	case models.OperationCount:
		return float64(b.count)
	case models.OperationSum:
		return b.sum
	case models.OperationAvg:
		if b.n == 0 {
			return 0
		}
		return b.sum / float64(b.n)
	case models.OperationMin:
		return b.min
	case models.OperationMax:
		return b.max
	}
	return 0
}

// Aggregate buckets matching rows in order of first appearance.
func (s *Store) Aggregate(ctx context.Context, q datasource.AggregateQuery) ([]datasource.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.entity(q.Entity)
	if err != nil {
		return nil, err
	}
	if !q.Op.Valid() {
		return nil, fmt.Errorf("%w: unsupported operation %q", models.ErrAggregation, q.Op)
	}
	if q.Op != models.OperationCount {
		meta, ok := e.fields[q.Measure]
		if !ok || !meta.Stored() {
			return nil, datasource.Unresolved(q.Entity, q.Measure)
		}
		if !meta.Type.Numeric() {
			return nil, fmt.Errorf("%w: cannot %s non-numeric field %s", models.ErrAggregation, q.Op, q.Measure)
		}
	}
	var groupMeta datasource.FieldMeta
	if q.GroupBy != "" {
		meta, ok := e.fields[q.GroupBy]
		if !ok || !meta.Stored() {
			return nil, datasource.Unresolved(q.Entity, q.GroupBy)
		}
		groupMeta = meta
	}

	rows, err := e.match(ctx, q.Predicate)
	if err != nil {
		return nil, err
	}

	var order []*bucket
	var ungrouped *bucket
	index := map[any]*bucket{}
	if q.GroupBy == "" {
		ungrouped = &bucket{}
		order = append(order, ungrouped)
	}
	for _, row := range rows {
		bk := ungrouped
		if q.GroupBy != "" {
			key := row[q.GroupBy]
			switch k := key.(type) {
			case bool:
				if !k && groupMeta.Type != datasource.FieldBoolean {
					key = nil
				}
			case string:
				if k == "" {
					key = nil
				}
			}
			var ok bool
			if bk, ok = index[key]; !ok {
				bk = &bucket{key: key}
				index[key] = bk
				order = append(order, bk)
			}
		}
		bk.add(row[q.Measure])
	}

	out := make([]datasource.Group, len(order))
	for i, b := range order {
		key := b.key
		if id, ok := key.(int64); ok && groupMeta.Type == datasource.FieldMany2one {
			key = s.ref(groupMeta.Relation, id)
		}
		out[i] = datasource.Group{Key: key, Value: b.value(q.Op), Count: b.count}
	}
	return out, nil
}

// ref resolves a many2one id to its display name. Callers hold the read lock.
func (s *Store) ref(relation string, id int64) datasource.Ref {
	r := datasource.Ref{ID: id, Name: fmt.Sprintf("%s,%d", relation, id)}
	e, ok := s.entities[relation]
	if !ok {
		return r
	}
	for _, row := range e.rows {
		if row[datasource.IDField] == id {
			if name, ok := row[datasource.NameField].(string); ok && name != "" {
				r.Name = name
			}
			break
		}
	}
	return r
}

func (s *Store) ReadColumns(ctx context.Context, q datasource.ReadQuery) ([]datasource.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.entity(q.Entity)
	if err != nil {
		return nil, err
	}
	for _, c := range q.Columns {
		meta, ok := e.fields[c]
		if !ok || !meta.Stored() {
			return nil, datasource.Unresolved(q.Entity, c)
		}
	}
	terms, err := datasource.ParseOrder(q.Order)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		if _, ok := e.fields[t.Field]; !ok {
			return nil, datasource.Unresolved(q.Entity, t.Field)
		}
	}

	rows, err := e.match(ctx, q.Predicate)
	if err != nil {
		return nil, err
	}
	sorted := append([]datasource.Row(nil), rows...)
	if len(terms) > 0 {
		sort.SliceStable(sorted, func(i, j int) bool {
			for _, t := range terms {
				c := compareNullable(sorted[i][t.Field], sorted[j][t.Field])
				if c == 0 {
					continue
				}
				if t.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(sorted) > q.Limit {
		sorted = sorted[:q.Limit]
	}

	out := make([]datasource.Row, len(sorted))
	for i, row := range sorted {
		r := datasource.Row{datasource.IDField: row[datasource.IDField]}
		for _, c := range q.Columns {
			v := row[c]
			if id, ok := v.(int64); ok && e.fields[c].Type == datasource.FieldMany2one {
				v = s.ref(e.fields[c].Relation, id)
			}
			r[c] = v
		}
		out[i] = r
	}
	return out, nil
}

// compareNullable orders nil before any value.
func compareNullable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, _ := filter.Compare(a, b)
	return c
}

func (s *Store) ResolveFieldMeta(_ context.Context, name, field string) (datasource.FieldMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
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
