// Package datasource defines the queryable record store that block data is
// computed from.
//
// Implementations live in the memory and sqlite sub-packages. All of them
// report a missing entity or field with models.ErrResolution and a failed
// query with models.ErrAggregation.
package datasource

import (
	"context"
	"fmt"
	"strings"

	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// FieldType is the storage kind of an entity field.
type FieldType string

const (
	FieldInteger   FieldType = "integer"
	FieldFloat     FieldType = "float"
	FieldMonetary  FieldType = "monetary"
	FieldChar      FieldType = "char"
	FieldText      FieldType = "text"
	FieldBoolean   FieldType = "boolean"
	FieldDate      FieldType = "date"
	FieldDatetime  FieldType = "datetime"
	FieldSelection FieldType = "selection"
	FieldMany2one  FieldType = "many2one"
	FieldMany2many FieldType = "many2many"
	FieldOne2many  FieldType = "one2many"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldInteger, FieldFloat, FieldMonetary, FieldChar, FieldText, FieldBoolean,
		FieldDate, FieldDatetime, FieldSelection, FieldMany2one, FieldMany2many, FieldOne2many:
		return true
	}
	return false
}

// Numeric is true for the kinds sum/avg/min/max can aggregate.
func (t FieldType) Numeric() bool {
	return t == FieldInteger || t == FieldFloat || t == FieldMonetary
}

// Relational is true for fields that reference other records.
func (t FieldType) Relational() bool {
	return t == FieldMany2one || t == FieldMany2many || t == FieldOne2many
}

// IDField is the implicit primary key of every entity.
const IDField = "id"

// NameField is the display column used to label many2one references.
const NameField = "name"

// FieldMeta describes one field of an entity.
type FieldMeta struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	// Relation is the target entity of relational fields.
	Relation string `json:"relation,omitempty" yaml:"relation"`
}

// Stored reports whether the field has a value column of its own.
func (f FieldMeta) Stored() bool {
	return f.Type != FieldMany2many && f.Type != FieldOne2many
}

// Label returns the display name, falling back to the technical name.
func (f FieldMeta) Label() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Name
}

// EntityDef declares an entity and its fields.
type EntityDef struct {
	Name        string      `json:"name" yaml:"name"`
	DisplayName string      `json:"display_name" yaml:"display_name"`
	Fields      []FieldMeta `json:"fields" yaml:"fields"`
}

// Validate checks names, types and relations.
func (d EntityDef) Validate() error {
	if !ValidName(d.Name) {
		return models.Validationf("invalid entity name %q", d.Name)
	}
	seen := map[string]bool{IDField: true}
	for _, f := range d.Fields {
		if !ValidName(f.Name) || strings.Contains(f.Name, ".") {
			return models.Validationf("entity %s: invalid field name %q", d.Name, f.Name)
		}
		if seen[f.Name] {
			return models.Validationf("entity %s: duplicate field %q", d.Name, f.Name)
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return models.Validationf("entity %s: field %s has unknown type %q", d.Name, f.Name, f.Type)
		}
		if f.Type.Relational() && f.Relation == "" {
			return models.Validationf("entity %s: relational field %s needs a relation", d.Name, f.Name)
		}
	}
	return nil
}

// ValidName accepts dotted identifiers such as "sale.order".
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r >= '0' && r <= '9' || r == '.'):
		default:
			return false
		}
	}
	return !strings.HasSuffix(s, ".") && !strings.Contains(s, "..")
}

// Ref is a many2one value: the referenced id and its display name.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Row is one record read from an entity.
type Row map[string]any

// Group is one bucket of an aggregate query. Key is nil for records without
// a group value and for ungrouped queries; many2one keys are Refs.
type Group struct {
	Key   any
	Value float64
	Count int64
}

// AggregateQuery aggregates Measure with Op over the records matching
// Predicate, optionally bucketed by GroupBy.
type AggregateQuery struct {
	Entity    string
	Predicate filter.Predicate
	GroupBy   string
	Measure   string
	Op        models.Operation
}

// ReadQuery reads Columns of at most Limit records. Order is a comma separated
// list of "field [asc|desc]".
type ReadQuery struct {
	Entity    string
	Predicate filter.Predicate
	Columns   []string
	Limit     int
	Order     string
}

// DataSource is the abstract record store blocks are resolved against.
type DataSource interface {
	Count(ctx context.Context, entity string, pred filter.Predicate) (int64, error)
	Aggregate(ctx context.Context, q AggregateQuery) ([]Group, error)
	ReadColumns(ctx context.Context, q ReadQuery) ([]Row, error)
	ResolveFieldMeta(ctx context.Context, entity, field string) (FieldMeta, error)
}

// Loader declares entities and inserts records. Used by seeding and tests.
type Loader interface {
	DefineEntity(ctx context.Context, def EntityDef) error
	InsertRows(ctx context.Context, entity string, rows []Row) ([]int64, error)
}

// Store is a data source that can also be loaded.
type Store interface {
	DataSource
	Loader
}

// OrderTerm is one parsed element of ReadQuery.Order.
type OrderTerm struct {
	Field string
	Desc  bool
}

// ParseOrder parses "field [asc|desc], ...".
func ParseOrder(order string) ([]OrderTerm, error) {
	var out []OrderTerm
	for _, part := range strings.Split(order, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 0:
			continue
		case 1, 2:
		default:
			return nil, fmt.Errorf("%w: invalid order %q", models.ErrResolution, part)
		}
		term := OrderTerm{Field: fields[0]}
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
			case "desc":
				term.Desc = true
			default:
				return nil, fmt.Errorf("%w: invalid order direction %q", models.ErrResolution, fields[1])
			}
		}
		out = append(out, term)
	}
	return out, nil
}

// Unresolved builds the error of a missing entity or field.
func Unresolved(entity, field string) error {
	if field == "" {
		return fmt.Errorf("%w: model %s does not exist", models.ErrResolution, entity)
	}
	return fmt.Errorf("%w: field %s does not exist on model %s", models.ErrResolution, field, entity)
}
