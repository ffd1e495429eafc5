package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

const baseAlias = "t"

// whereBuilder translates a predicate tree into a parameterised SQL clause.
type whereBuilder struct {
	e    *entity
	args []any
}

func (s *Store) where(e *entity, pred filter.Predicate) (string, []any, error) {
	if pred.IsEmpty() {
		return "1", nil, nil
	}
	b := &whereBuilder{e: e}
	clause, err := b.node(pred.Root())
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

func (b *whereBuilder) node(n filter.Node) (string, error) {
	switch x := n.(type) {
	case filter.Condition:
		return b.condition(x)
	case filter.And:
		return b.join(x.Children, " AND ")
	case filter.Or:
		return b.join(x.Children, " OR ")
	case filter.Not:
		inner, err := b.node(x.Child)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case filter.Term:
		return "", fmt.Errorf("%w: unsupported filter term %v", models.ErrResolution, x.Items)
	}
	return "", fmt.Errorf("%w: unknown filter node %T", models.ErrResolution, n)
}

func (b *whereBuilder) join(children []filter.Node, sep string) (string, error) {
	parts := make([]string, len(children))
	for i, c := range children {
		p, err := b.node(c)
		if err != nil {
			return "", err
		}
		parts[i] = p
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	b, ok := v.(bool)
	return ok && !b
}

func (b *whereBuilder) arg(meta datasource.FieldMeta, v any) (string, error) {
	sv, err := sqlValue(meta, v)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrResolution, meta.Name, err)
	}
	b.args = append(b.args, sv)
	return "?", nil
}

func (b *whereBuilder) condition(c filter.Condition) (string, error) {
	meta, ok := b.e.fields[c.Field]
	if !ok || !meta.Stored() {
		return "", datasource.Unresolved(b.e.def.Name, c.Field)
	}
	col := baseAlias + "." + quoteIdent(c.Field)
	op := strings.ToLower(c.Operator)

	switch op {
	case "=", "==":
		if isFalsy(c.Value) {
			if meta.Type == datasource.FieldBoolean {
				return "(" + col + " IS NULL OR " + col + " = 0)", nil
			}
			return col + " IS NULL", nil
		}
		mark, err := b.arg(meta, c.Value)
		if err != nil {
			return "", err
		}
		return col + " = " + mark, nil
	case "!=", "<>":
		if isFalsy(c.Value) {
			if meta.Type == datasource.FieldBoolean {
				return "(" + col + " IS NOT NULL AND " + col + " != 0)", nil
			}
			return col + " IS NOT NULL", nil
		}
		mark, err := b.arg(meta, c.Value)
		if err != nil {
			return "", err
		}
		return "(" + col + " IS NULL OR " + col + " != " + mark + ")", nil
	case "<", "<=", ">", ">=":
		mark, err := b.arg(meta, c.Value)
		if err != nil {
			return "", err
		}
		return col + " " + op + " " + mark, nil
	case "in", "not in":
		list, ok := c.Value.([]any)
		if !ok {
			list = []any{c.Value}
		}
		if len(list) == 0 {
			if op == "in" {
				return "0", nil
			}
			return "1", nil
		}
		marks := make([]string, len(list))
		for i, v := range list {
			mark, err := b.arg(meta, v)
			if err != nil {
				return "", err
			}
			marks[i] = mark
		}
		set := "(" + strings.Join(marks, ", ") + ")"
		if op == "in" {
			return col + " IN " + set, nil
		}
		return "(" + col + " IS NULL OR " + col + " NOT IN " + set + ")", nil
	case "like", "ilike", "not like", "not ilike", "=like", "=ilike":
		pattern, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s expects a string value", models.ErrResolution, op)
		}
		if !strings.HasPrefix(op, "=") {
			pattern = "%" + pattern + "%"
		}
		// LIKE folds ASCII case in SQLite; GLOB gives the case sensitive match.
		expr := "LOWER(" + col + ") LIKE LOWER(?)"
		if !strings.Contains(op, "ilike") {
			expr = col + " GLOB ?"
			pattern = likeToGlob(pattern)
		}
		b.args = append(b.args, pattern)
		if strings.HasPrefix(op, "not") {
			return "(" + col + " IS NULL OR NOT (" + expr + "))", nil
		}
		return expr, nil
	}
	return "", fmt.Errorf("%w: unsupported operator %q", models.ErrResolution, c.Operator)
}

// likeToGlob rewrites the % and _ wildcards of a LIKE pattern for GLOB.
func likeToGlob(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteByte('*')
		case '_':
			sb.WriteByte('?')
		case '*', '?', '[', ']':
			sb.WriteByte('[')
			sb.WriteRune(r)
			sb.WriteByte(']')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (s *Store) Count(ctx context.Context, name string, pred filter.Predicate) (int64, error) {
	e, err := s.entity(name)
	if err != nil {
		return 0, err
	}
	clause, args, err := s.where(e, pred)
	if err != nil {
		return 0, fmt.Errorf("model %s: %w", name, err)
	}
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s AS %s WHERE %s`, quoteIdent(e.table), baseAlias, clause)
	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", models.ErrAggregation, name, err)
	}
	return n, nil
}

func aggregateExpr(op models.Operation, col string) (string, error) {
	switch op {
	case models.OperationCount:
		return "COUNT(*)", nil
	case models.OperationSum:
		return "COALESCE(SUM(" + col + "), 0)", nil
	case models.OperationAvg:
		return "COALESCE(AVG(" + col + "), 0)", nil
	case models.OperationMin:
		return "COALESCE(MIN(" + col + "), 0)", nil
	case models.OperationMax:
		return "COALESCE(MAX(" + col + "), 0)", nil
	}
	return "", fmt.Errorf("%w: unsupported operation %q", models.ErrAggregation, op)
}

// Aggregate runs one GROUP BY query. Groups come back in SQLite's native
// order; many2one keys are labelled through a join on the related table.
func (s *Store) Aggregate(ctx context.Context, q datasource.AggregateQuery) ([]datasource.Group, error) {
	e, err := s.entity(q.Entity)
	if err != nil {
		return nil, err
	}
	measureCol := ""
	if q.Op != models.OperationCount {
		meta, ok := e.fields[q.Measure]
		if !ok || !meta.Stored() {
			return nil, datasource.Unresolved(q.Entity, q.Measure)
		}
		if !meta.Type.Numeric() {
			return nil, fmt.Errorf("%w: cannot %s non-numeric field %s", models.ErrAggregation, q.Op, q.Measure)
		}
		measureCol = baseAlias + "." + quoteIdent(q.Measure)
	}
	agg, err := aggregateExpr(q.Op, measureCol)
	if err != nil {
		return nil, err
	}

	var groupMeta datasource.FieldMeta
	selectCols := "NULL, NULL"
	join, groupBy := "", ""
	if q.GroupBy != "" {
		meta, ok := e.fields[q.GroupBy]
		if !ok || !meta.Stored() {
			return nil, datasource.Unresolved(q.Entity, q.GroupBy)
		}
		groupMeta = meta
		gcol := baseAlias + "." + quoteIdent(q.GroupBy)
		switch meta.Type {
		case datasource.FieldChar, datasource.FieldText, datasource.FieldSelection:
			// '' and NULL are one group.
			gcol = "NULLIF(" + gcol + ", '')"
		}
		selectCols = gcol + ", NULL"
		groupBy = " GROUP BY " + gcol
		if meta.Type == datasource.FieldMany2one && s.hasEntity(meta.Relation) {
			join = fmt.Sprintf(" LEFT JOIN %s AS g ON g.id = %s", quoteIdent(tableName(meta.Relation)), gcol)
			selectCols = gcol + ", g." + quoteIdent(datasource.NameField)
			groupBy += ", g." + quoteIdent(datasource.NameField)
		}
	}

	clause, args, err := s.where(e, q.Predicate)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", q.Entity, err)
	}
	stmt := fmt.Sprintf(`SELECT %s, %s, COUNT(*) FROM %s AS %s%s WHERE %s%s`,
		selectCols, agg, quoteIdent(e.table), baseAlias, join, clause, groupBy)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate %s: %v", models.ErrAggregation, q.Entity, err)
	}
	defer rows.Close()

	var out []datasource.Group
	for rows.Next() {
		var (
			key   any
			label any
			value float64
			count int64
		)
		if err := rows.Scan(&key, &label, &value, &count); err != nil {
			return nil, fmt.Errorf("%w: aggregate %s: %v", models.ErrAggregation, q.Entity, err)
		}
		g := datasource.Group{Value: value, Count: count}
		if q.GroupBy != "" {
			g.Key = groupKey(groupMeta, key, label)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: aggregate %s: %v", models.ErrAggregation, q.Entity, err)
	}
	return out, nil
}

func groupKey(meta datasource.FieldMeta, key, label any) any {
	v := fromColumn(meta, key)
	if meta.Type != datasource.FieldMany2one || v == nil {
		return v
	}
	id := v.(int64)
	ref := datasource.Ref{ID: id, Name: fmt.Sprintf("%s,%d", meta.Relation, id)}
	if name, ok := fromText(label); ok && name != "" {
		ref.Name = name
	}
	return ref
}

// ReadColumns selects the id plus columns, joining related tables to label
// many2one values.
func (s *Store) ReadColumns(ctx context.Context, q datasource.ReadQuery) ([]datasource.Row, error) {
	e, err := s.entity(q.Entity)
	if err != nil {
		return nil, err
	}
	selects := []string{baseAlias + ".id"}
	var joins []string
	labelled := map[string]bool{}
	for i, c := range q.Columns {
		meta, ok := e.fields[c]
		if !ok || !meta.Stored() {
			return nil, datasource.Unresolved(q.Entity, c)
		}
		col := baseAlias + "." + quoteIdent(c)
		selects = append(selects, col)
		if meta.Type == datasource.FieldMany2one && s.hasEntity(meta.Relation) {
			alias := fmt.Sprintf("j%d", i)
			joins = append(joins, fmt.Sprintf(" LEFT JOIN %s AS %s ON %s.id = %s",
				quoteIdent(tableName(meta.Relation)), alias, alias, col))
			selects = append(selects, alias+"."+quoteIdent(datasource.NameField))
			labelled[c] = true
		} else {
			selects = append(selects, "NULL")
		}
	}

	terms, err := datasource.ParseOrder(q.Order)
	if err != nil {
		return nil, err
	}
	orderParts := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := e.fields[t.Field]; !ok {
			return nil, datasource.Unresolved(q.Entity, t.Field)
		}
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		orderParts = append(orderParts, baseAlias+"."+quoteIdent(t.Field)+" "+dir)
	}

	clause, args, err := s.where(e, q.Predicate)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", q.Entity, err)
	}
	stmt := fmt.Sprintf(`SELECT %s FROM %s AS %s%s WHERE %s`,
		strings.Join(selects, ", "), quoteIdent(e.table), baseAlias, strings.Join(joins, ""), clause)
	if len(orderParts) > 0 {
		stmt += " ORDER BY " + strings.Join(orderParts, ", ")
	}
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrAggregation, q.Entity, err)
	}
	defer rows.Close()

	var out []datasource.Row
	for rows.Next() {
		raw := make([]any, 1+2*len(q.Columns))
		ptrs := make([]any, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", models.ErrAggregation, q.Entity, err)
		}
		row := datasource.Row{datasource.IDField: fromColumn(idMeta, raw[0])}
		for i, c := range q.Columns {
			meta := e.fields[c]
			v := raw[1+2*i]
			if meta.Type == datasource.FieldMany2one && labelled[c] {
				row[c] = groupKey(meta, v, raw[2+2*i])
				continue
			}
			if meta.Type == datasource.FieldMany2one {
				row[c] = groupKey(meta, v, nil)
				continue
			}
			row[c] = fromColumn(meta, v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrAggregation, q.Entity, err)
	}
	return out, nil
}
