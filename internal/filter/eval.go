package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// Record is a flat field→value view of a stored row.
type Record map[string]any

// Matches evaluates p against rec. The empty predicate matches everything.
func Matches(p Predicate, rec Record) (bool, error) {
	if p.root == nil {
		return true, nil
	}
	return eval(p.root, rec)
}

func eval(n Node, rec Record) (bool, error) {
	switch x := n.(type) {
	case Condition:
		return evalCondition(x, rec)
	case And:
		for _, c := range x.Children {
			ok, err := eval(c, rec)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, c := range x.Children {
			ok, err := eval(c, rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := eval(x.Child, rec)
		return !ok, err
	case Term:
		return false, fmt.Errorf("%w: unsupported filter term %v", models.ErrResolution, x.Items)
	}
	return false, fmt.Errorf("%w: unknown filter node %T", models.ErrResolution, n)
}

func evalCondition(c Condition, rec Record) (bool, error) {
	v, ok := rec[c.Field]
	if !ok {
		return false, fmt.Errorf("%w: field %q not found", models.ErrResolution, c.Field)
	}
	switch strings.ToLower(c.Operator) {
	case "=", "==":
		return Equal(v, c.Value), nil
	case "!=", "<>":
		return !Equal(v, c.Value), nil
	case "<", "<=", ">", ">=":
		cmp, ok := Compare(v, c.Value)
		if !ok {
			return false, nil
		}
		switch c.Operator {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		}
		return cmp >= 0, nil
	case "in", "not in":
		list, ok := c.Value.([]any)
		if !ok {
			list = []any{c.Value}
		}
		found := false
		for _, item := range list {
			if Equal(v, item) {
				found = true
				break
			}
		}
		if strings.EqualFold(c.Operator, "in") {
			return found, nil
		}
		return !found, nil
	case "like", "ilike", "not like", "not ilike", "=like", "=ilike":
		return evalLike(strings.ToLower(c.Operator), v, c.Value)
	}
	return false, fmt.Errorf("%w: unsupported operator %q", models.ErrResolution, c.Operator)
}

func evalLike(op string, v, pattern any) (bool, error) {
	p, ok := pattern.(string)
	if !ok {
		return false, fmt.Errorf("%w: %s expects a string value", models.ErrResolution, op)
	}
	s, ok := v.(string)
	if !ok {
		return strings.HasPrefix(op, "not"), nil
	}
	fold := strings.Contains(op, "ilike")
	if !strings.HasPrefix(op, "=") {
		p = "%" + p + "%"
	}
	matched, err := LikeMatch(p, s, fold)
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(op, "not") {
		return !matched, nil
	}
	return matched, nil
}

// LikeMatch applies a SQL LIKE pattern (% and _ wildcards) to s.
func LikeMatch(pattern, s string, fold bool) (bool, error) {
	var b strings.Builder
	b.WriteString("^")
	if fold {
		b.WriteString("(?is)")
	} else {
		b.WriteString("(?s)")
	}
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false, fmt.Errorf("%w: invalid like pattern: %v", models.ErrResolution, err)
	}
	return re.MatchString(s), nil
}

// Equal compares two filter values. False and None are interchangeable, as a
// missing value is stored as either.
func Equal(a, b any) bool {
	if isFalsy(a) && isFalsy(b) {
		return true
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Equal(tb)
		}
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

// Compare orders two values of compatible kinds. ok is false when they cannot
// be ordered.
func Compare(a, b any) (cmp int, ok bool) {
	if fa, okA := toFloat(a); okA {
		if fb, okB := toFloat(b); okB {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	if ta, okA := toTime(a); okA {
		if tb, okB := toTime(b); okB {
			return ta.Compare(tb), true
		}
	}
	if sa, okA := a.(string); okA {
		if sb, okB := b.(string); okB {
			return strings.Compare(sa, sb), true
		}
	}
	return 0, false
}

func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	}
	return false
}

func toFloat(v any) (float64, bool) {
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

var timeLayouts = []string{TimeLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return ParseTime(x)
	}
	return time.Time{}, false
}

// ParseTime accepts the date and datetime formats used in filters and records.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
