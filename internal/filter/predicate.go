// Package filter implements the declarative domain filter of dashboard blocks.
//
// A filter is a literal list of (field, operator, value) conditions. Entries
// are joined by AND unless a prefix operator ("|", "&", "!") combines the
// terms that follow it:
//
//	[("state", "=", "done"), "|", ("user_id", "=", "%UID"), ("public", "=", True)]
//
// The grammar is deliberately small: only literals are accepted, nothing is
// ever evaluated as code.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Placeholder values rewritten at parse time.
const (
	PlaceholderUser    = "%UID"
	PlaceholderCompany = "%COMPANY"
)

// TimeLayout is the textual form of time values inside predicates.
const TimeLayout = "2006-01-02 15:04:05"

// Node is an element of a predicate tree.
type Node interface {
	node()
}

// Condition is a (field, operator, value) leaf.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// And matches when every child matches.
type And struct {
	Children []Node
}

// Or matches when at least one child matches.
type Or struct {
	Children []Node
}

// Not negates its child.
type Not struct {
	Child Node
}

// Term is a tuple-shaped entry that is not a 3-element condition. It is kept
// verbatim and rejected by the query layer.
type Term struct {
	Items []any
}

func (Condition) node() {}
func (And) node()       {}
func (Or) node()        {}
func (Not) node()       {}
func (Term) node()      {}

// Context carries the values substituted for placeholders.
type Context struct {
	UserID    int64
	CompanyID int64
}

// Predicate is a parsed filter. The zero value is the empty predicate, which
// matches every record.
type Predicate struct {
	root Node
}

// Empty returns the predicate that matches everything.
func Empty() Predicate { return Predicate{} }

// Root returns the top node, nil for the empty predicate.
func (p Predicate) Root() Node { return p.root }

// IsEmpty reports whether p matches everything.
func (p Predicate) IsEmpty() bool { return p.root == nil }

// Cond builds a single-condition predicate.
func Cond(field, op string, value any) Predicate {
	return Predicate{root: Condition{Field: field, Operator: op, Value: value}}
}

// AndOf combines predicates with AND semantics. Empty operands are dropped and
// nested ANDs are flattened; OR and NOT sub-trees are kept intact.
func AndOf(preds ...Predicate) Predicate {
	var children []Node
	for _, p := range preds {
		switch n := p.root.(type) {
		case nil:
		case And:
			children = append(children, n.Children...)
		default:
			children = append(children, n)
		}
	}
	switch len(children) {
	case 0:
		return Empty()
	case 1:
		return Predicate{root: children[0]}
	}
	return Predicate{root: And{Children: children}}
}

// DateRange restricts field to [start, end].
func DateRange(field string, start, end time.Time) Predicate {
	return AndOf(Cond(field, ">=", start), Cond(field, "<=", end))
}

// Substitute rewrites %UID and %COMPANY values of 3-element conditions.
func Substitute(p Predicate, ctx Context) Predicate {
	if p.root == nil {
		return p
	}
	return Predicate{root: substitute(p.root, ctx)}
}

func substitute(n Node, ctx Context) Node {
	switch x := n.(type) {
	case Condition:
		if s, ok := x.Value.(string); ok {
			switch s {
			case PlaceholderUser:
				x.Value = ctx.UserID
			case PlaceholderCompany:
				x.Value = ctx.CompanyID
			}
		}
		return x
	case And:
		out := make([]Node, len(x.Children))
		for i, c := range x.Children {
			out[i] = substitute(c, ctx)
		}
		return And{Children: out}
	case Or:
		out := make([]Node, len(x.Children))
		for i, c := range x.Children {
			out[i] = substitute(c, ctx)
		}
		return Or{Children: out}
	case Not:
		return Not{Child: substitute(x.Child, ctx)}
	}
	return n
}

// Fields returns the distinct field names referenced by conditions of p.
func (p Predicate) Fields() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch x := n.(type) {
		case Condition:
			if !seen[x.Field] {
				seen[x.Field] = true
				out = append(out, x.Field)
			}
		case And:
			for _, c := range x.Children {
				walk(c)
			}
		case Or:
			for _, c := range x.Children {
				walk(c)
			}
		case Not:
			walk(x.Child)
		}
	}
	if p.root != nil {
		walk(p.root)
	}
	return out
}

// String renders p back into filter syntax using prefix operators. The output
// parses to an equivalent predicate.
func (p Predicate) String() string {
	if p.root == nil {
		return "[]"
	}
	var parts []string
	if a, ok := p.root.(And); ok {
		for _, c := range a.Children {
			parts = append(parts, renderNode(c)...)
		}
	} else {
		parts = renderNode(p.root)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func renderNode(n Node) []string {
	switch x := n.(type) {
	case Condition:
		return []string{fmt.Sprintf("(%s, %s, %s)", quote(x.Field), quote(x.Operator), renderValue(x.Value))}
	case Term:
		items := make([]string, len(x.Items))
		for i, it := range x.Items {
			items[i] = renderValue(it)
		}
		if len(items) == 1 {
			return []string{"(" + items[0] + ",)"}
		}
		return []string{"(" + strings.Join(items, ", ") + ")"}
	case Not:
		return append([]string{quote("!")}, renderNode(x.Child)...)
	case And:
		return renderNary("&", x.Children)
	case Or:
		return renderNary("|", x.Children)
	}
	return nil
}

func renderNary(op string, children []Node) []string {
	var out []string
	for i := 0; i < len(children)-1; i++ {
		out = append(out, quote(op))
	}
	for _, c := range children {
		out = append(out, renderNode(c)...)
	}
	return out
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return quote(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return quote(x.Format(TimeLayout))
	case []any:
		items := make([]string, len(x))
		for i, it := range x {
			items[i] = renderValue(it)
		}
		return "[" + strings.Join(items, ", ") + "]"
	}
	return quote(fmt.Sprint(v))
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`)
	return "'" + r.Replace(s) + "'"
}
