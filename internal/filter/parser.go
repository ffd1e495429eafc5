package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// Prefix operators of the filter syntax.
const (
	opAnd = "&"
	opOr  = "|"
	opNot = "!"
)

// seq is a parsed (...) or [...] literal.
type seq struct {
	items []any
	tuple bool
}

// Parser turns stored filter strings into predicates. Failures are logged and
// degrade to the empty predicate so a broken filter never blocks rendering.
type Parser struct {
	logger logger.Logger
}

func NewParser(l logger.Logger) *Parser {
	return &Parser{logger: l}
}

// Parse parses expr and substitutes placeholders from ctx. It never fails.
func (p *Parser) Parse(expr string, ctx Context) Predicate {
	pred, err := ParseStrict(expr)
	if err != nil {
		monitoring.RecordFilterParseFailure()
		if p.logger != nil {
			p.logger.Warn("Invalid domain filter, using empty predicate", "filter", expr, "error", err)
		}
		return Empty()
	}
	return Substitute(pred, ctx)
}

// ParseStrict parses expr without placeholder substitution and reports
// failures wrapped in models.ErrParse. Blank input is the empty predicate.
func ParseStrict(expr string) (Predicate, error) {
	if strings.TrimSpace(expr) == "" {
		return Empty(), nil
	}
	toks, err := lex(expr)
	if err != nil {
		return Empty(), fmt.Errorf("%w: %v", models.ErrParse, err)
	}
	ps := &literalParser{toks: toks}
	lit, err := ps.parseLiteral()
	if err != nil {
		return Empty(), fmt.Errorf("%w: %v", models.ErrParse, err)
	}
	if t := ps.peek(); t.kind != tokEOF {
		return Empty(), fmt.Errorf("%w: unexpected %s at %d", models.ErrParse, t.kind, t.pos)
	}
	list, ok := lit.(seq)
	if !ok || list.tuple {
		return Empty(), fmt.Errorf("%w: filter must be a list", models.ErrParse)
	}
	root, err := buildDomain(list.items)
	if err != nil {
		return Empty(), fmt.Errorf("%w: %v", models.ErrParse, err)
	}
	return Predicate{root: root}, nil
}

type literalParser struct {
	toks []token
	pos  int
}

func (p *literalParser) peek() token { return p.toks[p.pos] }

func (p *literalParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *literalParser) parseLiteral() (any, error) {
	t := p.next()
	switch t.kind {
	case tokLBrack:
		items, err := p.parseItems(tokRBrack)
		if err != nil {
			return nil, err
		}
		return seq{items: items}, nil
	case tokLParen:
		items, err := p.parseItems(tokRParen)
		if err != nil {
			return nil, err
		}
		return seq{items: items, tuple: true}, nil
	case tokString:
		return t.text, nil
	case tokNumber:
		return parseNumber(t.text)
	case tokIdent:
		switch t.text {
		case "True", "true":
			return true, nil
		case "False", "false":
			return false, nil
		case "None", "null":
			return nil, nil
		}
		return nil, fmt.Errorf("unknown identifier %q at %d", t.text, t.pos)
	}
	return nil, fmt.Errorf("unexpected %s at %d", t.kind, t.pos)
}

// parseItems reads comma separated literals up to the closing token. A
// trailing comma is allowed.
func (p *literalParser) parseItems(closing tokenKind) ([]any, error) {
	var items []any
	for {
		if p.peek().kind == closing {
			p.next()
			return items, nil
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		items = append(items, lit)
		t := p.next()
		switch t.kind {
		case tokComma:
		case closing:
			return items, nil
		default:
			return nil, fmt.Errorf("expected ',' or %s, got %s at %d", closing, t.kind, t.pos)
		}
	}
}

func parseNumber(text string) (any, error) {
	if !strings.ContainsAny(text, ".eE") {
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return f, nil
}

// element is either a prefix operator or an operand node.
type element struct {
	op   string
	node Node
}

// buildDomain interprets list items as a domain: operands joined by AND,
// combined by prefix operators where present.
func buildDomain(items []any) (Node, error) {
	elems := make([]element, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case string:
			if x != opAnd && x != opOr && x != opNot {
				return nil, fmt.Errorf("unexpected bare value %q in domain", x)
			}
			elems = append(elems, element{op: x})
		case seq:
			n, err := buildOperand(x)
			if err != nil {
				return nil, err
			}
			elems = append(elems, element{node: n})
		default:
			return nil, fmt.Errorf("unexpected bare value %v in domain", x)
		}
	}

	var nodes []Node
	pos := 0
	for pos < len(elems) {
		n, next, err := consume(elems, pos)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		pos = next
	}
	return AndOf(predicates(nodes)...).root, nil
}

func predicates(nodes []Node) []Predicate {
	out := make([]Predicate, len(nodes))
	for i, n := range nodes {
		out[i] = Predicate{root: n}
	}
	return out
}

// consume reads one operand starting at pos, recursing into prefix operators.
func consume(elems []element, pos int) (Node, int, error) {
	if pos >= len(elems) {
		return nil, pos, fmt.Errorf("operator is missing an operand")
	}
	e := elems[pos]
	switch e.op {
	case "":
		return e.node, pos + 1, nil
	case opNot:
		child, next, err := consume(elems, pos+1)
		if err != nil {
			return nil, next, err
		}
		return Not{Child: child}, next, nil
	}
	left, next, err := consume(elems, pos+1)
	if err != nil {
		return nil, next, err
	}
	right, next, err := consume(elems, next)
	if err != nil {
		return nil, next, err
	}
	if e.op == opOr {
		return Or{Children: []Node{left, right}}, next, nil
	}
	return And{Children: []Node{left, right}}, next, nil
}

// buildOperand turns a (...) or [...] entry into a condition, a verbatim
// term, or a nested domain.
func buildOperand(s seq) (Node, error) {
	if isCondition(s) {
		return Condition{
			Field:    s.items[0].(string),
			Operator: s.items[1].(string),
			Value:    plain(s.items[2]),
		}, nil
	}
	if s.tuple {
		items := make([]any, len(s.items))
		for i, it := range s.items {
			items[i] = plain(it)
		}
		return Term{Items: items}, nil
	}
	if len(s.items) == 0 {
		return nil, fmt.Errorf("empty nested domain")
	}
	return buildDomain(s.items)
}

// isCondition matches 3-element entries shaped (field, operator, value).
func isCondition(s seq) bool {
	if len(s.items) != 3 {
		return false
	}
	field, ok := s.items[0].(string)
	if !ok || field == opAnd || field == opOr || field == opNot {
		return false
	}
	_, ok = s.items[1].(string)
	return ok
}

// plain converts nested literals into []any values.
func plain(v any) any {
	if s, ok := v.(seq); ok {
		out := make([]any, len(s.items))
		for i, it := range s.items {
			out[i] = plain(it)
		}
		return out
	}
	return v
}
