package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

func TestParse_BlankIsEmpty(t *testing.T) {
	p := NewParser(logger.New("error"))
	for _, in := range []string{"", "   ", "[]", " [ ] "} {
		got := p.Parse(in, Context{})
		assert.True(t, got.IsEmpty(), "input %q", in)
	}
}

func TestParse_MalformedYieldsEmpty(t *testing.T) {
	p := NewParser(logger.New("error"))
	inputs := []string{
		"not a list",
		"[('state', '=', 'done')",
		"{'state': 'done'}",
		"[('state', '=', 'done')] trailing",
		"__import__('os').system('id')",
		"[1, 2]",
		"['|', ('a', '=', 1)]",
		"[('a', '=', undefined_name)]",
		"[('a', '=', 'unterminated)]",
		"('a', '=', 1)",
		"[[]]",
		"['x', 'y']",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			got := p.Parse(in, Context{UserID: 1})
			assert.True(t, got.IsEmpty(), "input %q", in)
		})
		_, err := ParseStrict(in)
		assert.True(t, errors.Is(err, models.ErrParse), "input %q: %v", in, err)
	}
}

func TestParse_SubstitutesPlaceholders(t *testing.T) {
	p := NewParser(logger.New("error"))

	got := p.Parse(`[("user_id","=","%UID")]`, Context{UserID: 7, CompanyID: 3})
	assert.Equal(t, Condition{Field: "user_id", Operator: "=", Value: int64(7)}, got.Root())

	got = p.Parse(`[("company_id", "=", "%COMPANY"), ("state", "=", "done")]`, Context{UserID: 7, CompanyID: 3})
	require.IsType(t, And{}, got.Root())
	and := got.Root().(And)
	require.Len(t, and.Children, 2)
	assert.Equal(t, Condition{Field: "company_id", Operator: "=", Value: int64(3)}, and.Children[0])
	assert.Equal(t, Condition{Field: "state", Operator: "=", Value: "done"}, and.Children[1])
}

func TestParse_SubstitutionOnlyTouchesConditions(t *testing.T) {
	p := NewParser(logger.New("error"))
	got := p.Parse(`[("user_id", "%UID"), ("a", "=", "%UID", "extra")]`, Context{UserID: 7})
	require.IsType(t, And{}, got.Root())
	and := got.Root().(And)
	assert.Equal(t, Term{Items: []any{"user_id", "%UID"}}, and.Children[0])
	assert.Equal(t, Term{Items: []any{"a", "=", "%UID", "extra"}}, and.Children[1])
}

func TestParse_SubstitutesInsideNestedOperators(t *testing.T) {
	p := NewParser(logger.New("error"))
	got := p.Parse(`['|', ('user_id', '=', '%UID'), ('is_public', '=', True)]`, Context{UserID: 9})
	assert.Equal(t, Or{Children: []Node{
		Condition{Field: "user_id", Operator: "=", Value: int64(9)},
		Condition{Field: "is_public", Operator: "=", Value: true},
	}}, got.Root())
}

func TestParseStrict_PrefixOperators(t *testing.T) {
	got, err := ParseStrict(`['|', ('a', '=', 1), ('b', '=', 2.5), '!', ('c', 'in', [1, 2, 3])]`)
	require.NoError(t, err)
	assert.Equal(t, And{Children: []Node{
		Or{Children: []Node{
			Condition{Field: "a", Operator: "=", Value: int64(1)},
			Condition{Field: "b", Operator: "=", Value: 2.5},
		}},
		Not{Child: Condition{Field: "c", Operator: "in", Value: []any{int64(1), int64(2), int64(3)}}},
	}}, got.Root())
}

func TestParseStrict_NestedListsAreConjunctions(t *testing.T) {
	got, err := ParseStrict(`[[('a', '=', 1), ('b', '=', None)], ["c", "!=", False],]`)
	require.NoError(t, err)
	assert.Equal(t, And{Children: []Node{
		Condition{Field: "a", Operator: "=", Value: int64(1)},
		Condition{Field: "b", Operator: "=", Value: nil},
		Condition{Field: "c", Operator: "!=", Value: false},
	}}, got.Root())
}

func TestAndOf_PreservesOrSubtrees(t *testing.T) {
	stored, err := ParseStrict(`['|', ('state', '=', 'draft'), ('state', '=', 'done')]`)
	require.NoError(t, err)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)

	merged := AndOf(stored, DateRange("create_date", start, end))
	require.IsType(t, And{}, merged.Root())
	and := merged.Root().(And)
	require.Len(t, and.Children, 3)
	assert.IsType(t, Or{}, and.Children[0])

	// The OR must still apply: a draft record outside the range is excluded,
	// a cancelled record inside the range too.
	ok, err := Matches(merged, Record{"state": "draft", "create_date": "2024-01-10 10:00:00"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Matches(merged, Record{"state": "cancel", "create_date": "2024-01-10 10:00:00"})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = Matches(merged, Record{"state": "done", "create_date": "2024-02-10 10:00:00"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAndOf_EmptyOperands(t *testing.T) {
	assert.True(t, AndOf().IsEmpty())
	assert.True(t, AndOf(Empty(), Empty()).IsEmpty())
	c := Cond("a", "=", int64(1))
	assert.Equal(t, c, AndOf(Empty(), c))
}

func TestString_RoundTrips(t *testing.T) {
	inputs := []string{
		`[('a', '=', 1)]`,
		`[('a', '=', 'x'), '|', ('b', '>', 2.5), '!', ('c', 'in', [1, 2])]`,
		`['&', ('a', '=', True), ('b', '=', None)]`,
		`[('name', 'ilike', 'it\'s')]`,
	}
	for _, in := range inputs {
		p, err := ParseStrict(in)
		require.NoError(t, err, in)
		again, err := ParseStrict(p.String())
		require.NoError(t, err, p.String())
		assert.Equal(t, p, again, in)
	}
}

func TestPredicate_Fields(t *testing.T) {
	p, err := ParseStrict(`[('a', '=', 1), '|', ('b', '=', 2), ('a', '>', 0)]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.Fields())
}
