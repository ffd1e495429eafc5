package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

func TestMatches_Operators(t *testing.T) {
	rec := Record{
		"name":       "Big Order",
		"amount":     int64(150),
		"state":      "done",
		"partner_id": nil,
		"tags":       "urgent",
	}
	cases := []struct {
		expr string
		want bool
	}{
		{`[('amount', '>', 100)]`, true},
		{`[('amount', '<=', 100)]`, false},
		{`[('amount', '=', 150.0)]`, true},
		{`[('state', 'in', ['draft', 'done'])]`, true},
		{`[('state', 'not in', ['draft', 'done'])]`, false},
		{`[('name', 'like', 'Order')]`, true},
		{`[('name', 'like', 'order')]`, false},
		{`[('name', 'ilike', 'order')]`, true},
		{`[('name', 'not ilike', 'order')]`, false},
		{`[('name', '=like', 'Big%')]`, true},
		{`[('partner_id', '=', False)]`, true},
		{`[('partner_id', '!=', False)]`, false},
		{`['!', ('state', '=', 'done')]`, false},
		{`['|', ('state', '=', 'draft'), ('tags', '=', 'urgent')]`, true},
	}
	for _, tc := range cases {
		p, err := ParseStrict(tc.expr)
		require.NoError(t, err, tc.expr)
		got, err := Matches(p, rec)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}
}

func TestMatches_ResolutionErrors(t *testing.T) {
	rec := Record{"a": int64(1)}

	p, err := ParseStrict(`[('missing', '=', 1)]`)
	require.NoError(t, err)
	_, err = Matches(p, rec)
	assert.True(t, errors.Is(err, models.ErrResolution))

	p, err = ParseStrict(`[('a', 'child_of', 1)]`)
	require.NoError(t, err)
	_, err = Matches(p, rec)
	assert.True(t, errors.Is(err, models.ErrResolution))

	p, err = ParseStrict(`[('a', 1)]`)
	require.NoError(t, err)
	_, err = Matches(p, rec)
	assert.True(t, errors.Is(err, models.ErrResolution))
}

func TestMatches_EmptyMatchesAll(t *testing.T) {
	ok, err := Matches(Empty(), Record{})
	require.NoError(t, err)
	assert.True(t, ok)
}
