package repo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

const sampleSeed = `
entities:
  - name: res.partner
    fields:
      - {name: name, type: char}
    rows:
      - {name: Azure}
  - name: sale.order
    display_name: Sales Order
    fields:
      - {name: name, type: char}
      - {name: amount_total, type: monetary, display_name: Total}
      - {name: partner_id, type: many2one, relation: res.partner}
    rows:
      - {name: SO1, amount_total: 120.5, partner_id: 1}
menus:
  - name: Sales
    sequence: 5
    blocks:
      - name: Revenue
        type: kpi
        model: sale.order
        operation: sum
        measured_field: amount_total
        target_value: 1000
        x: 0
        y: 0
        w: 3
        h: 2
`

func TestParseSeed(t *testing.T) {
	s, err := ParseSeed([]byte(sampleSeed))
	require.NoError(t, err)
	require.Len(t, s.Entities, 2)
	assert.Equal(t, "sale.order", s.Entities[1].Name)
	assert.Equal(t, datasource.FieldMonetary, s.Entities[1].Fields[1].Type)
	rows := s.Entities[1].DataRows()
	require.Len(t, rows, 1)
	assert.Equal(t, 120.5, rows[0]["amount_total"])

	require.Len(t, s.Menus, 1)
	require.Len(t, s.Menus[0].Blocks, 1)
	b := s.Menus[0].Blocks[0]
	assert.Equal(t, models.BlockTypeKPI, b.Type)
	assert.Equal(t, models.OperationSum, b.Operation)
	assert.Equal(t, "sale.order", b.Model)
	assert.Equal(t, 3, b.GridWidth)
	assert.Equal(t, 1000.0, b.TargetValue)
}

func TestParseSeed_Invalid(t *testing.T) {
	_, err := ParseSeed([]byte("entities: [{name: 'bad name', fields: []}]"))
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = ParseSeed([]byte("entities: {"))
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = ParseSeed([]byte("menus: [{sequence: 1}]"))
	assert.True(t, errors.Is(err, models.ErrValidation))
}
