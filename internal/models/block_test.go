package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBlockDecode_ShowTrendDefaultsTrue(t *testing.T) {
	var b Block
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Revenue","type":"kpi"}`), &b))
	assert.True(t, b.ShowTrend)
	assert.Equal(t, "Revenue", b.Name)
	assert.Equal(t, BlockTypeKPI, b.Type)

	b = Block{}
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Revenue","show_trend":false}`), &b))
	assert.False(t, b.ShowTrend)

	b = Block{}
	require.NoError(t, yaml.Unmarshal([]byte("name: Leads\ntype: tile\n"), &b))
	assert.True(t, b.ShowTrend)

	b = Block{}
	require.NoError(t, yaml.Unmarshal([]byte("name: Leads\nshow_trend: false\n"), &b))
	assert.False(t, b.ShowTrend)
}

func TestBlockDecode_StoredPayloadRoundTrips(t *testing.T) {
	in := Block{ID: 3, Name: "Quiet", Type: BlockTypeTile, ShowTrend: false, TableColumns: []string{"name"}}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Block
	require.NoError(t, json.Unmarshal(data, &out))
	assert.False(t, out.ShowTrend)
	assert.Equal(t, in.TableColumns, out.TableColumns)
}
