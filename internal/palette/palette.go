// Package palette assigns colors and icons to dashboard blocks.
package palette

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// TileColors is the fixed palette new blocks draw their background from.
var TileColors = []string{
	"#1f6abb",
	"#2c9faf",
	"#34a853",
	"#fbbc05",
	"#ea4335",
	"#4285f4",
	"#9c27b0",
	"#ff9800",
	"#795548",
	"#607d8b",
}

// Generate returns count HSL colors with evenly spaced hues.
func Generate(count int) []string {
	if count <= 0 {
		return []string{}
	}
	step := 360.0 / float64(count)
	out := make([]string, count)
	for i := range out {
		hue := int(math.Floor(float64(i)*step)) % 360
		out[i] = fmt.Sprintf("hsl(%d, 70%%, 60%%)", hue)
	}
	return out
}

// RandomTileColor picks a palette color. A nil rng uses the global source.
func RandomTileColor(rng *rand.Rand) string {
	if rng == nil {
		return TileColors[rand.Intn(len(TileColors))]
	}
	return TileColors[rng.Intn(len(TileColors))]
}

var defaultIcons = map[models.BlockType]string{
	models.BlockTypeTile:  "fa-cube",
	models.BlockTypeKPI:   "fa-chart-line",
	models.BlockTypeChart: "fa-chart-bar",
	models.BlockTypeTable: "fa-table",
}

// DefaultIcon returns the icon assigned to a new block of type t.
func DefaultIcon(t models.BlockType) string {
	if icon, ok := defaultIcons[t]; ok {
		return icon
	}
	return "fa-cube"
}
