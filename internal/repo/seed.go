package repo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
)

// SeedEntity declares an entity of the record store and its initial rows.
type SeedEntity struct {
	datasource.EntityDef `yaml:",inline"`
	Rows                 []map[string]any `yaml:"rows"`
}

// SeedMenu is a dashboard menu with the blocks placed on its action.
type SeedMenu struct {
	Name     string          `yaml:"name"`
	Sequence int             `yaml:"sequence"`
	GroupIDs []int64         `yaml:"group_ids"`
	Blocks   []*models.Block `yaml:"blocks"`
}

// Seed is the YAML document imported at startup.
type Seed struct {
	Entities []SeedEntity `yaml:"entities"`
	Menus    []SeedMenu   `yaml:"menus"`
}

// LoadSeed reads and parses a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed parses a seed document and checks its entity declarations.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: invalid seed document: %v", models.ErrValidation, err)
	}
	for _, e := range s.Entities {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	for _, m := range s.Menus {
		if m.Name == "" {
			return nil, models.Validationf("seed menu without a name")
		}
	}
	return &s, nil
}

// DataRows converts the YAML rows of e into data source rows.
func (e SeedEntity) DataRows() []datasource.Row {
	out := make([]datasource.Row, len(e.Rows))
	for i, r := range e.Rows {
		out[i] = datasource.Row(r)
	}
	return out
}
