package models

import (
	"encoding/json"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// BlockType selects the data-fetch branch and which config fields are meaningful.
type BlockType string

const (
	BlockTypeChart BlockType = "chart"
	BlockTypeTile  BlockType = "tile"
	BlockTypeTable BlockType = "table"
	BlockTypeKPI   BlockType = "kpi"
)

// Valid reports whether t is a known block type.
func (t BlockType) Valid() bool {
	switch t {
	case BlockTypeChart, BlockTypeTile, BlockTypeTable, BlockTypeKPI:
		return true
	}
	return false
}

// IsTileLike is true for the tile and kpi types, which share the metrics payload.
func (t BlockType) IsTileLike() bool {
	return t == BlockTypeTile || t == BlockTypeKPI
}

// Operation is the aggregation applied to the measured field.
type Operation string

const (
	OperationSum   Operation = "sum"
	OperationAvg   Operation = "avg"
	OperationCount Operation = "count"
	OperationMin   Operation = "min"
	OperationMax   Operation = "max"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationSum, OperationAvg, OperationCount, OperationMin, OperationMax:
		return true
	}
	return false
}

type ChartType string

const (
	ChartBar       ChartType = "bar"
	ChartLine      ChartType = "line"
	ChartPie       ChartType = "pie"
	ChartDonut     ChartType = "donut"
	ChartRadar     ChartType = "radar"
	ChartPolarArea ChartType = "polarArea"
)

func (c ChartType) Valid() bool {
	switch c {
	case ChartBar, ChartLine, ChartPie, ChartDonut, ChartRadar, ChartPolarArea:
		return true
	}
	return false
}

type IconSize string

const (
	IconSmall  IconSize = "small"
	IconMedium IconSize = "medium"
	IconLarge  IconSize = "large"
)

type TrendPeriod string

const (
	TrendDay   TrendPeriod = "day"
	TrendWeek  TrendPeriod = "week"
	TrendMonth TrendPeriod = "month"
	TrendYear  TrendPeriod = "year"
)

func (p TrendPeriod) Valid() bool {
	switch p {
	case TrendDay, TrendWeek, TrendMonth, TrendYear:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Default visual values applied when a block is created without them.
const (
	DefaultTextColor  = "#171717"
	DefaultIconColor  = "#000000"
	DefaultBackground = "#ffffff"
	DefaultHeight     = "180px"
	DefaultWidth      = "300px"
	DefaultTableLimit = 10
	DefaultSequence   = 10
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// IsHexColor reports whether s is a #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// Block is a single dashboard widget definition.
type Block struct {
	ID          int64      `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Sequence    int        `json:"sequence" yaml:"sequence"`
	Active      bool       `json:"active" yaml:"active"`
	Visibility  Visibility `json:"visibility" yaml:"visibility"`
	OwnerID     int64      `json:"owner_id" yaml:"owner_id"`
	Type        BlockType  `json:"type" yaml:"type"`

	// Data source. Fields are entity-scoped references.
	Model         string    `json:"model_name" yaml:"model"`
	Filter        string    `json:"filter,omitempty" yaml:"filter"`
	GroupBy       string    `json:"group_by,omitempty" yaml:"group_by"`
	MeasuredField string    `json:"measured_field,omitempty" yaml:"measured_field"`
	Operation     Operation `json:"operation" yaml:"operation"`

	// Visual configuration
	ChartType ChartType `json:"chart_type,omitempty" yaml:"chart_type"`
	Icon      string    `json:"icon,omitempty" yaml:"icon"`
	IconSize  IconSize  `json:"icon_size,omitempty" yaml:"icon_size"`
	TileColor string    `json:"tile_color" yaml:"tile_color"`
	TextColor string    `json:"text_color" yaml:"text_color"`
	IconColor string    `json:"icon_color" yaml:"icon_color"`
	Height    string    `json:"height" yaml:"height"`
	Width     string    `json:"width" yaml:"width"`

	// Grid position in grid units
	X          int `json:"x" yaml:"x"`
	Y          int `json:"y" yaml:"y"`
	GridWidth  int `json:"w" yaml:"w"`
	GridHeight int `json:"h" yaml:"h"`

	// Table
	TableColumns   []string `json:"table_columns,omitempty" yaml:"table_columns"`
	TableLimit     int      `json:"table_limit" yaml:"table_limit"`
	ShowPagination bool     `json:"show_pagination" yaml:"show_pagination"`

	// KPI. RecordValue is derived and never user-set.
	RecordValue float64     `json:"record_value" yaml:"-"`
	PrevValue   float64     `json:"prev_value" yaml:"prev_value"`
	TargetValue float64     `json:"target_value" yaml:"target_value"`
	ShowTrend   bool        `json:"show_trend" yaml:"show_trend"`
	TrendPeriod TrendPeriod `json:"trend_period,omitempty" yaml:"trend_period"`

	ClientActionID int64     `json:"client_action_id" yaml:"-"`
	LastUpdate     time.Time `json:"last_update" yaml:"-"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"-"`
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	if b.TableColumns != nil {
		c.TableColumns = append([]string(nil), b.TableColumns...)
	}
	return &c
}

// UnmarshalJSON decodes a block, showing the trend unless the document
// says otherwise.
func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	p := plain{ShowTrend: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Block(p)
	return nil
}

// UnmarshalYAML applies the same ShowTrend default to seed documents.
func (b *Block) UnmarshalYAML(node *yaml.Node) error {
	type plain Block
	p := plain{ShowTrend: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*b = Block(p)
	return nil
}

// ResetDataSource clears every entity-scoped field reference. Used when the
// type or the source entity changes, since old references may not exist on
// the new entity.
func (b *Block) ResetDataSource() {
	b.Operation = OperationCount
	b.MeasuredField = ""
	b.GroupBy = ""
	b.TableColumns = nil
	b.Filter = ""
}

// BlockPatch is a partial update of a block. Nil fields are left untouched.
type BlockPatch struct {
	Name           *string      `json:"name,omitempty"`
	Description    *string      `json:"description,omitempty"`
	Sequence       *int         `json:"sequence,omitempty"`
	Visibility     *Visibility  `json:"visibility,omitempty"`
	Type           *BlockType   `json:"type,omitempty"`
	Model          *string      `json:"model_name,omitempty"`
	Filter         *string      `json:"filter,omitempty"`
	GroupBy        *string      `json:"group_by,omitempty"`
	MeasuredField  *string      `json:"measured_field,omitempty"`
	Operation      *Operation   `json:"operation,omitempty"`
	ChartType      *ChartType   `json:"chart_type,omitempty"`
	Icon           *string      `json:"icon,omitempty"`
	IconSize       *IconSize    `json:"icon_size,omitempty"`
	TileColor      *string      `json:"tile_color,omitempty"`
	TextColor      *string      `json:"text_color,omitempty"`
	IconColor      *string      `json:"icon_color,omitempty"`
	Height         *string      `json:"height,omitempty"`
	Width          *string      `json:"width,omitempty"`
	TableColumns   *[]string    `json:"table_columns,omitempty"`
	TableLimit     *int         `json:"table_limit,omitempty"`
	ShowPagination *bool        `json:"show_pagination,omitempty"`
	PrevValue      *float64     `json:"prev_value,omitempty"`
	TargetValue    *float64     `json:"target_value,omitempty"`
	ShowTrend      *bool        `json:"show_trend,omitempty"`
	TrendPeriod    *TrendPeriod `json:"trend_period,omitempty"`
	ClientActionID *int64       `json:"client_action_id,omitempty"`
}

// TouchesValue reports whether applying p requires the current value to be
// recomputed.
func (p BlockPatch) TouchesValue() bool {
	return p.Model != nil || p.Filter != nil || p.GroupBy != nil ||
		p.MeasuredField != nil || p.Operation != nil || p.Type != nil
}
