package models

import "time"

// GridPosition is a block's cell in the dashboard grid.
type GridPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// BlockColors are the three color attributes of a block.
type BlockColors struct {
	Background string `json:"background"`
	Text       string `json:"text"`
	Icon       string `json:"icon"`
}

// BlockLayout is the CSS size of a block.
type BlockLayout struct {
	Height string `json:"height"`
	Width  string `json:"width"`
}

// BlockConfig is the render configuration sent to the UI. Type specific
// fields are omitted when they do not apply.
type BlockConfig struct {
	Colors BlockColors `json:"colors"`
	Layout BlockLayout `json:"layout"`

	// chart
	ChartType  ChartType `json:"chart_type,omitempty"`
	GroupBy    *string   `json:"group_by,omitempty"`
	ShowLegend bool      `json:"show_legend,omitempty"`
	ShowGrid   bool      `json:"show_grid,omitempty"`

	// tile / kpi
	Icon        string      `json:"icon,omitempty"`
	IconSize    IconSize    `json:"icon_size,omitempty"`
	ShowTrend   *bool       `json:"show_trend,omitempty"`
	TrendPeriod TrendPeriod `json:"trend_period,omitempty"`

	// table
	Columns    []string `json:"columns,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Pagination *bool    `json:"pagination,omitempty"`
}

// TableData is the payload of a table block.
type TableData struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
}

// ChartDataset is one series of a chart block.
type ChartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
}

// ChartData is the payload of a chart block: parallel label/value arrays.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
	NoData   bool           `json:"no_data,omitempty"`
}

// TileData is the payload of tile and kpi blocks.
type TileData struct {
	Value           float64 `json:"value"`
	FormattedValue  string  `json:"formatted_value"`
	PreviousValue   float64 `json:"previous_value"`
	TargetValue     float64 `json:"target_value"`
	FormattedTarget string  `json:"formatted_target"`
	Trend           float64 `json:"trend"`
	TrendDirection  string  `json:"trend_direction"`
	Achievement     float64 `json:"achievement"`
}

// BlockResult is the resolved, render-ready form of one block.
type BlockResult struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Type         BlockType     `json:"type"`
	ModelName    string        `json:"model_name,omitempty"`
	Active       bool          `json:"active"`
	GridPosition *GridPosition `json:"grid_position,omitempty"`
	Config       *BlockConfig  `json:"config"`
	Data         any           `json:"data"`
	LastUpdate   *string       `json:"last_update"`
	Error        *string       `json:"error"`
}

// DateRange restricts block data to records created inside [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LayoutEdit is a partial position/size update for one block. Nil fields are
// not applied.
type LayoutEdit struct {
	ID     int64 `json:"id"`
	X      *int  `json:"x,omitempty"`
	Y      *int  `json:"y,omitempty"`
	W      *int  `json:"w,omitempty"`
	H      *int  `json:"h,omitempty"`
	Height *int  `json:"height,omitempty"`
}

// LayoutResult is returned by the layout save operation.
type LayoutResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
}

// Notification is the payload of manual actions such as refresh.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}
