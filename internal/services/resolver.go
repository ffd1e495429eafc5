package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platformbuilds/mirador-dashboards/internal/config"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/kpi"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
	"github.com/platformbuilds/mirador-dashboards/internal/palette"
	"github.com/platformbuilds/mirador-dashboards/internal/planner"
	"github.com/platformbuilds/mirador-dashboards/internal/repo"
	"github.com/platformbuilds/mirador-dashboards/internal/tracing"
	"github.com/platformbuilds/mirador-dashboards/pkg/cache"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// blockFailure is a block error whose message is shown in the result as is.
type blockFailure struct {
	msg  string
	kind error
}

func (e *blockFailure) Error() string { return e.msg }
func (e *blockFailure) Unwrap() error { return e.kind }

var (
	errNoModel   = &blockFailure{msg: "No model selected", kind: models.ErrResolution}
	errNoColumns = &blockFailure{msg: "No columns selected for table", kind: models.ErrResolution}
	errNoGroupBy = &blockFailure{msg: "No group by field selected for chart", kind: models.ErrResolution}
)

// Resolver turns the active blocks of a dashboard action into render-ready
// results. A failing block only marks its own result.
type Resolver struct {
	blocks   repo.BlockStore
	ds       datasource.DataSource
	planner  *planner.Planner
	parser   *filter.Parser
	values   *ValueComputer
	valkey   cache.ValkeyCluster
	settings *SettingsStore
	tracer   *tracing.DashboardTracer
	logger   logger.Logger
}

// NewResolver wires a resolver. valkey may be nil to disable result caching.
func NewResolver(
	blocks repo.BlockStore,
	ds datasource.DataSource,
	parser *filter.Parser,
	valkey cache.ValkeyCluster,
	settings *SettingsStore,
	tracer *tracing.DashboardTracer,
	log logger.Logger,
) *Resolver {
	return &Resolver{
		blocks:   blocks,
		ds:       ds,
		planner:  planner.New(ds),
		parser:   parser,
		values:   NewValueComputer(ds, parser, log),
		valkey:   valkey,
		settings: settings,
		tracer:   tracer,
		logger:   log,
	}
}

// ResolveAll resolves every active block of actionID in grid order (y, then
// x). dr, when set, restricts every block to records inside the range.
func (r *Resolver) ResolveAll(ctx context.Context, actionID int64, dr *models.DateRange, id models.Identity) ([]models.BlockResult, error) {
	start := time.Now()
	ctx, span := r.tracer.StartResolveSpan(ctx, actionID, dr != nil)
	defer span.End()

	settings := r.settings.Get()
	cacheKey := ""
	if r.valkey != nil && settings.CacheTTL() > 0 {
		cacheKey = r.cacheKey(ctx, actionID, dr, id)
		if cached, ok := r.cachedResults(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	blocks, err := r.blocks.ListBlocks(ctx, repo.BlockQuery{ActionID: actionID, ActiveOnly: true})
	if err != nil {
		r.tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to list blocks of action %d: %w", actionID, err)
	}
	sortByGrid(blocks)

	results := make([]models.BlockResult, len(blocks))
	var g errgroup.Group
	g.SetLimit(settings.ResolveConcurrency)
	for i, b := range blocks {
		g.Go(func() error {
			results[i] = r.resolveBlock(ctx, b, dr, id, settings)
			return nil
		})
	}
	_ = g.Wait()

	if cacheKey != "" {
		if err := r.valkey.Set(ctx, cacheKey, results, settings.CacheTTL()); err != nil {
			r.logger.Warn("Failed to cache dashboard values", "action_id", actionID, "error", err)
		}
	}

	monitoring.RecordDashboardResolution(time.Since(start))
	r.logger.Debug("Dashboard resolved", "action_id", actionID, "blocks", len(results), "duration", time.Since(start))
	return results, nil
}

// sortByGrid orders blocks by row, then column. Ties keep id order.
func sortByGrid(blocks []*models.Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.ID < b.ID
	})
}

func (r *Resolver) resolveBlock(ctx context.Context, b *models.Block, dr *models.DateRange, id models.Identity, settings config.DashboardSettings) models.BlockResult {
	start := time.Now()
	log := r.logger.With("block_id", b.ID, "model", b.Model)
	ctx, span := r.tracer.StartBlockSpan(ctx, b.ID, string(b.Type), b.Model)
	defer span.End()

	if settings.BlockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.BlockTimeout)
		defer cancel()
	}

	res := models.BlockResult{
		ID:        b.ID,
		Name:      b.Name,
		Type:      b.Type,
		ModelName: b.Model,
		Active:    b.Active,
		GridPosition: &models.GridPosition{
			X: b.X,
			Y: b.Y,
			W: max(b.GridWidth, 1),
			H: max(b.GridHeight, 1),
		},
		Config:     blockConfig(b),
		LastUpdate: lastUpdate(b),
	}

	data, err := r.blockData(ctx, log, b, dr, id, settings)
	if err != nil {
		berr := &models.BlockError{BlockID: b.ID, Err: err}
		msg := err.Error()
		res.Error = &msg
		res.Data = map[string]any{}
		log.Error("Block resolution failed", "block", b.Name, "kind", berr.Kind(), "error", err)
		r.tracer.RecordError(span, berr)
	} else {
		res.Data = data
	}

	r.tracer.RecordBlockMetrics(span, time.Since(start), models.ErrorKind(err))
	monitoring.RecordBlockResolution(string(b.Type), time.Since(start), err == nil)
	return res
}

// blockData dispatches on the block type. Panics are turned into errors so
// one broken block cannot take the batch down.
func (r *Resolver) blockData(ctx context.Context, log logger.Logger, b *models.Block, dr *models.DateRange, id models.Identity, settings config.DashboardSettings) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic while resolving block: %v", models.ErrAggregation, p)
		}
	}()

	if b.Model == "" {
		return nil, errNoModel
	}
	pred, err := r.predicate(ctx, log, b, dr, id, settings.DateField)
	if err != nil {
		return nil, err
	}

	switch b.Type {
	case models.BlockTypeTable:
		return r.tableData(ctx, b, pred, settings.MaxTableLimit)
	case models.BlockTypeChart:
		return r.chartData(ctx, b, pred)
	default:
		return r.tileData(ctx, b, pred)
	}
}

// predicate parses the block filter and ANDs the date range onto it. The
// range is skipped for entities without the configured date field.
func (r *Resolver) predicate(ctx context.Context, log logger.Logger, b *models.Block, dr *models.DateRange, id models.Identity, dateField string) (filter.Predicate, error) {
	pred := r.parser.Parse(b.Filter, filter.Context{UserID: id.UserID, CompanyID: id.CompanyID})
	if dr == nil {
		return pred, nil
	}
	_, err := r.ds.ResolveFieldMeta(ctx, b.Model, dateField)
	switch {
	case err == nil:
		return filter.AndOf(pred, filter.DateRange(dateField, dr.Start, dr.End)), nil
	case errors.Is(err, models.ErrResolution):
		log.Debug("Date range skipped, field not on model", "field", dateField)
		return pred, nil
	default:
		return filter.Predicate{}, err
	}
}

func (r *Resolver) tableData(ctx context.Context, b *models.Block, pred filter.Predicate, maxLimit int) (*models.TableData, error) {
	if len(b.TableColumns) == 0 {
		return nil, errNoColumns
	}
	limit := b.TableLimit
	if limit < 1 {
		limit = models.DefaultTableLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.ds.ReadColumns(ctx, datasource.ReadQuery{
		Entity:    b.Model,
		Predicate: pred,
		Columns:   b.TableColumns,
		Limit:     limit,
		Order:     datasource.IDField + " desc",
	})
	if err != nil {
		return nil, err
	}
	total, err := r.ds.Count(ctx, b.Model, pred)
	if err != nil {
		return nil, err
	}

	out := &models.TableData{
		Columns: append([]string(nil), b.TableColumns...),
		Rows:    make([]map[string]any, len(rows)),
		Total:   total,
		Limit:   limit,
	}
	for i, row := range rows {
		out.Rows[i] = map[string]any(row)
	}
	return out, nil
}

func (r *Resolver) chartData(ctx context.Context, b *models.Block, pred filter.Predicate) (*models.ChartData, error) {
	if b.GroupBy == "" {
		return nil, errNoGroupBy
	}
	plan, err := r.planner.Plan(ctx, b.Model, b.Operation, b.MeasuredField, b.GroupBy, pred)
	if err != nil {
		return nil, err
	}
	res, err := r.planner.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(res.Points))
	values := make([]float64, len(res.Points))
	for i, p := range res.Points {
		labels[i] = p.Label
		values[i] = p.Value
	}
	return &models.ChartData{
		Labels: labels,
		Datasets: []models.ChartDataset{{
			Label:           b.Name,
			Data:            values,
			BackgroundColor: palette.Generate(len(values)),
		}},
		NoData: res.NoData,
	}, nil
}

func (r *Resolver) tileData(ctx context.Context, b *models.Block, pred filter.Predicate) (*models.TileData, error) {
	value, err := r.values.Value(ctx, b, pred)
	if err != nil {
		return nil, err
	}
	m := kpi.Compute(value, b.PrevValue, b.TargetValue)
	return &models.TileData{
		Value:           m.Value,
		FormattedValue:  m.FormattedValue,
		PreviousValue:   m.Previous,
		TargetValue:     m.Target,
		FormattedTarget: m.FormattedTarget,
		Trend:           m.Trend,
		TrendDirection:  m.TrendDirection,
		Achievement:     m.Achievement,
	}, nil
}

func blockConfig(b *models.Block) *models.BlockConfig {
	cfg := &models.BlockConfig{
		Colors: models.BlockColors{
			Background: orDefault(b.TileColor, models.DefaultBackground),
			Text:       orDefault(b.TextColor, models.DefaultTextColor),
			Icon:       orDefault(b.IconColor, models.DefaultIconColor),
		},
		Layout: models.BlockLayout{
			Height: orDefault(b.Height, models.DefaultHeight),
			Width:  orDefault(b.Width, models.DefaultWidth),
		},
	}

	switch {
	case b.Type == models.BlockTypeChart:
		cfg.ChartType = b.ChartType
		if cfg.ChartType == "" {
			cfg.ChartType = models.ChartBar
		}
		if b.GroupBy != "" {
			g := b.GroupBy
			cfg.GroupBy = &g
		}
		cfg.ShowLegend = true
		cfg.ShowGrid = true
	case b.Type.IsTileLike():
		cfg.Icon = orDefault(b.Icon, palette.DefaultIcon(b.Type))
		cfg.IconSize = b.IconSize
		if cfg.IconSize == "" {
			cfg.IconSize = models.IconMedium
		}
		showTrend := b.ShowTrend
		cfg.ShowTrend = &showTrend
		cfg.TrendPeriod = b.TrendPeriod
	case b.Type == models.BlockTypeTable:
		cfg.Columns = append([]string{}, b.TableColumns...)
		cfg.Limit = b.TableLimit
		if cfg.Limit < 1 {
			cfg.Limit = models.DefaultTableLimit
		}
		pagination := b.ShowPagination
		cfg.Pagination = &pagination
	}
	return cfg
}

func lastUpdate(b *models.Block) *string {
	t := b.LastUpdate
	if t.IsZero() {
		t = b.UpdatedAt
	}
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
