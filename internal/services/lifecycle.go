package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/config"
	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/palette"
	"github.com/platformbuilds/mirador-dashboards/internal/repo"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// BlockManager creates, edits and removes blocks and keeps their derived
// value current.
type BlockManager struct {
	blocks      repo.BlockStore
	menus       repo.MenuStore
	ds          datasource.DataSource
	values      *ValueComputer
	settings    *SettingsStore
	invalidator Invalidator
	logger      logger.Logger

	rng *rand.Rand
	now func() time.Time
}

func NewBlockManager(
	blocks repo.BlockStore,
	menus repo.MenuStore,
	ds datasource.DataSource,
	values *ValueComputer,
	settings *SettingsStore,
	inv Invalidator,
	log logger.Logger,
) *BlockManager {
	return &BlockManager{
		blocks:      blocks,
		menus:       menus,
		ds:          ds,
		values:      values,
		settings:    settings,
		invalidator: inv,
		logger:      log,
		now:         time.Now,
	}
}

// Create stores a new block owned by the caller. Missing visual fields get
// defaults: a palette color, a type icon, the default chart type.
func (m *BlockManager) Create(ctx context.Context, id models.Identity, in *models.Block) (*models.Block, error) {
	if in == nil {
		return nil, models.Validationf("block is required")
	}
	b := in.Clone()
	b.ID = 0
	b.Active = true
	if b.OwnerID == 0 {
		b.OwnerID = id.UserID
	}
	settings := m.settings.Get()
	m.applyCreateDefaults(b, settings)

	if err := m.checkQuota(ctx, b.OwnerID, settings); err != nil {
		return nil, err
	}
	if err := m.checkAction(ctx, b.ClientActionID); err != nil {
		return nil, err
	}
	if m.relationalMeasure(ctx, b) {
		b.Operation = models.OperationCount
	}
	if err := validateBlock(b); err != nil {
		return nil, err
	}

	b.RecordValue = m.values.RecordValue(ctx, b, id)
	b.LastUpdate = m.now().UTC()

	created, err := m.blocks.CreateBlock(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to create block: %w", err)
	}
	m.invalidate(ctx, created.ClientActionID)
	m.logger.Info("Block created", "block_id", created.ID, "type", created.Type, "owner_id", created.OwnerID)
	return created, nil
}

func (m *BlockManager) applyCreateDefaults(b *models.Block, s config.DashboardSettings) {
	if b.Type == "" {
		b.Type = models.BlockTypeTile
	}
	if b.Operation == "" {
		b.Operation = models.OperationCount
	}
	if b.Visibility == "" {
		b.Visibility = models.VisibilityPrivate
	}
	if b.Sequence == 0 {
		b.Sequence = models.DefaultSequence
	}
	if b.TileColor == "" {
		if s.RandomTileColor {
			b.TileColor = palette.RandomTileColor(m.rng)
		} else {
			b.TileColor = s.DefaultTileColor
		}
	}
	if b.TextColor == "" {
		b.TextColor = s.DefaultTextColor
	}
	if b.IconColor == "" {
		b.IconColor = models.DefaultIconColor
	}
	if b.Icon == "" && b.Type.IsTileLike() {
		b.Icon = palette.DefaultIcon(b.Type)
	}
	if b.IconSize == "" {
		b.IconSize = models.IconMedium
	}
	if b.ChartType == "" && b.Type == models.BlockTypeChart {
		b.ChartType = models.ChartType(s.DefaultChartType)
	}
	if b.TrendPeriod == "" {
		b.TrendPeriod = models.TrendMonth
	}
	if b.Height == "" {
		b.Height = models.DefaultHeight
	}
	if b.Width == "" {
		b.Width = models.DefaultWidth
	}
	if b.GridWidth == 0 {
		b.GridWidth = 1
	}
	if b.GridHeight == 0 {
		b.GridHeight = 1
	}
	if b.TableLimit == 0 {
		b.TableLimit = models.DefaultTableLimit
	}
}

func (m *BlockManager) checkQuota(ctx context.Context, ownerID int64, s config.DashboardSettings) error {
	if ownerID == 0 || s.MaxBlocksPerUser <= 0 {
		return nil
	}
	owned, err := m.blocks.ListBlocks(ctx, repo.BlockQuery{OwnerID: ownerID})
	if err != nil {
		return err
	}
	if len(owned) >= s.MaxBlocksPerUser {
		return models.Validationf("user %d already has the maximum of %d blocks", ownerID, s.MaxBlocksPerUser)
	}
	return nil
}

func (m *BlockManager) checkAction(ctx context.Context, actionID int64) error {
	if actionID == 0 {
		return nil
	}
	if _, err := m.menus.GetAction(ctx, actionID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Validationf("dashboard action %d does not exist", actionID)
		}
		return err
	}
	return nil
}

// relationalMeasure reports whether the measured field of b is relational,
// in which case only count makes sense.
func (m *BlockManager) relationalMeasure(ctx context.Context, b *models.Block) bool {
	if b.Model == "" || b.MeasuredField == "" {
		return false
	}
	meta, err := m.ds.ResolveFieldMeta(ctx, b.Model, b.MeasuredField)
	if err != nil {
		return false
	}
	return meta.Type.Relational()
}

func (m *BlockManager) Get(ctx context.Context, id int64) (*models.Block, error) {
	return m.blocks.GetBlock(ctx, id)
}

// Update applies patch. Changing the type or the entity first resets every
// entity-scoped field; fields set in the same patch are applied after the
// reset. The current value is recomputed when the data source changed.
func (m *BlockManager) Update(ctx context.Context, id models.Identity, blockID int64, patch models.BlockPatch) (*models.Block, error) {
	cur, err := m.blocks.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	settings := m.settings.Get()

	next := cur.Clone()
	applyPatch(next, patch, settings)
	forceCount := patch.MeasuredField != nil && m.relationalMeasure(ctx, next)
	if forceCount {
		next.Operation = models.OperationCount
	}
	if err := validateBlock(next); err != nil {
		return nil, err
	}
	if next.ClientActionID != cur.ClientActionID {
		if err := m.checkAction(ctx, next.ClientActionID); err != nil {
			return nil, err
		}
	}

	recompute := patch.TouchesValue()
	var value float64
	if recompute {
		value = m.values.RecordValue(ctx, next, id)
	}

	updated, err := m.blocks.MutateBlock(ctx, blockID, func(b *models.Block) error {
		applyPatch(b, patch, settings)
		if forceCount {
			b.Operation = models.OperationCount
		}
		if recompute {
			b.RecordValue = value
			b.LastUpdate = m.now().UTC()
		}
		return validateBlock(b)
	})
	if err != nil {
		return nil, err
	}
	m.invalidate(ctx, cur.ClientActionID, updated.ClientActionID)
	return updated, nil
}

// applyPatch copies the set fields of p onto b.
func applyPatch(b *models.Block, p models.BlockPatch, s config.DashboardSettings) {
	typeChanged := p.Type != nil && *p.Type != b.Type
	modelChanged := p.Model != nil && *p.Model != b.Model
	if typeChanged || modelChanged {
		b.ResetDataSource()
	}
	if p.Type != nil {
		b.Type = *p.Type
	}
	if typeChanged {
		applyTypeDefaults(b, s)
	}

	setIf(&b.Name, p.Name)
	setIf(&b.Description, p.Description)
	setIf(&b.Sequence, p.Sequence)
	setIf(&b.Visibility, p.Visibility)
	setIf(&b.Model, p.Model)
	setIf(&b.Filter, p.Filter)
	setIf(&b.GroupBy, p.GroupBy)
	setIf(&b.MeasuredField, p.MeasuredField)
	setIf(&b.Operation, p.Operation)
	setIf(&b.ChartType, p.ChartType)
	setIf(&b.Icon, p.Icon)
	setIf(&b.IconSize, p.IconSize)
	setIf(&b.TileColor, p.TileColor)
	setIf(&b.TextColor, p.TextColor)
	setIf(&b.IconColor, p.IconColor)
	setIf(&b.Height, p.Height)
	setIf(&b.Width, p.Width)
	if p.TableColumns != nil {
		b.TableColumns = append([]string(nil), (*p.TableColumns)...)
	}
	setIf(&b.TableLimit, p.TableLimit)
	setIf(&b.ShowPagination, p.ShowPagination)
	setIf(&b.PrevValue, p.PrevValue)
	setIf(&b.TargetValue, p.TargetValue)
	setIf(&b.ShowTrend, p.ShowTrend)
	setIf(&b.TrendPeriod, p.TrendPeriod)
	setIf(&b.ClientActionID, p.ClientActionID)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// applyTypeDefaults sets the defaults of a block that just changed type.
func applyTypeDefaults(b *models.Block, s config.DashboardSettings) {
	switch {
	case b.Type == models.BlockTypeChart:
		b.ChartType = models.ChartType(s.DefaultChartType)
	case b.Type.IsTileLike():
		if b.Icon == "" {
			b.Icon = palette.DefaultIcon(b.Type)
		}
	case b.Type == models.BlockTypeTable:
		b.TableLimit = models.DefaultTableLimit
	}
}

// validateBlock checks the fields relevant to the block's type. Fields of
// other types may be stale and are not checked.
func validateBlock(b *models.Block) error {
	if strings.TrimSpace(b.Name) == "" {
		return models.Validationf("block name is required")
	}
	if !b.Type.Valid() {
		return models.Validationf("invalid block type %q", b.Type)
	}
	if !b.Operation.Valid() {
		return models.Validationf("invalid operation %q", b.Operation)
	}
	if b.Visibility != models.VisibilityPublic && b.Visibility != models.VisibilityPrivate {
		return models.Validationf("invalid visibility %q", b.Visibility)
	}
	if b.Model != "" && !datasource.ValidName(b.Model) {
		return models.Validationf("invalid model name %q", b.Model)
	}
	for name, c := range map[string]string{"tile": b.TileColor, "text": b.TextColor, "icon": b.IconColor} {
		if c != "" && !models.IsHexColor(c) {
			return models.Validationf("invalid %s color %q", name, c)
		}
	}
	if b.GridWidth < 1 || b.GridHeight < 1 {
		return models.Validationf("grid width and height must be at least 1")
	}
	if b.X < 0 || b.Y < 0 {
		return models.Validationf("grid position must not be negative")
	}

	switch {
	case b.Type == models.BlockTypeChart:
		if b.ChartType != "" && !b.ChartType.Valid() {
			return models.Validationf("invalid chart type %q", b.ChartType)
		}
	case b.Type.IsTileLike():
		if b.TrendPeriod != "" && !b.TrendPeriod.Valid() {
			return models.Validationf("invalid trend period %q", b.TrendPeriod)
		}
		switch b.IconSize {
		case "", models.IconSmall, models.IconMedium, models.IconLarge:
		default:
			return models.Validationf("invalid icon size %q", b.IconSize)
		}
	case b.Type == models.BlockTypeTable:
		if b.TableLimit < 1 {
			return models.Validationf("table limit must be at least 1")
		}
	}
	return nil
}

// Delete removes a block. Its action only loses the block.
func (m *BlockManager) Delete(ctx context.Context, blockID int64) error {
	b, err := m.blocks.GetBlock(ctx, blockID)
	if err != nil {
		return err
	}
	if err := m.blocks.DeleteBlock(ctx, blockID); err != nil {
		return err
	}
	m.invalidate(ctx, b.ClientActionID)
	m.logger.Info("Block deleted", "block_id", blockID)
	return nil
}

// Duplicate copies a block as "<name> (Copy)", one sequence step and one grid
// cell right and down of the original.
func (m *BlockManager) Duplicate(ctx context.Context, id models.Identity, blockID int64) (*models.Block, error) {
	src, err := m.blocks.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	c := src.Clone()
	c.ID = 0
	c.Name = src.Name + " (Copy)"
	c.Sequence = src.Sequence + 1
	c.X = src.X + 1
	c.Y = src.Y + 1
	if id.UserID != 0 {
		c.OwnerID = id.UserID
	}
	if err := m.checkQuota(ctx, c.OwnerID, m.settings.Get()); err != nil {
		return nil, err
	}
	c.LastUpdate = m.now().UTC()

	created, err := m.blocks.CreateBlock(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate block %d: %w", blockID, err)
	}
	m.invalidate(ctx, created.ClientActionID)
	return created, nil
}

// Archive hides a block from dashboards without deleting it.
func (m *BlockManager) Archive(ctx context.Context, blockID int64) (*models.Block, error) {
	return m.setActive(ctx, blockID, false)
}

func (m *BlockManager) Unarchive(ctx context.Context, blockID int64) (*models.Block, error) {
	return m.setActive(ctx, blockID, true)
}

func (m *BlockManager) setActive(ctx context.Context, blockID int64, active bool) (*models.Block, error) {
	b, err := m.blocks.MutateBlock(ctx, blockID, func(b *models.Block) error {
		b.Active = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.invalidate(ctx, b.ClientActionID)
	return b, nil
}

// Refresh recomputes the stored current value of a block.
func (m *BlockManager) Refresh(ctx context.Context, id models.Identity, blockID int64) (models.Notification, error) {
	cur, err := m.blocks.GetBlock(ctx, blockID)
	if err != nil {
		return models.Notification{}, err
	}
	value := m.values.RecordValue(ctx, cur, id)
	b, err := m.blocks.MutateBlock(ctx, blockID, func(b *models.Block) error {
		b.RecordValue = value
		b.LastUpdate = m.now().UTC()
		return nil
	})
	if err != nil {
		return models.Notification{}, err
	}
	m.invalidate(ctx, b.ClientActionID)
	return models.Notification{
		Title:   "Data Refreshed",
		Message: "Dashboard data has been refreshed.",
		Type:    "success",
	}, nil
}

// Search returns the ids of active blocks whose name contains q, ignoring case.
func (m *BlockManager) Search(ctx context.Context, q string) ([]int64, error) {
	blocks, err := m.blocks.ListBlocks(ctx, repo.BlockQuery{NameContains: q, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}
	return ids, nil
}

func (m *BlockManager) invalidate(ctx context.Context, actionIDs ...int64) {
	if m.invalidator != nil {
		m.invalidator.Invalidate(ctx, actionIDs...)
	}
}
