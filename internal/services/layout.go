package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/repo"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// LayoutManager persists grid moves and resizes coming from the dashboard UI.
type LayoutManager struct {
	blocks      repo.BlockStore
	invalidator Invalidator
	logger      logger.Logger
}

func NewLayoutManager(blocks repo.BlockStore, inv Invalidator, log logger.Logger) *LayoutManager {
	return &LayoutManager{blocks: blocks, invalidator: inv, logger: log}
}

// SaveLayout applies each edit's present fields to its block. Unknown ids are
// skipped, as are grid sizes below one cell. Concurrent saves are last write
// wins per field.
func (m *LayoutManager) SaveLayout(ctx context.Context, edits []models.LayoutEdit) (models.LayoutResult, error) {
	res := models.LayoutResult{Success: true, Message: "Layout saved successfully"}
	var touched []int64

	for _, e := range edits {
		if !hasLayoutFields(e) {
			continue
		}
		b, err := m.blocks.MutateBlock(ctx, e.ID, func(b *models.Block) error {
			applyLayout(b, e, m.logger)
			return nil
		})
		if errors.Is(err, models.ErrNotFound) {
			m.logger.Debug("Layout edit for unknown block skipped", "block_id", e.ID)
			res.Skipped++
			continue
		}
		if err != nil {
			return models.LayoutResult{}, fmt.Errorf("failed to save layout of block %d: %w", e.ID, err)
		}
		res.Applied++
		touched = append(touched, b.ClientActionID)
	}

	if m.invalidator != nil && len(touched) > 0 {
		m.invalidator.Invalidate(ctx, touched...)
	}
	return res, nil
}

func hasLayoutFields(e models.LayoutEdit) bool {
	return e.X != nil || e.Y != nil || e.W != nil || e.H != nil || e.Height != nil
}

func applyLayout(b *models.Block, e models.LayoutEdit, log logger.Logger) {
	if e.X != nil {
		b.X = max(*e.X, 0)
	}
	if e.Y != nil {
		b.Y = max(*e.Y, 0)
	}
	if e.W != nil {
		if *e.W >= 1 {
			b.GridWidth = *e.W
		} else {
			log.Debug("Ignoring grid width below one cell", "block_id", b.ID, "w", *e.W)
		}
	}
	if e.H != nil {
		if *e.H >= 1 {
			b.GridHeight = *e.H
		} else {
			log.Debug("Ignoring grid height below one cell", "block_id", b.ID, "h", *e.H)
		}
	}
	if e.Height != nil {
		b.Height = fmt.Sprintf("%dpx", *e.Height)
	}
}
