package services

import (
	"context"
	"errors"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/filter"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/planner"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// ValueComputer computes the single aggregated value of a block from its
// operation, measured field, filter and entity.
type ValueComputer struct {
	planner *planner.Planner
	parser  *filter.Parser
	logger  logger.Logger
}

func NewValueComputer(ds datasource.DataSource, parser *filter.Parser, log logger.Logger) *ValueComputer {
	return &ValueComputer{planner: planner.New(ds), parser: parser, logger: log}
}

// Value runs the block's ungrouped aggregate under pred and reports failures.
func (c *ValueComputer) Value(ctx context.Context, b *models.Block, pred filter.Predicate) (float64, error) {
	if b.Model == "" {
		return 0, errNoModel
	}
	return c.planner.Value(ctx, b.Model, b.Operation, b.MeasuredField, pred)
}

// RecordValue is the stored current value of b. Missing entities or fields
// yield 0 and are logged rather than returned.
func (c *ValueComputer) RecordValue(ctx context.Context, b *models.Block, id models.Identity) float64 {
	if b.Model == "" {
		return 0
	}
	pred := c.parser.Parse(b.Filter, filter.Context{UserID: id.UserID, CompanyID: id.CompanyID})
	v, err := c.Value(ctx, b, pred)
	switch {
	case err == nil:
		return v
	case errors.Is(err, models.ErrResolution):
		c.logger.Warn("Model or field not found for block value", "block", b.Name, "model", b.Model, "error", err)
	default:
		c.logger.Error("Error computing value for block", "block", b.Name, "model", b.Model, "error", err)
	}
	return 0
}
