package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-dashboards/internal/api/middleware"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/services"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// DashboardHandler serves the query API the dashboard UI renders from.
type DashboardHandler struct {
	resolver *services.Resolver
	blocks   *services.BlockManager
	layout   *services.LayoutManager
	settings *services.SettingsStore
	logger   logger.Logger
}

func NewDashboardHandler(
	resolver *services.Resolver,
	blocks *services.BlockManager,
	layout *services.LayoutManager,
	settings *services.SettingsStore,
	log logger.Logger,
) *DashboardHandler {
	return &DashboardHandler{resolver: resolver, blocks: blocks, layout: layout, settings: settings, logger: log}
}

// Search returns the ids of active blocks whose name contains q.
// @Router /api/v1/dashboard/search [get]
func (h *DashboardHandler) Search(c *gin.Context) {
	ids, err := h.blocks.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ids)
}

// @Router /api/v1/dashboard/roles [get]
func (h *DashboardHandler) Roles(c *gin.Context) {
	c.JSON(http.StatusOK, services.CheckRoles(middleware.IdentityFrom(c)))
}

// Vals resolves every active block of an action.
// @Router /api/v1/dashboard/actions/{actionId}/vals [get]
func (h *DashboardHandler) Vals(c *gin.Context) {
	actionID, err := idParam(c, "actionId")
	if err != nil {
		_ = c.Error(err)
		return
	}
	dr, err := dateRangeQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	results, err := h.resolver.ResolveAll(c.Request.Context(), actionID, dr, middleware.IdentityFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// SaveLayout applies a batch of grid edits.
// @Router /api/v1/dashboard/layout [post]
func (h *DashboardHandler) SaveLayout(c *gin.Context) {
	var edits []models.LayoutEdit
	if err := bindJSON(c, &edits); err != nil {
		_ = c.Error(err)
		return
	}
	res, err := h.layout.SaveLayout(c.Request.Context(), edits)
	if err != nil {
		h.logger.Error("Layout save failed", "edits", len(edits), "error", err)
		c.JSON(http.StatusOK, models.LayoutResult{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Router /api/v1/dashboard/settings [get]
func (h *DashboardHandler) Settings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Get())
}
