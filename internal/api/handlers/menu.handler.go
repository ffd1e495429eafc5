package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/services"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// MenuHandler manages dashboard menus and their generated actions.
type MenuHandler struct {
	menus  *services.MenuManager
	logger logger.Logger
}

func NewMenuHandler(menus *services.MenuManager, log logger.Logger) *MenuHandler {
	return &MenuHandler{menus: menus, logger: log}
}

// @Router /api/v1/menus [get]
func (h *MenuHandler) List(c *gin.Context) {
	menus, err := h.menus.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, menus)
}

// @Router /api/v1/menus [post]
func (h *MenuHandler) Create(c *gin.Context) {
	var in models.DashboardMenu
	if err := bindJSON(c, &in); err != nil {
		_ = c.Error(err)
		return
	}
	m, err := h.menus.Create(c.Request.Context(), &in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// @Router /api/v1/menus/{id} [put]
func (h *MenuHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var patch models.MenuPatch
	if err := bindJSON(c, &patch); err != nil {
		_ = c.Error(err)
		return
	}
	m, err := h.menus.Update(c.Request.Context(), id, patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Router /api/v1/menus/{id} [delete]
func (h *MenuHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.menus.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
