package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-dashboards/internal/api/middleware"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/services"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// BlockHandler exposes block lifecycle operations.
type BlockHandler struct {
	blocks *services.BlockManager
	logger logger.Logger
}

func NewBlockHandler(blocks *services.BlockManager, log logger.Logger) *BlockHandler {
	return &BlockHandler{blocks: blocks, logger: log}
}

// @Router /api/v1/blocks [post]
func (h *BlockHandler) Create(c *gin.Context) {
	var in models.Block
	if err := bindJSON(c, &in); err != nil {
		_ = c.Error(err)
		return
	}
	b, err := h.blocks.Create(c.Request.Context(), middleware.IdentityFrom(c), &in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// @Router /api/v1/blocks/{id} [get]
func (h *BlockHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	b, err := h.blocks.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Update applies a partial update; absent fields are left unchanged.
// @Router /api/v1/blocks/{id} [put]
func (h *BlockHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var patch models.BlockPatch
	if err := bindJSON(c, &patch); err != nil {
		_ = c.Error(err)
		return
	}
	b, err := h.blocks.Update(c.Request.Context(), middleware.IdentityFrom(c), id, patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// @Router /api/v1/blocks/{id} [delete]
func (h *BlockHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.blocks.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Router /api/v1/blocks/{id}/duplicate [post]
func (h *BlockHandler) Duplicate(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	b, err := h.blocks.Duplicate(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// @Router /api/v1/blocks/{id}/archive [post]
func (h *BlockHandler) Archive(c *gin.Context) {
	h.toggle(c, h.blocks.Archive)
}

// @Router /api/v1/blocks/{id}/unarchive [post]
func (h *BlockHandler) Unarchive(c *gin.Context) {
	h.toggle(c, h.blocks.Unarchive)
}

func (h *BlockHandler) toggle(c *gin.Context, fn func(ctx context.Context, id int64) (*models.Block, error)) {
	id, err := idParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	b, err := fn(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Refresh recomputes the stored value of a block.
// @Router /api/v1/blocks/{id}/refresh [post]
func (h *BlockHandler) Refresh(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	n, err := h.blocks.Refresh(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, n)
}
