package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"go.uber.org/zap"
)

// ItemHandler serves the caller's own items
type ItemHandler struct {
	itemService service.ItemService
	logger      *zap.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(itemService service.ItemService, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
		logger:      logger,
	}
}

// Create adds an item owned by the caller
// @Summary Create item
// @Tags items
// @Accept json
// @Produce json
// @Param request body dto.ItemRequest true "Item"
// @Success 201 {object} domain.Item
// @Failure 401 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /items [post]
func (h *ItemHandler) Create(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		respondUnauthorized(c, "authentication required")
		return
	}

	var req dto.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	item, err := h.itemService.Create(c.Request.Context(), id.UserID, &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// List returns one page of the caller's items, newest first
// @Summary List items
// @Tags items
// @Produce json
// @Param page query int false "Page, starting at 1"
// @Param per_page query int false "Page size, at most 100"
// @Success 200 {object} dto.ItemListResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /items [get]
func (h *ItemHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		respondUnauthorized(c, "authentication required")
		return
	}

	var query dto.ListItemsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	page, err := h.itemService.List(c.Request.Context(), id.UserID, query.Page, query.PerPage)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get returns one item
// @Summary Get item
// @Tags items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} domain.Item
// @Failure 404 {object} dto.ErrorResponse
// @Router /items/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		respondUnauthorized(c, "authentication required")
		return
	}

	item, err := h.itemService.Get(c.Request.Context(), id.UserID, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// Update replaces an item
// @Summary Replace item
// @Tags items
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param request body dto.ItemRequest true "Item"
// @Success 200 {object} domain.Item
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /items/{id} [put]
func (h *ItemHandler) Update(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		respondUnauthorized(c, "authentication required")
		return
	}

	var req dto.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	item, err := h.itemService.Update(c.Request.Context(), id.UserID, c.Param("id"), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// Delete removes an item
// @Summary Delete item
// @Tags items
// @Param id path string true "Item ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /items/{id} [delete]
func (h *ItemHandler) Delete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		respondUnauthorized(c, "authentication required")
		return
	}

	if err := h.itemService.Delete(c.Request.Context(), id.UserID, c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
