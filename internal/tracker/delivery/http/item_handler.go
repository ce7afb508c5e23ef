package http

import (
	"net/http"
	"strconv"
	"time"

	"golang-price-watcher/internal/entity"
	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/internal/tracker/repository"
	"golang-price-watcher/internal/tracker/service"
	"golang-price-watcher/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ItemHandler handles HTTP requests for tracked items. This is the thin
// boundary surface; all reconciliation logic lives in the service layer.
type ItemHandler struct {
	itemRepo  repository.TrackedItemRepository
	priceRepo repository.PriceObservationRepository
	checker   *service.CheckerService
	logger    *logger.Logger
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(itemRepo repository.TrackedItemRepository, priceRepo repository.PriceObservationRepository, checker *service.CheckerService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{itemRepo: itemRepo, priceRepo: priceRepo, checker: checker, logger: log}
}

// RegisterRoutes registers the item routes to the Echo group.
func (h *ItemHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateItem)
	g.GET("", h.GetAllItems)
	g.GET("/:id", h.GetItemByID)
	g.PUT("/:id", h.UpdateItem)
	g.DELETE("/:id", h.DeleteItem)
	g.GET("/:id/history", h.GetHistory)
	g.POST("/:id/check", h.CheckItem)
	g.POST("/:id/confirm-price", h.ConfirmPrice)
}

// CreateItem starts tracking a URL. The first check is staggered uniformly
// across the refresh interval.
func (h *ItemHandler) CreateItem(c echo.Context) error {
	var req dto.CreateItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "url is required"})
	}
	if req.RefreshIntervalSeconds <= 0 {
		req.RefreshIntervalSeconds = 3600
	}

	now := time.Now()
	interval := time.Duration(req.RefreshIntervalSeconds) * time.Second
	nextCheck := service.InitialNextCheck(now, interval)

	item := &entity.TrackedItem{
		UserID:                 req.UserID,
		URL:                    req.URL,
		RefreshIntervalSeconds: req.RefreshIntervalSeconds,
		NextCheckAt:            &nextCheck,
		LastStockStatus:        string(dto.StockStatusUnknown),
		PriceDropThreshold:     req.PriceDropThreshold,
		TargetPrice:            req.TargetPrice,
		DisableAI:              req.DisableAI,
		NotifyBackInStock:      req.NotifyBackInStock,
	}

	if err := h.itemRepo.Create(c.Request().Context(), item); err != nil {
		h.logger.Error("Failed to create tracked item", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create item"})
	}

	return c.JSON(http.StatusCreated, item)
}

// GetAllItems lists every tracked item.
func (h *ItemHandler) GetAllItems(c echo.Context) error {
	items, err := h.itemRepo.GetAll(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list tracked items", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list items"})
	}
	return c.JSON(http.StatusOK, items)
}

// GetItemByID fetches a single tracked item.
func (h *ItemHandler) GetItemByID(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid item ID"})
	}

	item, err := h.itemRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Item not found"})
		}
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, item)
}

// UpdateItem mutates tracking settings field-by-field.
func (h *ItemHandler) UpdateItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid item ID"})
	}

	var req dto.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	fields := map[string]interface{}{}
	if req.RefreshIntervalSeconds != nil {
		fields["refresh_interval_seconds"] = *req.RefreshIntervalSeconds
	}
	if req.PriceDropThreshold != nil {
		fields["price_drop_threshold"] = *req.PriceDropThreshold
	}
	if req.TargetPrice != nil {
		fields["target_price"] = *req.TargetPrice
	}
	if req.DisableAI != nil {
		fields["disable_ai"] = *req.DisableAI
	}
	if req.Paused != nil {
		fields["paused"] = *req.Paused
	}
	if req.NotifyBackInStock != nil {
		fields["notify_back_in_stock"] = *req.NotifyBackInStock
	}

	if err := h.itemRepo.UpdateFields(c.Request().Context(), id, fields); err != nil {
		h.logger.Error("Failed to update tracked item", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update item"})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteItem stops tracking and cascades the item's history.
func (h *ItemHandler) DeleteItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid item ID"})
	}

	if err := h.itemRepo.Delete(c.Request().Context(), id); err != nil {
		if repository.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Item not found"})
		}
		h.logger.Error("Failed to delete tracked item", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete item"})
	}
	return c.NoContent(http.StatusNoContent)
}

// GetHistory returns the item's recorded price observations, newest first.
func (h *ItemHandler) GetHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid item ID"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	history, err := h.priceRepo.GetHistory(c.Request().Context(), id, limit)
	if err != nil {
		h.logger.Error("Failed to load price history", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load history"})
	}
	return c.JSON(http.StatusOK, history)
}

// CheckItem runs an on-demand check. It shares the scheduled pipeline but
// does not restamp the next scheduled check.
func (h *ItemHandler) CheckItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid item ID"})
	}

	item, err := h.itemRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Item not found"})
		}
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	obs, err := h.checker.CheckItem(c.Request().Context(), item, true)
	if err != nil {
		h.logger.Error("Manual check failed", logger.IntField("item_id", int(id)), logger.ErrorField(err))
		return c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, obs)
}

// ConfirmPrice records the user's confirmed price as the anchor, pinning the
// variant that subsequent automated refreshes must keep following.
func (h *ItemHandler) ConfirmPrice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid item ID"})
	}

	var req dto.ConfirmPriceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "amount must be positive"})
	}

	fields := map[string]interface{}{"anchor_price": req.Amount}
	if req.Method != "" {
		fields["preferred_method"] = req.Method
	}

	if err := h.itemRepo.UpdateFields(c.Request().Context(), id, fields); err != nil {
		h.logger.Error("Failed to confirm price", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to confirm price"})
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}
