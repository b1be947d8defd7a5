package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/utils"
)

// OrderHandler serves the caller's order history.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// List returns the caller's orders, newest first, with pagination.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)

	query := h.db.Model(&models.Order{}).Where("user_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Limit(p.Limit).
		Offset(p.Offset).
		Find(&orders).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
		"total":   total,
		"page":    p.Page,
		"limit":   p.Limit,
	})
}

// Get returns one of the caller's orders by its human-readable order id.
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID := c.Params("orderId")
	if orderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order id required")
	}

	var order models.Order
	err := h.db.
		Preload("Items").
		First(&order, "order_id = ? AND user_id = ?", orderID, user.ID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "Order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "order": order})
}
