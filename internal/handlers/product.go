package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/utils"
)

// ProductHandler serves the public catalog endpoints.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// List returns active products, newest first, with pagination.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	query := h.db.Model(&models.Product{}).
		Where("is_active = ? AND is_deleted = ?", true, false)

	if search := utils.SanitizeText(c.Query("search"), 100); search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	err := query.
		Order("created_at DESC").
		Limit(p.Limit).
		Offset(p.Offset).
		Find(&products).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"products": products,
		"total":    total,
		"page":     p.Page,
		"limit":    p.Limit,
	})
}

// Get returns one product by slug.
func (h *ProductHandler) Get(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return fiber.NewError(fiber.StatusBadRequest, "slug required")
	}

	var product models.Product
	err := h.db.First(&product, "slug = ? AND is_active = ? AND is_deleted = ?", slug, true, false).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"product":   product,
		"available": product.Available(),
	})
}
