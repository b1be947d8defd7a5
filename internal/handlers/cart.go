package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

// CartHandler serves the basket endpoints.
type CartHandler struct {
	db *gorm.DB
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(db *gorm.DB) *CartHandler {
	return &CartHandler{db: db}
}

// Get returns the caller's cart, creating an empty one on first access.
func (h *CartHandler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	cart, err := h.loadOrCreateCart(user.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"cart":       cart,
		"totalItems": cart.TotalItems(),
		"subtotal":   cartSubtotal(cart),
	})
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddItem adds a product line, or bumps the quantity if the line exists.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req addCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	if req.Quantity > services.MaxItemQuantity {
		return fiber.NewError(fiber.StatusBadRequest, "Quantity too large")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", productID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		return err
	}
	if !product.Available() {
		return fiber.NewError(fiber.StatusBadRequest, "Product is not available")
	}

	cart, err := h.loadOrCreateCart(user.ID)
	if err != nil {
		return err
	}

	var item models.CartItem
	err = h.db.First(&item, "cart_id = ? AND product_id = ?", cart.ID, productID).Error
	switch err {
	case nil:
		item.Quantity += req.Quantity
		if item.Quantity > services.MaxItemQuantity {
			item.Quantity = services.MaxItemQuantity
		}
		if err := h.db.Save(&item).Error; err != nil {
			return err
		}
	case gorm.ErrRecordNotFound:
		if len(cart.Items) >= services.MaxCartItems {
			return fiber.NewError(fiber.StatusBadRequest, "Cart exceeds maximum item limit")
		}
		item = models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Name:      product.Title,
			Image:     product.Image,
			Price:     utils.Round2(product.Price),
			Quantity:  req.Quantity,
		}
		if err := h.db.Create(&item).Error; err != nil {
			return err
		}
	default:
		return err
	}

	return c.JSON(fiber.Map{"success": true, "item": item})
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateItem sets a line's quantity. Zero removes the line.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}

	var req updateCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Quantity < 0 || req.Quantity > services.MaxItemQuantity {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid quantity")
	}

	item, err := h.loadOwnedItem(user.ID, itemID)
	if err != nil {
		return err
	}

	if req.Quantity == 0 {
		if err := h.db.Delete(item).Error; err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "removed": true})
	}

	item.Quantity = req.Quantity
	if err := h.db.Save(item).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "item": item})
}

// RemoveItem deletes a line from the caller's cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}

	item, err := h.loadOwnedItem(user.ID, itemID)
	if err != nil {
		return err
	}
	if err := h.db.Delete(item).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *CartHandler) loadOrCreateCart(userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := h.db.Preload("Items").First(&cart, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		cart = models.Cart{UserID: userID}
		if err := h.db.Create(&cart).Error; err != nil {
			return nil, err
		}
		return &cart, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// loadOwnedItem resolves a cart item through the caller's cart so one user
// cannot touch another's lines.
func (h *CartHandler) loadOwnedItem(userID, itemID uuid.UUID) (*models.CartItem, error) {
	var cart models.Cart
	if err := h.db.First(&cart, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "Item not found")
		}
		return nil, err
	}

	var item models.CartItem
	err := h.db.First(&item, "id = ? AND cart_id = ?", itemID, cart.ID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fiber.NewError(fiber.StatusNotFound, "Item not found")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func cartSubtotal(cart *models.Cart) float64 {
	totals := make([]float64, 0, len(cart.Items))
	for _, item := range cart.Items {
		totals = append(totals, utils.LineTotal(utils.Round2(item.Price), item.Quantity))
	}
	return utils.Sum2(totals...)
}
