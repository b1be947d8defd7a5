package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/services"
)

// CheckoutHandler maps the checkout endpoints onto CheckoutService.
type CheckoutHandler struct {
	checkout *services.CheckoutService
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(db *gorm.DB, pending *services.PendingStore, gateway services.PaymentGateway) *CheckoutHandler {
	return &CheckoutHandler{checkout: services.NewCheckoutService(db, pending, gateway)}
}

type placeOrderRequest struct {
	CartID            string `json:"cartId"`
	ShippingAddressID string `json:"shippingAddressId"`
	BillingAddressID  string `json:"billingAddressId"`
	SameBilling       bool   `json:"sameBilling"`
	PaymentMethod     string `json:"paymentMethod"`
	OrderNote         string `json:"orderNote"`
}

// PlaceOrder initiates checkout and returns the fields the payment widget
// needs to open.
func (h *CheckoutHandler) PlaceOrder(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req placeOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.checkout.PlaceOrder(c.UserContext(), user.ID, user.Email, services.PlaceOrderInput{
		CartID:            req.CartID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		SameBilling:       req.SameBilling,
		PaymentMethod:     req.PaymentMethod,
		OrderNote:         req.OrderNote,
	})
	if err != nil {
		return checkoutErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success":            true,
		"razorpayOrderId":    result.RazorpayOrderID,
		"amount":             result.Amount,
		"currency":           result.Currency,
		"keyId":              result.KeyID,
		"paymentMethod":      result.PaymentMethod,
		"isCodAdvance":       result.IsCodAdvance,
		"codAdvanceAmount":   result.CodAdvanceAmount,
		"codRemainingAmount": result.CodRemainingAmount,
		"totalAmount":        result.TotalAmount,
		"prefill": fiber.Map{
			"name":    result.PrefillName,
			"contact": result.PrefillContact,
			"email":   result.PrefillEmail,
		},
	})
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// VerifyPayment confirms the provider callback and returns the durable order
// id on success.
func (h *CheckoutHandler) VerifyPayment(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req verifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orderID, err := h.checkout.VerifyPayment(c.UserContext(), user.ID, services.VerifyPaymentInput{
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
	})
	if err != nil {
		return checkoutErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"orderId":  orderID,
		"redirect": "/order-success?orderId=" + orderID,
	})
}

// PaymentFailed discards the pending checkout after a declined or dismissed
// payment so the user can start over with the cart intact.
func (h *CheckoutHandler) PaymentFailed(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.checkout.PaymentFailed(c.UserContext(), user.ID); err != nil {
		log.Printf("[Checkout] pending clear failed for user %s: %v", user.ID, err)
	}
	return c.JSON(fiber.Map{"success": true, "redirect": "/checkout"})
}

// checkoutErrorResponse renders a CheckoutError as JSON; anything else
// bubbles up to the global error handler as a 500.
func checkoutErrorResponse(c *fiber.Ctx, err error) error {
	ce, ok := err.(*services.CheckoutError)
	if !ok {
		return err
	}

	body := fiber.Map{"success": false, "error": ce.Message}
	if len(ce.Messages) > 0 {
		body["errors"] = ce.Messages
	}
	if ce.Redirect {
		body["redirect"] = "/checkout"
	}
	return c.Status(ce.Status).JSON(body)
}
