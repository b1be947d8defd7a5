package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/utils"
)

// Checkout limits.
const (
	MaxCartItems     = 50
	MaxOrderNoteLen  = 500
	MinOrderAmount   = 1.0
	MaxItemQuantity  = 100
	checkoutCurrency = "INR"
)

// CheckoutError is a user-facing checkout failure. Redirect marks failures
// that must send the client back to /checkout.
type CheckoutError struct {
	Status   int
	Message  string
	Messages []string
	Redirect bool
}

func (e *CheckoutError) Error() string {
	return e.Message
}

func failf(status int, format string, args ...interface{}) *CheckoutError {
	return &CheckoutError{Status: status, Message: fmt.Sprintf(format, args...)}
}

func verifyFail(status int, message string) *CheckoutError {
	return &CheckoutError{Status: status, Message: message, Redirect: true}
}

// PlaceOrderInput is the request to initiate checkout.
type PlaceOrderInput struct {
	CartID            string
	ShippingAddressID string
	BillingAddressID  string
	SameBilling       bool
	PaymentMethod     string
	OrderNote         string
}

// PlaceOrderResult is returned to the client to drive the payment UI.
type PlaceOrderResult struct {
	RazorpayOrderID    string
	Amount             int64
	Currency           string
	KeyID              string
	PaymentMethod      string
	IsCodAdvance       bool
	CodAdvanceAmount   float64
	CodRemainingAmount float64
	TotalAmount        float64
	PrefillName        string
	PrefillContact     string
	PrefillEmail       string
}

// VerifyPaymentInput carries the provider's callback parameters.
type VerifyPaymentInput struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string
}

// CheckoutService implements order placement, payment verification and
// abandonment. Pricing is always computed from the product table; the cart
// snapshot and the request body are never trusted for money amounts.
type CheckoutService struct {
	db      *gorm.DB
	pending *PendingStore
	gateway PaymentGateway
	now     func() time.Time
}

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(db *gorm.DB, pending *PendingStore, gateway PaymentGateway) *CheckoutService {
	return &CheckoutService{db: db, pending: pending, gateway: gateway, now: time.Now}
}

// PlaceOrder validates the cart and addresses, prices the order from the
// product table, creates the provider order and stores the pending record.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID uuid.UUID, userEmail string, input PlaceOrderInput) (*PlaceOrderResult, error) {
	cartID, err := uuid.Parse(input.CartID)
	if err != nil {
		return nil, failf(fiber.StatusBadRequest, "Invalid cart reference.")
	}
	shippingID, err := uuid.Parse(input.ShippingAddressID)
	if err != nil {
		return nil, failf(fiber.StatusBadRequest, "Please select a shipping address.")
	}
	if !models.ValidPaymentMethod(input.PaymentMethod) {
		return nil, failf(fiber.StatusBadRequest, "Please select a valid payment method.")
	}

	billingID := shippingID
	if !input.SameBilling {
		billingID, err = uuid.Parse(input.BillingAddressID)
		if err != nil {
			return nil, failf(fiber.StatusBadRequest, "Please select a billing address.")
		}
	}

	note := utils.SanitizeText(input.OrderNote, MaxOrderNoteLen)

	// Addresses must belong to the caller and still be active; this blocks
	// cross-user address injection.
	shippingAddr, err := s.loadOwnedAddress(ctx, shippingID, userID)
	if err != nil {
		return nil, checkoutLookupError(err, "Shipping address not found.")
	}
	billingAddr := shippingAddr
	if billingID != shippingID {
		billingAddr, err = s.loadOwnedAddress(ctx, billingID, userID)
		if err != nil {
			return nil, checkoutLookupError(err, "Billing address not found.")
		}
	}

	var cart models.Cart
	err = s.db.WithContext(ctx).
		Preload("Items").
		First(&cart, "id = ? AND user_id = ?", cartID, userID).Error
	if err != nil {
		return nil, checkoutLookupError(err, "Cart not found.")
	}
	if len(cart.Items) == 0 {
		return nil, failf(fiber.StatusBadRequest, "Your cart is empty.")
	}
	if len(cart.Items) > MaxCartItems {
		return nil, failf(fiber.StatusBadRequest, "Cart exceeds maximum item limit.")
	}

	orderItems, subtotal, lineErrors, err := s.priceCartItems(ctx, cart.Items)
	if err != nil {
		return nil, err
	}
	if len(lineErrors) > 0 {
		// Every failing line is reported at once so the user fixes the cart
		// in one pass. No partial orders.
		return nil, &CheckoutError{
			Status:   fiber.StatusBadRequest,
			Message:  lineErrors[0],
			Messages: lineErrors,
		}
	}
	if len(orderItems) == 0 {
		return nil, failf(fiber.StatusBadRequest, "No valid items in cart.")
	}

	shippingCharge := 0.0
	discount := 0.0
	totalAmount := utils.Sum2(subtotal, shippingCharge, -discount)
	if totalAmount < MinOrderAmount {
		return nil, failf(fiber.StatusBadRequest, "Order amount too low.")
	}

	isCod := input.PaymentMethod == models.PaymentMethodCOD
	var codAdvance, codRemaining float64
	chargeAmount := totalAmount
	if isCod {
		codAdvance, codRemaining = utils.CodSplit(totalAmount)
		chargeAmount = codAdvance
	}

	receipt := fmt.Sprintf("rcpt_%d", s.now().UnixMilli())
	providerOrderID, err := s.gateway.CreateOrder(utils.MinorUnits(chargeAmount), checkoutCurrency, receipt)
	if err != nil {
		log.Printf("[Checkout] provider order create failed: %v", err)
		return nil, verifyFail(fiber.StatusBadGateway, "Payment service unavailable. Please try again.")
	}

	payload := models.Order{
		UserID:          userID,
		Items:           orderItems,
		ShippingAddress: snapshotAddress(shippingAddr),
		BillingAddress:  snapshotAddress(billingAddr),
		Subtotal:        subtotal,
		ShippingCharge:  shippingCharge,
		Discount:        discount,
		TotalAmount:     totalAmount,
		OrderNote:       note,
		CartID:          &cart.ID,
		Payment: models.Payment{
			Method:             input.PaymentMethod,
			Status:             models.PaymentStatusPending,
			IsCodAdvance:       isCod,
			CodAdvanceAmount:   codAdvance,
			CodRemainingAmount: codRemaining,
		},
	}

	pending := &PendingOrder{
		RazorpayOrderID: providerOrderID,
		ChargeAmount:    chargeAmount,
		UserID:          userID.String(),
		Payload:         payload,
	}
	if err := s.pending.Put(ctx, userID, pending); err != nil {
		return nil, errors.Wrap(err, "store pending order")
	}

	return &PlaceOrderResult{
		RazorpayOrderID:    providerOrderID,
		Amount:             utils.MinorUnits(chargeAmount),
		Currency:           checkoutCurrency,
		KeyID:              s.gateway.KeyID(),
		PaymentMethod:      input.PaymentMethod,
		IsCodAdvance:       isCod,
		CodAdvanceAmount:   codAdvance,
		CodRemainingAmount: codRemaining,
		TotalAmount:        totalAmount,
		PrefillName:        shippingAddr.FullName,
		PrefillContact:     shippingAddr.Phone,
		PrefillEmail:       userEmail,
	}, nil
}

// priceCartItems revalidates every cart line against the current product
// state. Prices come from the product record only.
func (s *CheckoutService) priceCartItems(ctx context.Context, items []models.CartItem) ([]models.OrderItem, float64, []string, error) {
	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Find(&products, "id IN ?", productIDs).Error; err != nil {
		return nil, 0, nil, errors.Wrap(err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	var orderItems []models.OrderItem
	var lineErrors []string
	var lineTotals []float64

	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok || product.IsDeleted || !product.IsActive {
			lineErrors = append(lineErrors, "A product in your cart is no longer available.")
			continue
		}
		if !product.InStock || product.Stock < 1 {
			lineErrors = append(lineErrors, fmt.Sprintf("%q is out of stock.", product.Title))
			continue
		}

		qty := item.Quantity
		if qty < 1 || qty > MaxItemQuantity {
			lineErrors = append(lineErrors, fmt.Sprintf("Invalid quantity for %q.", product.Title))
			continue
		}
		if product.Stock < qty {
			lineErrors = append(lineErrors, fmt.Sprintf("Only %d unit(s) of %q available.", product.Stock, product.Title))
			continue
		}

		price := utils.Round2(product.Price)
		if price <= 0 {
			lineErrors = append(lineErrors, fmt.Sprintf("Invalid price for %q.", product.Title))
			continue
		}

		name := item.Name
		if name == "" {
			name = product.Title
		}
		image := item.Image
		if image == "" {
			image = product.Image
		}

		lineTotals = append(lineTotals, utils.LineTotal(price, qty))
		orderItems = append(orderItems, models.OrderItem{
			ProductID: product.ID,
			Name:      utils.SanitizeText(name, 200),
			Image:     image,
			Price:     price,
			Quantity:  qty,
		})
	}

	return orderItems, utils.Sum2(lineTotals...), lineErrors, nil
}

// VerifyPayment validates the provider signature and materializes the
// durable Order exactly once. Every gate fails fast; every failure carries
// the /checkout redirect.
func (s *CheckoutService) VerifyPayment(ctx context.Context, userID uuid.UUID, input VerifyPaymentInput) (string, error) {
	if input.RazorpayOrderID == "" || input.RazorpayPaymentID == "" || input.RazorpaySignature == "" {
		return "", verifyFail(fiber.StatusBadRequest, "Missing payment details.")
	}

	if !s.gateway.VerifySignature(input.RazorpayOrderID, input.RazorpayPaymentID, input.RazorpaySignature) {
		log.Printf("[Checkout] signature mismatch for user %s", userID)
		return "", verifyFail(fiber.StatusBadRequest, "Payment verification failed. Please try again.")
	}

	pending, err := s.pending.Get(ctx, userID)
	if errors.Is(err, ErrNoPendingOrder) {
		// Session record gone. A double submit whose first call already
		// completed lands here: answer idempotently from the order store.
		if existing, findErr := s.findByProviderOrder(ctx, input.RazorpayOrderID); findErr == nil {
			return existing.OrderID, nil
		} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return "", findErr
		}
		return "", verifyFail(fiber.StatusBadRequest, "Your session expired. Please start checkout again.")
	}
	if err != nil {
		return "", errors.Wrap(err, "load pending order")
	}

	if !ConstantTimeEquals(pending.UserID, userID.String()) {
		return "", verifyFail(fiber.StatusForbidden, "Unauthorised.")
	}
	if !ConstantTimeEquals(pending.RazorpayOrderID, input.RazorpayOrderID) {
		return "", verifyFail(fiber.StatusBadRequest, "Order reference mismatch.")
	}
	if pending.Expired(s.now()) {
		return "", verifyFail(fiber.StatusBadRequest, "Checkout session expired. Please start again.")
	}

	// Idempotency: at most one durable Order per provider order. The unique
	// index on payment_razorpay_order_id is the backstop if this check races.
	if existing, findErr := s.findByProviderOrder(ctx, input.RazorpayOrderID); findErr == nil {
		_ = s.pending.Delete(ctx, userID)
		return existing.OrderID, nil
	} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return "", findErr
	}

	order := pending.Payload
	isCod := order.Payment.Method == models.PaymentMethodCOD
	paidAt := s.now()

	order.OrderID = models.NewOrderID()
	order.Status = models.OrderStatusConfirmed
	order.Payment.Status = models.PaymentStatusPaid
	order.Payment.RazorpayOrderID = input.RazorpayOrderID
	order.Payment.RazorpayPaymentID = input.RazorpayPaymentID
	order.Payment.RazorpaySignature = input.RazorpaySignature
	order.Payment.PaidAt = &paidAt
	order.Payment.CodAdvancePaid = isCod

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		// Lost the race against a concurrent verify: the unique index on the
		// provider order id rejected the duplicate. Serve the winner's order.
		if existing, findErr := s.findByProviderOrder(ctx, input.RazorpayOrderID); findErr == nil {
			_ = s.pending.Delete(ctx, userID)
			return existing.OrderID, nil
		}
		return "", errors.Wrap(err, "create order")
	}

	// Cart clear is best-effort: the order is already durable, so a failure
	// here is logged and the response still succeeds.
	if order.CartID != nil {
		if err := s.db.WithContext(ctx).
			Where("cart_id = ?", *order.CartID).
			Delete(&models.CartItem{}).Error; err != nil {
			log.Printf("[Checkout] cart clear failed (non-fatal) for order %s: %v", order.OrderID, err)
		}
	}

	if err := s.pending.Delete(ctx, userID); err != nil {
		log.Printf("[Checkout] pending clear failed (non-fatal) for order %s: %v", order.OrderID, err)
	}

	return order.OrderID, nil
}

// PaymentFailed discards the pending record after a declined or dismissed
// payment. The cart stays intact for retry; no Order is ever created here.
func (s *CheckoutService) PaymentFailed(ctx context.Context, userID uuid.UUID) error {
	return s.pending.Delete(ctx, userID)
}

func (s *CheckoutService) findByProviderOrder(ctx context.Context, providerOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		First(&order, "payment_razorpay_order_id = ?", providerOrderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *CheckoutService) loadOwnedAddress(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := s.db.WithContext(ctx).
		First(&addr, "id = ? AND user_id = ? AND is_active = ?", id, userID, true).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func checkoutLookupError(err error, notFoundMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return failf(fiber.StatusBadRequest, "%s", notFoundMsg)
	}
	return err
}

func snapshotAddress(addr *models.Address) models.AddressSnapshot {
	id := addr.ID
	return models.AddressSnapshot{
		FullName:     utils.SanitizeText(addr.FullName, 100),
		Phone:        utils.SanitizeText(addr.Phone, 20),
		Line1:        utils.SanitizeText(addr.Line1, 200),
		Line2:        utils.SanitizeText(addr.Line2, 200),
		Landmark:     utils.SanitizeText(addr.Landmark, 100),
		City:         utils.SanitizeText(addr.City, 100),
		State:        utils.SanitizeText(addr.State, 100),
		Country:      utils.SanitizeText(addr.Country, 100),
		PostalCode:   utils.SanitizeText(addr.PostalCode, 20),
		AddressRefID: &id,
	}
}
