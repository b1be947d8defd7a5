package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Payment method and status enums.
const (
	PaymentMethodCard = "card"
	PaymentMethodUPI  = "upi"
	PaymentMethodCOD  = "cod"

	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Order lifecycle statuses. Transitions only move forward.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// ValidPaymentMethod reports whether m is one of the closed payment-method enum.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCard, PaymentMethodUPI, PaymentMethodCOD:
		return true
	}
	return false
}

// AddressSnapshot is a denormalized copy of an address taken at checkout time.
// Copies, not references: the source address may change or be deleted later.
type AddressSnapshot struct {
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"`
	Line1        string     `json:"line1"`
	Line2        string     `json:"line2"`
	Landmark     string     `json:"landmark"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	Country      string     `json:"country"`
	PostalCode   string     `json:"postal_code"`
	AddressRefID *uuid.UUID `gorm:"type:uuid" json:"address_ref_id"`
}

// Payment is the payment sub-record of an order. The unique index on
// RazorpayOrderID is the at-most-one-order-per-payment-session backstop.
type Payment struct {
	Method            string     `json:"method"`
	Status            string     `json:"status"`
	RazorpayOrderID   string     `gorm:"uniqueIndex" json:"razorpay_order_id"`
	RazorpayPaymentID string     `json:"razorpay_payment_id"`
	RazorpaySignature string     `json:"-"`
	PaidAt            *time.Time `json:"paid_at"`

	// COD: one third paid upfront, the rest collected on delivery.
	IsCodAdvance       bool    `json:"is_cod_advance"`
	CodAdvanceAmount   float64 `json:"cod_advance_amount"`
	CodRemainingAmount float64 `json:"cod_remaining_amount"`
	CodAdvancePaid     bool    `json:"cod_advance_paid"`
}

// Order is the durable record created exactly once, at successful payment
// verification. Never deleted.
type Order struct {
	BaseModel
	OrderID string    `gorm:"uniqueIndex" json:"order_id"`
	UserID  uuid.UUID `gorm:"type:uuid;index" json:"user_id"`

	Items []OrderItem `gorm:"foreignKey:OrderRef" json:"items"`

	ShippingAddress AddressSnapshot `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress  AddressSnapshot `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`
	Payment         Payment         `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`

	Subtotal       float64 `json:"subtotal"`
	ShippingCharge float64 `json:"shipping_charge"`
	Discount       float64 `json:"discount"`
	TotalAmount    float64 `json:"total_amount"`

	OrderNote string     `json:"order_note"`
	Status    string     `json:"status"`
	CartID    *uuid.UUID `gorm:"type:uuid" json:"cart_id"`
}

// OrderItem is a price-snapshotted line item.
type OrderItem struct {
	BaseModel
	OrderRef  uuid.UUID `gorm:"type:uuid;index" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid" json:"product_id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
}

const orderIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderID generates a human-readable order identifier like
// ORD-1735689600000-7Q2KX.
func NewOrderID() string {
	var sb strings.Builder
	for i := 0; i < 5; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(orderIDAlphabet))))
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a time-derived index.
			n = big.NewInt(time.Now().UnixNano() % int64(len(orderIDAlphabet)))
		}
		sb.WriteByte(orderIDAlphabet[n.Int64()])
	}
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), sb.String())
}
