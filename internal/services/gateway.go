package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/pkg/errors"
	razorpay "github.com/razorpay/razorpay-go"
)

// PaymentGateway is the surface of the payment provider the checkout flow
// needs. The Razorpay implementation is the only production one; tests
// substitute a stub.
type PaymentGateway interface {
	// CreateOrder registers a charge intent with the provider. amount is in
	// minor currency units. Returns the provider order id.
	CreateOrder(amountMinor int64, currency, receipt string) (string, error)
	// VerifySignature checks the provider-issued payment signature in
	// constant time.
	VerifySignature(orderID, paymentID, signature string) bool
	// KeyID is the public key the payment UI needs.
	KeyID() string
}

// RazorpayGateway implements PaymentGateway over the Razorpay REST client.
type RazorpayGateway struct {
	client    *razorpay.Client
	keyID     string
	keySecret string
}

// NewRazorpayGateway constructs the gateway from key credentials.
func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client:    razorpay.NewClient(keyID, keySecret),
		keyID:     keyID,
		keySecret: keySecret,
	}
}

// CreateOrder creates a provider-side order for the charge amount. This call
// is not idempotent: a retry after a provider-side success can orphan a
// provider order, which operators reconcile manually. Durable orders stay
// unique regardless via the verification-side idempotency check.
func (g *RazorpayGateway) CreateOrder(amountMinor int64, currency, receipt string) (string, error) {
	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}

	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", errors.Wrap(err, "razorpay order create")
	}

	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", errors.New("razorpay order create: response missing id")
	}
	return id, nil
}

// VerifySignature recomputes HMAC-SHA256(secret, orderID|paymentID) and
// compares it to the supplied signature using a constant-time comparison.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(g.keySecret, orderID, paymentID, signature)
}

// KeyID returns the public key id.
func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// VerifyPaymentSignature checks a Razorpay payment signature. Exposed as a
// function so it can be tested against known vectors without a client.
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return ConstantTimeEquals(expected, signature)
}

// ConstantTimeEquals compares two strings without leaking where they differ.
// Unequal lengths still burn a comparison so length is the only timing
// signal.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		var pad [32]byte
		subtle.ConstantTimeCompare(pad[:], pad[:])
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
