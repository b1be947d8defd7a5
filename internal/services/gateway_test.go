package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyPaymentSignature(t *testing.T) {
	const (
		secret    = "test_secret"
		orderID   = "order_MkzCKZgSHWbmTi"
		paymentID = "pay_29QQoUBi66xm2f"
		// HMAC-SHA256(secret, orderID|paymentID), hex-encoded.
		signature = "e1b65cf8812a27473b154fbc9f143fc44ee646d2dbfb9d984035d049b4361233"
	)

	assert.True(t, VerifyPaymentSignature(secret, orderID, paymentID, signature))

	// Any single corrupted input must fail verification.
	assert.False(t, VerifyPaymentSignature("other_secret", orderID, paymentID, signature))
	assert.False(t, VerifyPaymentSignature(secret, "order_tampered", paymentID, signature))
	assert.False(t, VerifyPaymentSignature(secret, orderID, "pay_tampered", signature))
	assert.False(t, VerifyPaymentSignature(secret, orderID, paymentID, "deadbeef"))
	assert.False(t, VerifyPaymentSignature(secret, orderID, paymentID, ""))
}

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, ConstantTimeEquals("abc", "abc"))
	assert.False(t, ConstantTimeEquals("abc", "abd"))
	assert.False(t, ConstantTimeEquals("abc", "abcd"))
	assert.False(t, ConstantTimeEquals("", "a"))
	assert.True(t, ConstantTimeEquals("", ""))
}
