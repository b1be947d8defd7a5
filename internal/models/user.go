package models

import "time"

// OTPRecord stores a hashed one-time code with its expiry and a counter of
// failed attempts. It is embedded twice on User: once for email verification
// and once for password reset.
type OTPRecord struct {
	Hash      string     `json:"-"`
	ExpiresAt *time.Time `json:"-"`
	Attempts  int        `json:"-"`
}

// Empty reports whether no OTP is currently outstanding.
func (o OTPRecord) Empty() bool {
	return o.Hash == "" || o.ExpiresAt == nil
}

// User represents a customer account.
type User struct {
	BaseModel
	Email         string `gorm:"uniqueIndex" json:"email"`
	Name          string `json:"name"`
	PasswordHash  string `json:"-"`
	EmailVerified bool   `json:"email_verified"`

	EmailOTP OTPRecord `gorm:"embedded;embeddedPrefix:email_otp_" json:"-"`
	ResetOTP OTPRecord `gorm:"embedded;embeddedPrefix:reset_otp_" json:"-"`

	// TokenVersion invalidates every outstanding access/refresh token for
	// this user when incremented (logout-all, password reset).
	TokenVersion int `gorm:"default:0" json:"-"`

	Addresses []Address `json:"addresses,omitempty"`
	Orders    []Order   `json:"orders,omitempty"`
}
