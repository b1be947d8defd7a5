package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// OTPs live for minutes, so a lower bcrypt cost is acceptable there.
const otpHashCost = 8

// HashPassword returns a bcrypt hash of the provided password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// RandomOTP generates a 6-digit numeric one-time code.
func RandomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashOTP hashes a one-time code for storage.
func HashOTP(otp string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(otp), otpHashCost)
	return string(bytes), err
}

// CheckOTP compares a stored OTP hash with a submitted code.
func CheckOTP(hashedOTP, otp string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedOTP), []byte(otp)) == nil
}
