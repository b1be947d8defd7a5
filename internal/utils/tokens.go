package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Token type discriminators. Verification rejects a token whose typ does not
// match the expected kind, so a verify token can never act as a session
// credential and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeVerify  = "verify"
)

// ErrWrongTokenType is returned when the typ claim does not match.
var ErrWrongTokenType = errors.New("wrong token type")

// TokenClaims carries the app-specific JWT claims.
type TokenClaims struct {
	Email        string `json:"email,omitempty"`
	TokenVersion int    `json:"token_version"`
	Typ          string `json:"typ"`
	JTI          string `json:"jti,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *TokenClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// RemainingTTL returns the time until natural expiry, at least one second.
// Used as the blacklist TTL so revocation entries never outlive the token.
func (c *TokenClaims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return time.Second
	}
	ttl := c.ExpiresAt.Time.Sub(now)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// NewJTI returns a fresh refresh-token identifier.
func NewJTI() string {
	return uuid.NewString()
}

// SignAccessToken creates a short-lived access token.
func SignAccessToken(secret string, userID uuid.UUID, email string, tokenVersion int, ttl time.Duration) (string, error) {
	return sign(secret, &TokenClaims{
		Email:        email,
		TokenVersion: tokenVersion,
		Typ:          TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// SignRefreshToken creates a long-lived refresh token carrying a fresh jti.
func SignRefreshToken(secret string, userID uuid.UUID, jti string, tokenVersion int, ttl time.Duration) (string, error) {
	return sign(secret, &TokenClaims{
		TokenVersion: tokenVersion,
		Typ:          TokenTypeRefresh,
		JTI:          jti,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// SignVerifyToken creates the short-lived token that scopes the email OTP
// flow. It is not a session credential.
func SignVerifyToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	return sign(secret, &TokenClaims{
		Typ: TokenTypeVerify,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// VerifyAccessToken validates signature, expiry and typ.
func VerifyAccessToken(secret, token string) (*TokenClaims, error) {
	return verify(secret, token, TokenTypeAccess)
}

// VerifyRefreshToken validates signature, expiry and typ.
func VerifyRefreshToken(secret, token string) (*TokenClaims, error) {
	return verify(secret, token, TokenTypeRefresh)
}

// VerifyVerifyToken validates signature, expiry and typ.
func VerifyVerifyToken(secret, token string) (*TokenClaims, error) {
	return verify(secret, token, TokenTypeVerify)
}

func sign(secret string, claims *TokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func verify(secret, tokenString, expectedType string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Typ != expectedType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
