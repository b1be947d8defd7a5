package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	token, err := SignAccessToken(testSecret, userID, "a@b.com", 3, time.Minute)
	require.NoError(t, err)

	claims, err := VerifyAccessToken(testSecret, token)
	require.NoError(t, err)

	gotID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.Equal(t, TokenTypeAccess, claims.Typ)
}

func TestRefreshTokenCarriesJTI(t *testing.T) {
	jti := NewJTI()

	token, err := SignRefreshToken(testSecret, uuid.New(), jti, 0, time.Hour)
	require.NoError(t, err)

	claims, err := VerifyRefreshToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.JTI)
	assert.Equal(t, TokenTypeRefresh, claims.Typ)
}

func TestTypeConfusionRejected(t *testing.T) {
	userID := uuid.New()

	// A verify token must never pass as an access or refresh credential.
	verifyToken, err := SignVerifyToken(testSecret, userID, time.Minute)
	require.NoError(t, err)

	_, err = VerifyAccessToken(testSecret, verifyToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = VerifyRefreshToken(testSecret, verifyToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	// And a refresh token is not an access token.
	refreshToken, err := SignRefreshToken(testSecret, userID, NewJTI(), 0, time.Hour)
	require.NoError(t, err)
	_, err = VerifyAccessToken(testSecret, refreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := SignAccessToken(testSecret, uuid.New(), "a@b.com", 0, time.Minute)
	require.NoError(t, err)

	_, err = VerifyAccessToken("other-secret", token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := SignAccessToken(testSecret, uuid.New(), "a@b.com", 0, -time.Minute)
	require.NoError(t, err)

	_, err = VerifyAccessToken(testSecret, token)
	assert.Error(t, err)
}

func TestRemainingTTL(t *testing.T) {
	now := time.Now()

	claims := &TokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	assert.Equal(t, time.Hour, claims.RemainingTTL(now))

	// Past expiry still yields a positive floor so blacklist writes succeed.
	assert.Equal(t, time.Second, claims.RemainingTTL(now.Add(2*time.Hour)))

	noExpiry := &TokenClaims{}
	assert.Equal(t, time.Second, noExpiry.RemainingTTL(now))
}
