package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/velora/internal/cache"
	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/database"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

type registerFixture struct {
	app *fiber.App
	db  *gorm.DB
}

func newRegisterFixture(t *testing.T) *registerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTAccessSecret:  "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		JWTVerifySecret:  "test-verify-secret",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		VerifyTokenTTL:   15 * time.Minute,
		CookieSameSite:   "lax",
	}
	handler := NewAuthHandler(db, cfg, services.NewBlacklist(cache.NewMemory()), services.LogMailer{})

	app := fiber.New()
	app.Post("/register", handler.Register)

	return &registerFixture{app: app, db: db}
}

func (f *registerFixture) register(t *testing.T, body map[string]interface{}) *http.Response {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRegisterCreatesUnverifiedUser(t *testing.T) {
	f := newRegisterFixture(t)

	resp := f.register(t, map[string]interface{}{
		"name": "New User", "email": "New@Example.com", "password": "password123",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var user models.User
	require.NoError(t, f.db.First(&user, "email = ?", "new@example.com").Error)
	assert.False(t, user.EmailVerified)
	assert.NotEmpty(t, user.PasswordHash)
	assert.False(t, user.EmailOTP.Empty())

	var verifyCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == utils.VerifyCookieName {
			verifyCookie = cookie
		}
	}
	require.NotNil(t, verifyCookie)
	assert.Equal(t, "/verify-email", verifyCookie.Path)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newRegisterFixture(t)

	body := map[string]interface{}{
		"name": "User", "email": "dup@example.com", "password": "password123",
	}
	resp := f.register(t, body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// The unique index, not a lookup, rejects the duplicate, so the same
	// answer holds even when two registrations race.
	resp = f.register(t, body)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "dup@example.com").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRegisterValidation(t *testing.T) {
	f := newRegisterFixture(t)

	resp := f.register(t, map[string]interface{}{
		"name": "", "email": "not-an-email", "password": "short",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body struct {
		Success bool     `json:"success"`
		Errors  []string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Len(t, body.Errors, 3)
}
