package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/velora/internal/database"
	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/models"
)

type addressFixture struct {
	app  *fiber.App
	db   *gorm.DB
	user models.User
}

func newAddressFixture(t *testing.T) *addressFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	f := &addressFixture{db: db}
	f.user = models.User{Email: "user@example.com", Name: "User", EmailVerified: true}
	require.NoError(t, db.Create(&f.user).Error)

	handler := NewAddressHandler(db)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetCurrentUser(c, &middleware.CurrentUser{
			ID:            f.user.ID,
			Email:         f.user.Email,
			EmailVerified: true,
		})
		return c.Next()
	})
	app.Get("/addresses", handler.List)
	app.Post("/addresses", handler.Create)
	app.Put("/addresses/:id", handler.Update)
	app.Patch("/addresses/:id/default", handler.SetDefault)
	app.Delete("/addresses/:id", handler.Delete)

	f.app = app
	return f
}

func (f *addressFixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp
}

func validAddressBody(name string) map[string]interface{} {
	return map[string]interface{}{
		"full_name":   name,
		"phone":       "9999999999",
		"line1":       "1 Test Street",
		"city":        "Mumbai",
		"state":       "MH",
		"country":     "IN",
		"postal_code": "400001",
	}
}

func (f *addressFixture) activeAddresses(t *testing.T) []models.Address {
	t.Helper()
	var addresses []models.Address
	require.NoError(t, f.db.
		Where("user_id = ? AND is_active = ?", f.user.ID, true).
		Order("created_at ASC").
		Find(&addresses).Error)
	return addresses
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	f := newAddressFixture(t)

	resp := f.do(t, http.MethodPost, "/addresses", validAddressBody("First"))
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	addresses := f.activeAddresses(t)
	require.Len(t, addresses, 1)
	assert.True(t, addresses[0].IsDefault)
}

func TestExplicitDefaultUnsetsPrevious(t *testing.T) {
	f := newAddressFixture(t)

	f.do(t, http.MethodPost, "/addresses", validAddressBody("First"))

	body := validAddressBody("Second")
	body["is_default"] = true
	resp := f.do(t, http.MethodPost, "/addresses", body)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	addresses := f.activeAddresses(t)
	require.Len(t, addresses, 2)

	defaults := 0
	for _, addr := range addresses {
		if addr.IsDefault {
			defaults++
			assert.Equal(t, "Second", addr.FullName)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestDeleteDefaultPromotesNewestRemaining(t *testing.T) {
	f := newAddressFixture(t)

	f.do(t, http.MethodPost, "/addresses", validAddressBody("First"))
	f.do(t, http.MethodPost, "/addresses", validAddressBody("Second"))
	f.do(t, http.MethodPost, "/addresses", validAddressBody("Third"))

	addresses := f.activeAddresses(t)
	require.Len(t, addresses, 3)
	require.True(t, addresses[0].IsDefault, "first created should be default")

	resp := f.do(t, http.MethodDelete, "/addresses/"+addresses[0].ID.String(), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	remaining := f.activeAddresses(t)
	require.Len(t, remaining, 2)

	var promoted *models.Address
	for i := range remaining {
		if remaining[i].IsDefault {
			promoted = &remaining[i]
		}
	}
	require.NotNil(t, promoted, "a remaining address must be promoted")

	// Past orders keep their snapshots; only the address book row is
	// deactivated.
	var deleted models.Address
	require.NoError(t, f.db.First(&deleted, "id = ?", addresses[0].ID).Error)
	assert.False(t, deleted.IsActive)
	assert.False(t, deleted.IsDefault)
}

func TestSetDefaultMovesFlag(t *testing.T) {
	f := newAddressFixture(t)

	f.do(t, http.MethodPost, "/addresses", validAddressBody("First"))
	f.do(t, http.MethodPost, "/addresses", validAddressBody("Second"))

	addresses := f.activeAddresses(t)
	require.Len(t, addresses, 2)

	resp := f.do(t, http.MethodPatch, "/addresses/"+addresses[1].ID.String()+"/default", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	addresses = f.activeAddresses(t)
	assert.False(t, addresses[0].IsDefault)
	assert.True(t, addresses[1].IsDefault)
}

func TestUpdateIgnoresUnknownFields(t *testing.T) {
	f := newAddressFixture(t)

	f.do(t, http.MethodPost, "/addresses", validAddressBody("First"))
	addresses := f.activeAddresses(t)
	require.Len(t, addresses, 1)

	body := validAddressBody("Renamed")
	body["user_id"] = "11111111-1111-1111-1111-111111111111"
	body["is_active"] = false
	resp := f.do(t, http.MethodPut, "/addresses/"+addresses[0].ID.String(), body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var addr models.Address
	require.NoError(t, f.db.First(&addr, "id = ?", addresses[0].ID).Error)
	assert.Equal(t, "Renamed", addr.FullName)
	assert.Equal(t, f.user.ID, addr.UserID, "ownership cannot be patched")
	assert.True(t, addr.IsActive, "active flag cannot be patched")
}

func TestForeignAddressNotFound(t *testing.T) {
	f := newAddressFixture(t)

	other := models.User{Email: "other@example.com", Name: "Other"}
	require.NoError(t, f.db.Create(&other).Error)
	foreign := models.Address{
		UserID: other.ID, FullName: "Other", Phone: "1", Line1: "x",
		City: "c", State: "s", Country: "IN", PostalCode: "1", IsActive: true,
	}
	require.NoError(t, f.db.Create(&foreign).Error)

	resp := f.do(t, http.MethodPut, "/addresses/"+foreign.ID.String(), validAddressBody("Hijack"))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/addresses/"+foreign.ID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
