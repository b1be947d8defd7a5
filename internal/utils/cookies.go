package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/velora/internal/config"
)

// Cookie names shared between handlers and middleware.
const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
	VerifyCookieName  = "verify_token"
)

func baseCookie(cfg *config.Config, name, value string, ttl time.Duration, path string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   cfg.CookieDomain,
		MaxAge:   int(ttl.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
	}
}

// SetAuthCookies attaches the access and refresh token cookies.
func SetAuthCookies(c *fiber.Ctx, cfg *config.Config, accessToken, refreshToken string) {
	c.Cookie(baseCookie(cfg, AccessCookieName, accessToken, cfg.AccessTokenTTL, "/"))
	c.Cookie(baseCookie(cfg, RefreshCookieName, refreshToken, cfg.RefreshTokenTTL, "/"))
}

// SetVerifyCookie attaches the email-verification cookie, scoped to the
// verify-email path. Not a session cookie.
func SetVerifyCookie(c *fiber.Ctx, cfg *config.Config, verifyToken string) {
	c.Cookie(baseCookie(cfg, VerifyCookieName, verifyToken, cfg.VerifyTokenTTL, "/verify-email"))
}

// ClearAuthCookies expires both session cookies.
func ClearAuthCookies(c *fiber.Ctx, cfg *config.Config) {
	expire(c, cfg, AccessCookieName, "/")
	expire(c, cfg, RefreshCookieName, "/")
}

// ClearVerifyCookie expires the email-verification cookie.
func ClearVerifyCookie(c *fiber.Ctx, cfg *config.Config) {
	expire(c, cfg, VerifyCookieName, "/verify-email")
}

func expire(c *fiber.Ctx, cfg *config.Config, name, path string) {
	cookie := baseCookie(cfg, name, "", 0, path)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	c.Cookie(cookie)
}
