package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

const userContextKey = "currentUser"

// CurrentUser is the request identity attached by the auth middleware.
type CurrentUser struct {
	ID            uuid.UUID
	Email         string
	Name          string
	EmailVerified bool
	TokenVersion  int
}

// SessionState tags the outcome of session resolution, so callers never
// infer what happened from side effects.
type SessionState int

const (
	// Unauthenticated means neither token path produced an identity.
	Unauthenticated SessionState = iota
	// Authenticated means the access token was valid as-is.
	Authenticated
	// Rotated means the refresh token was exchanged for a fresh pair; new
	// cookies have been set on the response.
	Rotated
)

// SessionResult is the resolver's tagged result.
type SessionResult struct {
	State SessionState
	User  *CurrentUser
}

// Auth resolves request identity from auth cookies.
type Auth struct {
	db        *gorm.DB
	cfg       *config.Config
	blacklist *services.Blacklist
}

// NewAuth constructs the auth middleware bundle.
func NewAuth(db *gorm.DB, cfg *config.Config, blacklist *services.Blacklist) *Auth {
	return &Auth{db: db, cfg: cfg, blacklist: blacklist}
}

// Resolve walks the per-request state machine: a valid access token wins;
// otherwise a valid, unrevoked refresh token is rotated (old jti blacklisted,
// new pair issued); otherwise the caller is anonymous.
func (a *Auth) Resolve(c *fiber.Ctx) SessionResult {
	ctx := c.UserContext()

	if accessToken := c.Cookies(utils.AccessCookieName); accessToken != "" {
		if user := a.resolveAccess(ctx, accessToken); user != nil {
			return SessionResult{State: Authenticated, User: user}
		}
	}

	refreshToken := c.Cookies(utils.RefreshCookieName)
	if refreshToken == "" {
		return SessionResult{State: Unauthenticated}
	}

	user := a.rotateRefresh(c, refreshToken)
	if user == nil {
		return SessionResult{State: Unauthenticated}
	}
	return SessionResult{State: Rotated, User: user}
}

func (a *Auth) resolveAccess(ctx context.Context, token string) *CurrentUser {
	claims, err := utils.VerifyAccessToken(a.cfg.JWTAccessSecret, token)
	if err != nil {
		return nil
	}

	// A blacklist-store failure fails closed here.
	if claims.JTI != "" {
		revoked, err := a.blacklist.IsBlacklisted(ctx, claims.JTI)
		if err != nil || revoked {
			return nil
		}
	}

	return a.loadUser(ctx, claims)
}

func (a *Auth) rotateRefresh(c *fiber.Ctx, token string) *CurrentUser {
	ctx := c.UserContext()

	claims, err := utils.VerifyRefreshToken(a.cfg.JWTRefreshSecret, token)
	if err != nil || claims.JTI == "" {
		return nil
	}

	revoked, err := a.blacklist.IsBlacklisted(ctx, claims.JTI)
	if err != nil || revoked {
		return nil
	}

	user := a.loadUser(ctx, claims)
	if user == nil {
		return nil
	}

	// One-time use: the presented refresh token is dead from here on, so a
	// replayed copy fails even before its natural expiry.
	if err := a.blacklist.BlacklistJTI(ctx, claims.JTI, claims.RemainingTTL(time.Now())); err != nil {
		return nil
	}

	accessToken, err := utils.SignAccessToken(a.cfg.JWTAccessSecret, user.ID, user.Email, user.TokenVersion, a.cfg.AccessTokenTTL)
	if err != nil {
		return nil
	}
	refreshToken, err := utils.SignRefreshToken(a.cfg.JWTRefreshSecret, user.ID, utils.NewJTI(), user.TokenVersion, a.cfg.RefreshTokenTTL)
	if err != nil {
		return nil
	}

	utils.SetAuthCookies(c, a.cfg, accessToken, refreshToken)
	return user
}

func (a *Auth) loadUser(ctx context.Context, claims *utils.TokenClaims) *CurrentUser {
	userID, err := claims.UserID()
	if err != nil {
		return nil
	}

	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil
	}

	// tokenVersion is the global invalidation hook: logout-all and password
	// reset bump it, orphaning every outstanding token at once.
	if user.TokenVersion != claims.TokenVersion {
		return nil
	}

	return &CurrentUser{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.EmailVerified,
		TokenVersion:  user.TokenVersion,
	}
}

// AttachUser resolves identity when present and never blocks.
func (a *Auth) AttachUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if result := a.Resolve(c); result.User != nil {
			SetCurrentUser(c, result.User)
		}
		return c.Next()
	}
}

// SetCurrentUser attaches an identity to the request context. Handler tests
// use it to stand in for the resolver.
func SetCurrentUser(c *fiber.Ctx, user *CurrentUser) {
	c.Locals(userContextKey, user)
}

// RequireAuth is the browser-facing gate: unauthenticated requests are
// redirected to the login page with stale cookies cleared.
//
// An identity already attached by AttachUser is reused: resolving twice
// would re-present a refresh token whose jti died in the first rotation.
func (a *Auth) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := GetCurrentUser(c); ok {
			return c.Next()
		}
		result := a.Resolve(c)
		if result.State == Unauthenticated {
			utils.ClearAuthCookies(c, a.cfg)
			return c.Redirect("/login", fiber.StatusFound)
		}
		SetCurrentUser(c, result.User)
		return c.Next()
	}
}

// RequireAPIAuth is the JSON-facing gate: unauthenticated requests get 401.
func (a *Auth) RequireAPIAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := GetCurrentUser(c); ok {
			return c.Next()
		}
		result := a.Resolve(c)
		if result.State == Unauthenticated {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		SetCurrentUser(c, result.User)
		return c.Next()
	}
}

// RequireVerified rejects principals whose email is not verified. Must run
// after one of the auth gates.
func (a *Auth) RequireVerified() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := GetCurrentUser(c)
		if !ok {
			return c.Redirect("/login", fiber.StatusFound)
		}
		if !user.EmailVerified {
			return c.Redirect("/verify-email", fiber.StatusFound)
		}
		return c.Next()
	}
}

// RequireAPIVerified is the JSON variant of RequireVerified.
func (a *Auth) RequireAPIVerified() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := GetCurrentUser(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		if !user.EmailVerified {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Please verify your email to continue."})
		}
		return c.Next()
	}
}

// GetCurrentUser extracts the authenticated identity from request context.
func GetCurrentUser(c *fiber.Ctx) (*CurrentUser, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return nil, false
	}
	user, ok := value.(*CurrentUser)
	if !ok {
		return nil, false
	}
	return user, true
}
