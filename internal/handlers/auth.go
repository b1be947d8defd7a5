package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

const (
	otpTTL         = 10 * time.Minute
	maxOTPAttempts = 5
	minPasswordLen = 8
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db        *gorm.DB
	cfg       *config.Config
	blacklist *services.Blacklist
	mailer    services.MailEnqueuer
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, blacklist *services.Blacklist, mailer services.MailEnqueuer) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, blacklist: blacklist, mailer: mailer}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account, stores a hashed email OTP and queues the
// verification mail. The response sets the verify cookie so the OTP can be
// confirmed without logging in.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var errs []string
	if req.Name == "" {
		errs = append(errs, "Name is required")
	}
	if !utils.IsEmail(req.Email) {
		errs = append(errs, "Valid email is required")
	}
	if len(req.Password) < minPasswordLen {
		errs = append(errs, "Password must be at least 8 characters")
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "errors": errs})
	}

	email := utils.NormalizeEmail(req.Email)

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	otp, otpRecord, err := newOTPRecord()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
	}

	user := models.User{
		Name:          req.Name,
		Email:         email,
		PasswordHash:  passwordHash,
		EmailVerified: false,
		EmailOTP:      otpRecord,
	}

	if err := h.db.Create(&user).Error; err != nil {
		// The unique index on email decides, so two concurrent registrations
		// cannot race past a lookup.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "Email already in use")
		}
		return err
	}

	h.sendOTPMail(c, user.Email, user.Name, "Verify your email", services.MailTemplateVerifyEmail, otp)

	if err := h.issueVerifyCookie(c, &user); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"message":  "Account created. Check your email for the verification code.",
		"redirect": "/verify-email",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user. Unverified accounts get a fresh OTP and the
// verify cookie instead of a session.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	err := h.db.Where("email = ?", utils.NormalizeEmail(req.Email)).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}

	if !user.EmailVerified {
		otp, otpRecord, err := newOTPRecord()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
		}
		user.EmailOTP = otpRecord
		if err := h.db.Save(&user).Error; err != nil {
			return err
		}

		h.sendOTPMail(c, user.Email, user.Name, "Verify your email", services.MailTemplateVerifyEmail, otp)

		utils.ClearAuthCookies(c, h.cfg)
		if err := h.issueVerifyCookie(c, &user); err != nil {
			return err
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success":  false,
			"error":    "Please verify your email to continue.",
			"redirect": "/verify-email",
		})
	}

	if err := h.issueSession(c, &user); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
	})
}

// Refresh rotates the refresh token explicitly. The same rotation runs
// implicitly in the auth middleware when an access token has expired.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	// The attach middleware may already have resolved or rotated the session
	// for this request; the presented refresh token is then spent.
	if _, ok := middleware.GetCurrentUser(c); ok {
		return c.JSON(fiber.Map{"ok": true})
	}

	refreshToken := c.Cookies(utils.RefreshCookieName)
	if refreshToken == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "No refresh token")
	}

	claims, err := utils.VerifyRefreshToken(h.cfg.JWTRefreshSecret, refreshToken)
	if err != nil || claims.JTI == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	revoked, err := h.blacklist.IsBlacklisted(c.UserContext(), claims.JTI)
	if err != nil {
		return err
	}
	if revoked {
		return fiber.NewError(fiber.StatusUnauthorized, "Token revoked")
	}

	userID, err := claims.UserID()
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusUnauthorized, "User not found")
		}
		return err
	}
	if user.TokenVersion != claims.TokenVersion {
		return fiber.NewError(fiber.StatusUnauthorized, "Session expired")
	}

	if err := h.blacklist.BlacklistJTI(c.UserContext(), claims.JTI, claims.RemainingTTL(time.Now())); err != nil {
		return err
	}

	if err := h.issueSession(c, &user); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Logout revokes the presented refresh token and clears all auth cookies.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if refreshToken := c.Cookies(utils.RefreshCookieName); refreshToken != "" {
		if claims, err := utils.VerifyRefreshToken(h.cfg.JWTRefreshSecret, refreshToken); err == nil && claims.JTI != "" {
			if err := h.blacklist.BlacklistJTI(c.UserContext(), claims.JTI, claims.RemainingTTL(time.Now())); err != nil {
				log.Printf("[Auth] logout blacklist failed: %v", err)
			}
		}
	}

	utils.ClearAuthCookies(c, h.cfg)
	utils.ClearVerifyCookie(c, h.cfg)
	return c.JSON(fiber.Map{"success": true, "redirect": "/login"})
}

// LogoutAll bumps tokenVersion, invalidating every outstanding token for the
// user without touching the revocation store.
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("token_version", gorm.Expr("token_version + 1")).Error; err != nil {
		return err
	}

	utils.ClearAuthCookies(c, h.cfg)
	utils.ClearVerifyCookie(c, h.cfg)
	return c.JSON(fiber.Map{"success": true, "redirect": "/login"})
}

type verifyEmailRequest struct {
	OTP string `json:"otp"`
}

// VerifyEmail confirms the OTP scoped by the verify cookie.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	user, err := h.verifyTokenUser(c)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		utils.ClearVerifyCookie(c, h.cfg)
		return c.JSON(fiber.Map{"success": true, "message": "Email already verified.", "redirect": "/login"})
	}

	var req verifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OTP == "" {
		return fiber.NewError(fiber.StatusBadRequest, "OTP is required")
	}

	if msg := checkOTP(&user.EmailOTP, req.OTP); msg != "" {
		if msg == otpInvalidMsg {
			user.EmailOTP.Attempts++
			if err := h.db.Save(user).Error; err != nil {
				return err
			}
		}
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	user.EmailVerified = true
	user.EmailOTP = models.OTPRecord{}
	if err := h.db.Save(user).Error; err != nil {
		return err
	}

	utils.ClearVerifyCookie(c, h.cfg)
	return c.JSON(fiber.Map{"success": true, "message": "Email verified successfully.", "redirect": "/login"})
}

// ResendVerifyOTP issues a fresh email OTP for the verify-cookie user.
func (h *AuthHandler) ResendVerifyOTP(c *fiber.Ctx) error {
	user, err := h.verifyTokenUser(c)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		utils.ClearVerifyCookie(c, h.cfg)
		return c.JSON(fiber.Map{"success": true, "message": "Email already verified.", "redirect": "/login"})
	}

	otp, otpRecord, err := newOTPRecord()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
	}
	user.EmailOTP = otpRecord
	if err := h.db.Save(user).Error; err != nil {
		return err
	}

	h.sendOTPMail(c, user.Email, user.Name, "Your verification code", services.MailTemplateVerifyEmail, otp)
	return c.JSON(fiber.Map{"success": true, "message": "Verification code sent."})
}

func (h *AuthHandler) issueSession(c *fiber.Ctx, user *models.User) error {
	accessToken, err := utils.SignAccessToken(h.cfg.JWTAccessSecret, user.ID, user.Email, user.TokenVersion, h.cfg.AccessTokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to issue token")
	}
	refreshToken, err := utils.SignRefreshToken(h.cfg.JWTRefreshSecret, user.ID, utils.NewJTI(), user.TokenVersion, h.cfg.RefreshTokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to issue token")
	}

	utils.SetAuthCookies(c, h.cfg, accessToken, refreshToken)
	return nil
}

func (h *AuthHandler) issueVerifyCookie(c *fiber.Ctx, user *models.User) error {
	verifyToken, err := utils.SignVerifyToken(h.cfg.JWTVerifySecret, user.ID, h.cfg.VerifyTokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to issue token")
	}
	utils.SetVerifyCookie(c, h.cfg, verifyToken)
	return nil
}

// verifyTokenUser loads the user scoped by the verify cookie; 401 otherwise.
func (h *AuthHandler) verifyTokenUser(c *fiber.Ctx) (*models.User, error) {
	token := c.Cookies(utils.VerifyCookieName)
	if token == "" {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Please verify your email to continue.")
	}

	claims, err := utils.VerifyVerifyToken(h.cfg.JWTVerifySecret, token)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Please verify your email to continue.")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Please verify your email to continue.")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Please verify your email to continue.")
	}
	return &user, nil
}

func (h *AuthHandler) sendOTPMail(c *fiber.Ctx, to, name, subject, template, otp string) {
	err := h.mailer.EnqueueMail(c.UserContext(), services.MailMessage{
		To:       to,
		Subject:  subject,
		Template: template,
		Data: map[string]string{
			"name":       name,
			"otp":        otp,
			"ttlMinutes": "10",
		},
	})
	if err != nil {
		// The account flow continues; the user can always request a resend.
		log.Printf("[Auth] mail enqueue failed for %s: %v", to, err)
	}
}

const otpInvalidMsg = "Invalid OTP"

// checkOTP validates a submitted code against a stored record. It returns an
// empty string on success, otherwise the user-facing error.
func checkOTP(record *models.OTPRecord, otp string) string {
	if record.Empty() {
		return "No OTP found. Resend code."
	}
	if record.ExpiresAt.Before(time.Now()) {
		return "OTP expired. Resend code."
	}
	if record.Attempts >= maxOTPAttempts {
		return "Too many attempts. Resend code."
	}
	if !utils.CheckOTP(record.Hash, otp) {
		return otpInvalidMsg
	}
	return ""
}

func newOTPRecord() (string, models.OTPRecord, error) {
	otp, err := utils.RandomOTP()
	if err != nil {
		return "", models.OTPRecord{}, err
	}
	hash, err := utils.HashOTP(otp)
	if err != nil {
		return "", models.OTPRecord{}, err
	}
	expiresAt := time.Now().Add(otpTTL)
	return otp, models.OTPRecord{Hash: hash, ExpiresAt: &expiresAt, Attempts: 0}, nil
}
