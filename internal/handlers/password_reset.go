package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/services"
	"github.com/example/velora/internal/utils"
)

// PasswordResetHandler serves the forgot/reset password flow.
type PasswordResetHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer services.MailEnqueuer
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, cfg *config.Config, mailer services.MailEnqueuer) *PasswordResetHandler {
	return &PasswordResetHandler{db: db, cfg: cfg, mailer: mailer}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// Forgot stores a hashed reset OTP and mails it. The response is identical
// whether or not the account exists, so the endpoint cannot be used to probe
// for registered emails.
func (h *PasswordResetHandler) Forgot(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !utils.IsEmail(req.Email) {
		return fiber.NewError(fiber.StatusBadRequest, "Valid email is required")
	}

	neutral := fiber.Map{
		"success": true,
		"message": "If an account exists for that email, a reset code has been sent.",
	}

	var user models.User
	err := h.db.Where("email = ?", utils.NormalizeEmail(req.Email)).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(neutral)
		}
		return err
	}

	otp, otpRecord, err := newOTPRecord()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
	}
	user.ResetOTP = otpRecord
	if err := h.db.Save(&user).Error; err != nil {
		return err
	}

	mailErr := h.mailer.EnqueueMail(c.UserContext(), services.MailMessage{
		To:       user.Email,
		Subject:  "Reset your password",
		Template: services.MailTemplatePasswordReset,
		Data: map[string]string{
			"name":       user.Name,
			"otp":        otp,
			"ttlMinutes": "10",
		},
	})
	if mailErr != nil {
		log.Printf("[Auth] reset mail enqueue failed for %s: %v", user.Email, mailErr)
	}

	return c.JSON(neutral)
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

// Reset verifies the reset OTP and replaces the password. tokenVersion is
// bumped so every existing session dies with the old password.
func (h *PasswordResetHandler) Reset(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var errs []string
	if !utils.IsEmail(req.Email) {
		errs = append(errs, "Valid email is required")
	}
	if req.OTP == "" {
		errs = append(errs, "OTP is required")
	}
	if len(req.Password) < minPasswordLen {
		errs = append(errs, "Password must be at least 8 characters")
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "errors": errs})
	}

	var user models.User
	err := h.db.Where("email = ?", utils.NormalizeEmail(req.Email)).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusBadRequest, otpInvalidMsg)
		}
		return err
	}

	if msg := checkOTP(&user.ResetOTP, req.OTP); msg != "" {
		if msg == otpInvalidMsg {
			user.ResetOTP.Attempts++
			if err := h.db.Save(&user).Error; err != nil {
				return err
			}
		}
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user.PasswordHash = passwordHash
	user.ResetOTP = models.OTPRecord{}
	user.TokenVersion++
	if err := h.db.Save(&user).Error; err != nil {
		return err
	}

	utils.ClearAuthCookies(c, h.cfg)
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Password updated. Please log in again.",
		"redirect": "/login",
	})
}
