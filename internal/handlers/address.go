package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/models"
	"github.com/example/velora/internal/utils"
)

const maxAddressesPerUser = 20

// AddressHandler serves the address book CRUD.
type AddressHandler struct {
	db *gorm.DB
}

// NewAddressHandler constructs an AddressHandler.
func NewAddressHandler(db *gorm.DB) *AddressHandler {
	return &AddressHandler{db: db}
}

type addressRequest struct {
	Label      string `json:"label"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	Landmark   string `json:"landmark"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
	IsDefault  *bool  `json:"is_default"`
}

func (r *addressRequest) sanitize() {
	r.Label = utils.SanitizeText(r.Label, 50)
	r.FullName = utils.SanitizeText(r.FullName, 100)
	r.Phone = utils.SanitizeText(r.Phone, 20)
	r.Line1 = utils.SanitizeText(r.Line1, 200)
	r.Line2 = utils.SanitizeText(r.Line2, 200)
	r.Landmark = utils.SanitizeText(r.Landmark, 100)
	r.City = utils.SanitizeText(r.City, 100)
	r.State = utils.SanitizeText(r.State, 100)
	r.Country = utils.SanitizeText(r.Country, 100)
	r.PostalCode = utils.SanitizeText(r.PostalCode, 20)
}

func (r *addressRequest) validate() []string {
	var errs []string
	if r.FullName == "" {
		errs = append(errs, "Full name is required")
	}
	if r.Phone == "" {
		errs = append(errs, "Phone is required")
	}
	if r.Line1 == "" {
		errs = append(errs, "Address line 1 is required")
	}
	if r.City == "" {
		errs = append(errs, "City is required")
	}
	if r.State == "" {
		errs = append(errs, "State is required")
	}
	if r.PostalCode == "" {
		errs = append(errs, "Postal code is required")
	}
	return errs
}

// List returns the caller's active addresses, default first.
func (h *AddressHandler) List(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var addresses []models.Address
	err := h.db.
		Where("user_id = ? AND is_active = ?", user.ID, true).
		Order("is_default DESC, created_at DESC").
		Find(&addresses).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "addresses": addresses})
}

// Create adds an address. The first active address becomes the default
// automatically; an explicit default unsets the previous one.
func (h *AddressHandler) Create(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.sanitize()
	if errs := req.validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "errors": errs})
	}

	var address models.Address
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Address{}).
			Where("user_id = ? AND is_active = ?", user.ID, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= maxAddressesPerUser {
			return fiber.NewError(fiber.StatusBadRequest, "Address limit reached")
		}

		makeDefault := count == 0 || (req.IsDefault != nil && *req.IsDefault)
		if makeDefault {
			if err := unsetDefault(tx, user.ID); err != nil {
				return err
			}
		}

		address = models.Address{
			UserID:     user.ID,
			Label:      req.Label,
			FullName:   req.FullName,
			Phone:      req.Phone,
			Line1:      req.Line1,
			Line2:      req.Line2,
			Landmark:   req.Landmark,
			City:       req.City,
			State:      req.State,
			Country:    req.Country,
			PostalCode: req.PostalCode,
			IsDefault:  makeDefault,
			IsActive:   true,
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "address": address})
}

// Update patches an owned address. Only known fields are applied; unknown
// body keys are ignored.
func (h *AddressHandler) Update(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addressID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid address id")
	}

	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.sanitize()
	if errs := req.validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "errors": errs})
	}

	var address models.Address
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&address, "id = ? AND user_id = ? AND is_active = ?", addressID, user.ID, true).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Address not found")
			}
			return err
		}

		if req.IsDefault != nil && *req.IsDefault && !address.IsDefault {
			if err := unsetDefault(tx, user.ID); err != nil {
				return err
			}
			address.IsDefault = true
		}

		address.Label = req.Label
		address.FullName = req.FullName
		address.Phone = req.Phone
		address.Line1 = req.Line1
		address.Line2 = req.Line2
		address.Landmark = req.Landmark
		address.City = req.City
		address.State = req.State
		address.Country = req.Country
		address.PostalCode = req.PostalCode
		return tx.Save(&address).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "address": address})
}

// SetDefault marks an owned address as the default.
func (h *AddressHandler) SetDefault(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addressID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid address id")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var address models.Address
		if err := tx.First(&address, "id = ? AND user_id = ? AND is_active = ?", addressID, user.ID, true).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Address not found")
			}
			return err
		}
		if address.IsDefault {
			return nil
		}
		if err := unsetDefault(tx, user.ID); err != nil {
			return err
		}
		return tx.Model(&address).Update("is_default", true).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// Delete soft-deletes an owned address. When the default is removed, the most
// recently created remaining address is promoted; past orders keep their
// snapshots either way.
func (h *AddressHandler) Delete(c *fiber.Ctx) error {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addressID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid address id")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var address models.Address
		if err := tx.First(&address, "id = ? AND user_id = ? AND is_active = ?", addressID, user.ID, true).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Address not found")
			}
			return err
		}

		wasDefault := address.IsDefault
		if err := tx.Model(&address).
			Updates(map[string]interface{}{"is_active": false, "is_default": false}).Error; err != nil {
			return err
		}

		if wasDefault {
			var next models.Address
			err := tx.Where("user_id = ? AND is_active = ?", user.ID, true).
				Order("created_at DESC").
				First(&next).Error
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			return tx.Model(&next).Update("is_default", true).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

func unsetDefault(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Model(&models.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}
