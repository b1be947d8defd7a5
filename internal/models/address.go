package models

import "github.com/google/uuid"

// Address is a user-owned shipping/billing record. Rows are soft-deleted via
// IsActive; at most one active address per user may be the default, enforced
// by a partial unique index created in database.Connect.
type Address struct {
	BaseModel
	UserID     uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Label      string    `json:"label"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2"`
	Landmark   string    `json:"landmark"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Country    string    `json:"country"`
	PostalCode string    `json:"postal_code"`
	IsDefault  bool      `json:"is_default"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
}
