package models

// Product is a catalog entry. Price and stock here are the only authoritative
// source during checkout; cart snapshots are never trusted for pricing.
type Product struct {
	BaseModel
	Title       string  `json:"title"`
	Slug        string  `gorm:"uniqueIndex" json:"slug"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	InStock     bool    `gorm:"default:true" json:"in_stock"`
	IsActive    bool    `gorm:"default:true" json:"is_active"`
	IsDeleted   bool    `gorm:"default:false" json:"-"`
}

// Available reports whether the product can currently be purchased at all.
func (p *Product) Available() bool {
	return !p.IsDeleted && p.IsActive && p.InStock && p.Stock > 0
}
