package models

import "time"

const (
	BillingIntervalOnce  = "once"
	BillingIntervalMonth = "month"
	BillingIntervalYear  = "year"
)

// Plan is a static catalog entry. Read-only from the core's perspective;
// rows are seeded at deploy time.
type Plan struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	DisplayName    string    `gorm:"type:varchar(100);not null" json:"display_name"`
	Tier           string    `gorm:"type:varchar(20);not null;default:'free'" json:"tier"`
	CreditsGranted int64     `gorm:"not null;default:0" json:"credits_granted"`
	// Price in the smallest currency unit. Zero marks a free plan, which is
	// exempt from credit expiry on upgrade.
	Price           int64     `gorm:"not null;default:0" json:"price"`
	Currency        string    `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	BillingInterval string    `gorm:"type:varchar(10);not null;default:'month'" json:"billing_interval"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	SortOrder       int       `gorm:"default:0" json:"sort_order"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaid reports whether the plan carries a price. Activating over a paid
// plan expires whatever credits remained on it.
func (p *Plan) IsPaid() bool {
	return p.Price > 0
}
