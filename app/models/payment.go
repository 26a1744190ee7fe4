package models

import "time"

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
	PaymentStatusFailed  = "failed"
)

// Payment is the history entry written alongside every subscription
// activation or renewal so it shows up in the user's billing history.
type Payment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index" json:"user_id"`
	SubscriptionID uint       `gorm:"not null;index" json:"subscription_id"`
	Amount         int64      `gorm:"not null" json:"amount"`
	Currency       string     `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ExternalRef    string     `gorm:"type:varchar(191);index" json:"external_ref"`
	PaidAt         *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
