package models

import "time"

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// Subscription is one user-subscription-period. Lifecycle:
// active -> cancelled (entitlement retained until period end) and
// active|cancelled -> expired (terminal, credits zeroed). At most one
// subscription per user may be period-valid at any time; activation demotes
// any existing record before inserting the new one.
type Subscription struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"not null;index" json:"user_id"`
	PlanID             uint       `gorm:"not null;index" json:"plan_id"`
	Plan               Plan       `gorm:"foreignKey:PlanID" json:"plan"`
	Status             string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CurrentPeriodStart time.Time  `gorm:"type:timestamp;not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `gorm:"type:timestamp;not null;index" json:"current_period_end"`
	CreditsRemaining   int64      `gorm:"not null;default:0" json:"credits_remaining"`
	ExternalRef        *string    `gorm:"type:varchar(191);index" json:"external_ref,omitempty"`
	CancelledAt        *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPeriodValid reports whether the subscription still entitles the user:
// not expired and the billing period has not elapsed. Cancellation alone
// does not end entitlement.
func (s *Subscription) IsPeriodValid(now time.Time) bool {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusCancelled {
		return false
	}
	return !s.CurrentPeriodEnd.Before(now)
}
