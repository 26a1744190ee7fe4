package models

import "time"

const (
	CreditTypeGrant   = "grant"
	CreditTypeRenew   = "renew"
	CreditTypeUsage   = "usage"
	CreditTypeExpired = "expired"
	CreditTypeBonus   = "bonus"
	CreditTypeRefund  = "refund"
)

// CreditTransaction is an immutable ledger entry. The sum of all entries for
// a user equals that user's User.Credits at all times. ReferenceID is a
// caller-supplied idempotency token: the unique index on
// (reference_id, type) guarantees at most one committed transaction per pair.
type CreditTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Type        string    `gorm:"type:varchar(20);not null;index:ux_credit_transactions_ref_type,unique,priority:2" json:"type"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	ReferenceID *string   `gorm:"type:varchar(191);index:ux_credit_transactions_ref_type,unique,priority:1" json:"reference_id,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// IsCredit reports whether the entry increases the balance.
func (t *CreditTransaction) IsCredit() bool {
	return t.Amount > 0
}
