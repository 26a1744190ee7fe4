package models

import "time"

// ActivityRecord is the append-only audit trail of completed processing
// jobs. A row is written only after the output object was persisted and the
// credit debit committed.
type ActivityRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	StageLabel   string    `gorm:"type:varchar(50);not null" json:"stage_label"`
	OutputFormat string    `gorm:"type:varchar(10);not null" json:"output_format"`
	OutputKey    string    `gorm:"type:varchar(255);not null" json:"output_key"`
	OriginalSize int64     `gorm:"not null;default:0" json:"original_size"`
	OutputSize   int64     `gorm:"not null;default:0" json:"output_size"`
	CreditsUsed  int64     `gorm:"not null;default:1" json:"credits_used"`
	AltText      string    `gorm:"type:varchar(255)" json:"alt_text,omitempty"`
	IsPermanent  bool      `gorm:"default:false" json:"is_permanent"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
