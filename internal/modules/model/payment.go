package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// Payment records one checkout attempt. Rows are written by the payment
// callback handler (outside the generation core) and browsed in the admin
// back-office.
type Payment struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TaskID string    `gorm:"type:text;index" json:"task_id,omitempty"`

	UserEmail   string `gorm:"type:text;index" json:"user_email"`
	Plan        string `gorm:"type:text;not null;default:'basic'" json:"plan"`
	AmountMinor int64  `gorm:"not null" json:"amount_minor"`
	Currency    string `gorm:"type:text;not null;default:'UAH'" json:"currency"`
	PromoCode   string `gorm:"type:text" json:"promo_code,omitempty"`

	Status      string `gorm:"type:text;not null;default:'pending';check:status IN ('pending','paid','failed','refunded');index" json:"status"`
	ProviderRef string `gorm:"type:text" json:"provider_ref,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }
