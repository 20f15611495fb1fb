package model

import (
	"time"

	"github.com/google/uuid"
)

type PromoCode struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code string    `gorm:"type:text;not null;uniqueIndex" json:"code"`

	DiscountPercent int        `gorm:"not null;check:discount_percent BETWEEN 1 AND 100" json:"discount_percent"`
	MaxUses         int        `gorm:"not null;default:0" json:"max_uses"` // 0 = unlimited
	Uses            int        `gorm:"not null;default:0" json:"uses"`
	Active          bool       `gorm:"not null;default:true" json:"active"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PromoCode) TableName() string { return "promo_codes" }
