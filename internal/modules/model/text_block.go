package model

import (
	"time"

	"github.com/google/uuid"
)

// TextBlock is an admin-editable copy fragment rendered on the site
// (landing sections, FAQ entries, email templates), keyed by slug + language.
type TextBlock struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Key      string    `gorm:"type:text;not null;uniqueIndex:uq_text_block_key_lang,priority:1" json:"key"`
	Language string    `gorm:"type:text;not null;default:'uk';uniqueIndex:uq_text_block_key_lang,priority:2" json:"language"`

	Title string `gorm:"type:text" json:"title"`
	Body  string `gorm:"type:text" json:"body"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TextBlock) TableName() string { return "text_blocks" }
