package model

import (
	"time"

	"github.com/google/uuid"
)

// Greeting is the durable, user-owned artifact created exactly once when a
// generation task reaches SUCCESS. The unique task_id index is the
// exactly-once guard for finalize.
type Greeting struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TaskID string    `gorm:"type:text;not null;uniqueIndex" json:"task_id"`

	UserEmail string `gorm:"type:text;index" json:"user_email,omitempty"`
	Recipient string `gorm:"type:text" json:"recipient"`
	Occasion  string `gorm:"type:text" json:"occasion"`

	Text           string `gorm:"type:text" json:"text"`
	MusicURL       string `gorm:"type:text" json:"music_url"`
	SecondMusicURL string `gorm:"type:text" json:"second_music_url,omitempty"`
	CoverURL       string `gorm:"type:text" json:"cover_url,omitempty"`

	Plan string `gorm:"type:text;not null;default:'basic'" json:"plan"`

	// S3 keys when the final audio/cover were archived
	MusicArchiveKey string `gorm:"type:text" json:"music_archive_key,omitempty"`
	CoverArchiveKey string `gorm:"type:text" json:"cover_archive_key,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Greeting) TableName() string { return "greetings" }
