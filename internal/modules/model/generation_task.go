package model

import (
	"time"

	"gorm.io/datatypes"
)

// Plan names mirror the billing plans; premium unlocks generated cover art.
const (
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// FormData is the user's original request input, kept alongside the task so
// the dashboard can re-render context after a page reload.
type FormData struct {
	Recipient    string `json:"recipient"`
	Occasion     string `json:"occasion"`
	Relationship string `json:"relationship"`
	Style        string `json:"style"`
	Mood         string `json:"mood"`
	Language     string `json:"language"`
	VoiceType    string `json:"voice_type"`
}

// GenerationTask is the authoritative status record for one song request.
// The primary key is the opaque task id minted by the music provider. Rows
// are mutated only by the poller or an explicit user action and become
// immutable once the status is terminal.
type GenerationTask struct {
	TaskID string `gorm:"type:text;primaryKey" json:"task_id"`

	Status         string `gorm:"type:text;not null;default:'PENDING';check:status IN ('PENDING','TEXT_SUCCESS','FIRST_SUCCESS','SUCCESS','FAILED','GENERATE_AUDIO_FAILED');index" json:"status"`
	Text           string `gorm:"type:text" json:"text,omitempty"`
	MusicURL       string `gorm:"type:text" json:"music_url,omitempty"`
	SecondMusicURL string `gorm:"type:text" json:"second_music_url,omitempty"`
	CoverURL       string `gorm:"type:text" json:"cover_url,omitempty"`

	Plan      string                       `gorm:"type:text;not null;default:'basic'" json:"plan"`
	UserEmail string                       `gorm:"type:text;index" json:"user_email,omitempty"`
	FormData  datatypes.JSONType[FormData] `gorm:"type:jsonb" json:"form_data"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GenerationTask) TableName() string { return "generation_tasks" }
