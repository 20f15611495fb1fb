package model

import (
	"time"

	"gorm.io/datatypes"
)

// Setting is a single admin-tunable configuration value.
type Setting struct {
	Key   string            `gorm:"type:text;primaryKey" json:"key"`
	Value datatypes.JSONMap `gorm:"type:jsonb" swaggertype:"object" json:"value"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }
