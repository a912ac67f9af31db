package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProviderAPIKey authenticates a host application against the bridge
// API. Only the bcrypt hash of the key is stored.
type ProviderAPIKey struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	KeyHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Name    string    `gorm:"type:varchar(100)" json:"name"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProviderAPIKey) TableName() string {
	return "gb_provider_api_keys"
}
