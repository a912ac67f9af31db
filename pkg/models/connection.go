package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Connection is a configured remote GeoNode instance. The credential
// is stored as an opaque reference into the host's secret store; the
// secret material itself never lands in this table.
type Connection struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	BaseURL       string    `gorm:"type:varchar(512);not null" json:"base_url"`
	APIVersion    string    `gorm:"type:varchar(20);not null" json:"api_version"`
	CredentialRef string    `gorm:"type:varchar(100)" json:"credential_ref"`

	// Largest page size the instance advertises; search requests are
	// clamped to it.
	MaxPageSize int `gorm:"default:50;not null" json:"max_page_size"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Connection) TableName() string {
	return "gb_connections"
}
