package models

import (
	"time"

	"github.com/google/uuid"
)

// CatalogEntry is one remote resource as of the last refresh of its
// connection. Entries are replaced wholesale on refresh, never merged.
type CatalogEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conn_type_remote" json:"connection_id"`
	ResourceType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_conn_type_remote" json:"resource_type"`
	RemoteID     string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_conn_type_remote" json:"remote_id"`

	Title        string `gorm:"type:varchar(255);not null" json:"title"`
	Abstract     string `gorm:"type:text" json:"abstract"`
	GeometryType string `gorm:"type:varchar(50)" json:"geometry_type"`
	Owner        string `gorm:"type:varchar(100)" json:"owner"`
	Access       string `gorm:"type:varchar(20)" json:"access"`

	BboxMinX float64 `json:"bbox_min_x"`
	BboxMinY float64 `json:"bbox_min_y"`
	BboxMaxX float64 `json:"bbox_max_x"`
	BboxMaxY float64 `json:"bbox_max_y"`

	Keywords string `gorm:"type:text" json:"keywords"`
	Category string `gorm:"type:varchar(100)" json:"category"`

	DetailURL       string `gorm:"type:varchar(512)" json:"detail_url"`
	MetadataURL     string `gorm:"type:varchar(512)" json:"metadata_url"`
	DefaultStyleURL string `gorm:"type:varchar(512)" json:"default_style_url"`

	RefreshedAt time.Time `json:"refreshed_at"`

	Connection *Connection `gorm:"foreignKey:ConnectionID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (CatalogEntry) TableName() string {
	return "gb_catalog_entries"
}
