// Package catalog keeps the most recently fetched resource snapshot
// per connection. A refresh replaces the whole snapshot for its
// connection in one transaction; there is no partial merging.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Catalog struct {
	db  *gorm.DB
	log *logger.Logger

	// Serializes refreshes per connection; refreshes of different
	// connections proceed concurrently.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func New(db *gorm.DB, log *logger.Logger) *Catalog {
	return &Catalog{
		db:    db,
		log:   log.With("component", "catalog"),
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (c *Catalog) lockFor(connectionID uuid.UUID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[connectionID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[connectionID] = l
	}

	return l
}

// Refresh replaces the connection's snapshot with the given resource
// summaries.
func (c *Catalog) Refresh(ctx context.Context, connectionID uuid.UUID, resources []geonode.BriefResource) error {
	l := c.lockFor(connectionID)
	l.Lock()
	defer l.Unlock()

	now := time.Now().UTC()

	entries := make([]models.CatalogEntry, len(resources))
	for i, r := range resources {
		resourceType := r.Type
		if resourceType == "" {
			resourceType = geonode.ResourceTypeLayer
		}

		entries[i] = models.CatalogEntry{
			ID:              uuid.Must(uuid.NewV7()),
			ConnectionID:    connectionID,
			ResourceType:    resourceType,
			RemoteID:        r.ID,
			Title:           r.Title,
			Abstract:        r.Abstract,
			GeometryType:    r.GeometryType,
			Owner:           r.Owner,
			Access:          r.Access,
			BboxMinX:        r.Bbox.MinX,
			BboxMinY:        r.Bbox.MinY,
			BboxMaxX:        r.Bbox.MaxX,
			BboxMaxY:        r.Bbox.MaxY,
			DetailURL:       r.DetailURL,
			DefaultStyleURL: r.DefaultStyleURL,
			RefreshedAt:     now,
		}
	}

	tx := c.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	err := tx.
		Where("connection_id = ?", connectionID).
		Delete(&models.CatalogEntry{}).
		Error

	if err != nil {
		return fmt.Errorf("failed to clear catalog snapshot: %w", err)
	}

	if len(entries) > 0 {
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("failed to store catalog snapshot: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit catalog snapshot: %w", err)
	}

	c.log.Debug("catalog snapshot replaced", "connection_id", connectionID, "entries", len(entries))

	return nil
}

// List returns the current snapshot for a connection, optionally
// narrowed to one resource type.
func (c *Catalog) List(ctx context.Context, connectionID uuid.UUID, resourceType string) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry

	tx := c.db.
		WithContext(ctx).
		Where("connection_id = ?", connectionID)

	if resourceType != "" {
		tx = tx.Where("resource_type = ?", resourceType)
	}

	err := tx.
		Order("title ASC").
		Find(&entries).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}

	return entries, nil
}

// Get looks up one entry by its type and remote identifier.
func (c *Catalog) Get(ctx context.Context, connectionID uuid.UUID, resourceType, remoteID string) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry

	err := c.db.
		WithContext(ctx).
		Where("connection_id = ? AND resource_type = ? AND remote_id = ?", connectionID, resourceType, remoteID).
		First(&entry).
		Error

	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// Remove drops a single entry, used after a confirmed remote delete
// so the snapshot does not wait for the next full refresh.
func (c *Catalog) Remove(ctx context.Context, connectionID uuid.UUID, resourceType, remoteID string) error {
	err := c.db.
		WithContext(ctx).
		Where("connection_id = ? AND resource_type = ? AND remote_id = ?", connectionID, resourceType, remoteID).
		Delete(&models.CatalogEntry{}).
		Error

	if err != nil {
		return fmt.Errorf("failed to remove catalog entry: %w", err)
	}

	return nil
}
