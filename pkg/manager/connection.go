package manager

import (
	"context"
	"fmt"

	"github.com/avorra/geobridge/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionManager provides programmatic CRUD for GeoNode
// connections. Creating or re-pointing a connection runs API
// detection once; the detected generation is cached on the row.
type ConnectionManager struct {
	DB      *gorm.DB
	Clients *Clients
}

func NewConnectionManager(db *gorm.DB, clients *Clients) *ConnectionManager {
	return &ConnectionManager{DB: db, Clients: clients}
}

func (m *ConnectionManager) Create(ctx context.Context, req CreateConnectionRequest) (*models.Connection, error) {
	if req.Name == "" || req.BaseURL == "" {
		return nil, fmt.Errorf("connection name and base URL are required")
	}

	version, err := m.Clients.Detect(ctx, req.BaseURL, req.CredentialRef)

	if err != nil {
		return nil, err
	}

	conn := models.Connection{
		ID:            uuid.Must(uuid.NewV7()),
		Name:          req.Name,
		BaseURL:       req.BaseURL,
		APIVersion:    version,
		CredentialRef: req.CredentialRef,
	}

	client, err := m.Clients.For(ctx, &conn)

	if err != nil {
		return nil, err
	}

	conn.MaxPageSize = client.MaxPageSize()

	if err := m.DB.WithContext(ctx).Create(&conn).Error; err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	return &conn, nil
}

func (m *ConnectionManager) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	var conn models.Connection

	err := m.DB.WithContext(ctx).First(&conn, "id = ?", id).Error

	if err != nil {
		return nil, err
	}

	return &conn, nil
}

func (m *ConnectionManager) List(ctx context.Context) ([]models.Connection, error) {
	var conns []models.Connection

	err := m.DB.
		WithContext(ctx).
		Order("name ASC").
		Find(&conns).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	return conns, nil
}

func (m *ConnectionManager) Update(ctx context.Context, id uuid.UUID, req UpdateConnectionRequest) (*models.Connection, error) {
	conn, err := m.Get(ctx, id)

	if err != nil {
		return nil, err
	}

	redetect := false

	if req.Name != nil {
		conn.Name = *req.Name
	}
	if req.BaseURL != nil && *req.BaseURL != conn.BaseURL {
		conn.BaseURL = *req.BaseURL
		redetect = true
	}
	if req.CredentialRef != nil && *req.CredentialRef != conn.CredentialRef {
		conn.CredentialRef = *req.CredentialRef
		redetect = true
	}

	if redetect {
		version, err := m.Clients.Detect(ctx, conn.BaseURL, conn.CredentialRef)

		if err != nil {
			return nil, err
		}

		conn.APIVersion = version

		client, err := m.Clients.For(ctx, conn)

		if err != nil {
			return nil, err
		}

		conn.MaxPageSize = client.MaxPageSize()
	}

	if err := m.DB.WithContext(ctx).Save(conn).Error; err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}

	return conn, nil
}

// Delete removes a connection and its cached catalog snapshot. The
// connection row is soft-deleted; the snapshot is dropped outright
// since it is reproducible from the server.
func (m *ConnectionManager) Delete(ctx context.Context, id uuid.UUID) error {
	tx := m.DB.WithContext(ctx).Begin()
	defer tx.Rollback()

	err := tx.
		Where("connection_id = ?", id).
		Delete(&models.CatalogEntry{}).
		Error

	if err != nil {
		return fmt.Errorf("failed to drop catalog snapshot: %w", err)
	}

	if err := tx.Delete(&models.Connection{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit connection delete: %w", err)
	}

	return nil
}
