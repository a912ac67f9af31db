package worker

import (
	"context"
	"time"

	"github.com/avorra/geobridge/pkg/catalog"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/manager"
	"github.com/avorra/geobridge/pkg/models"
	"gorm.io/gorm"
)

// Refresher periodically replaces every connection's catalog
// snapshot. Different connections refresh concurrently; the catalog
// serializes refreshes of the same connection.
type Refresher struct {
	DB       *gorm.DB
	Clients  *manager.Clients
	Catalog  *catalog.Catalog
	Interval time.Duration

	log *logger.Logger
}

func NewRefresher(db *gorm.DB, clients *manager.Clients, cat *catalog.Catalog, interval time.Duration, log *logger.Logger) *Refresher {
	return &Refresher{
		DB:       db,
		Clients:  clients,
		Catalog:  cat,
		Interval: interval,
		log:      log.With("component", "refresher"),
	}
}

func (r *Refresher) Start(ctx context.Context) {
	r.log.Info("starting catalog refresh loop", "interval", r.Interval)

	r.refreshAll(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("stopping catalog refresh loop")
			return
		case <-time.After(r.Interval):
			r.refreshAll(ctx)
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	var conns []models.Connection

	err := r.DB.WithContext(ctx).Find(&conns).Error

	if err != nil {
		r.log.Error("failed to list connections", "error", err)
		return
	}

	for _, conn := range conns {
		go r.refreshOne(ctx, conn)
	}
}

func (r *Refresher) refreshOne(ctx context.Context, conn models.Connection) {
	client, err := r.Clients.For(ctx, &conn)

	if err != nil {
		r.log.Error("failed to build client", "connection", conn.Name, "error", err)
		return
	}

	resources, err := catalog.FetchAll(ctx, client)

	if err != nil {
		// Auth failures are surfaced, not retried; the next cycle will
		// try again with whatever the credential store holds by then.
		r.log.Warn("catalog refresh failed", "connection", conn.Name, "error", err)
		return
	}

	if err := r.Catalog.Refresh(ctx, conn.ID, resources); err != nil {
		r.log.Error("failed to store snapshot", "connection", conn.Name, "error", err)
		return
	}

	r.log.Debug("catalog refreshed", "connection", conn.Name, "entries", len(resources))
}
