package worker

import (
	"context"

	"github.com/avorra/geobridge/pkg/catalog"
	"github.com/avorra/geobridge/pkg/config"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/manager"
	"github.com/avorra/geobridge/pkg/uploader"
	"gorm.io/gorm"
)

// Worker runs the background half of the bridge: the upload job
// runner and the periodic catalog refresher.
type Worker struct {
	runner    *uploader.Runner
	refresher *Refresher
	cancel    context.CancelFunc

	log *logger.Logger
}

func NewWorker(db *gorm.DB, clients *manager.Clients, cfg *config.Config, log *logger.Logger) *Worker {
	cat := catalog.New(db, log)

	return &Worker{
		runner:    uploader.NewRunner(db, clients, cfg.UploadPollInterval(), log),
		refresher: NewRefresher(db, clients, cat, cfg.RefreshInterval(), log),
		log:       log.With("component", "worker"),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("worker starting")

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.runner.Start(ctx)
	go w.refresher.Start(ctx)

	<-ctx.Done()
	w.log.Info("worker stopped")
}

func (w *Worker) Stop() {
	if w.cancel != nil {
		w.log.Info("worker shutting down")
		w.cancel()
	}
}
