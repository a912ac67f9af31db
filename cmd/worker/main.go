package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/avorra/geobridge/pkg/config"
	"github.com/avorra/geobridge/pkg/credentials"
	"github.com/avorra/geobridge/pkg/database"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/manager"
	"github.com/avorra/geobridge/pkg/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)

	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogMode)

	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	defer zl.Sync()

	zl.Info("starting geobridge worker")

	db, err := database.Connect(cfg)

	if err != nil {
		zl.Fatal("failed to connect to database", "error", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		zl.Fatal("failed to run migrations", "error", err)
	}

	clients := manager.NewClients(
		credentials.NewEnvStore(),
		&http.Client{Timeout: cfg.HTTPTimeout()},
		zl,
	)

	w := worker.NewWorker(db, clients, cfg, zl)

	go w.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.Stop()
}
