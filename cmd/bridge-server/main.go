package main

import (
	"context"
	"log"
	"net/http"

	"github.com/avorra/geobridge/pkg/api"
	"github.com/avorra/geobridge/pkg/config"
	"github.com/avorra/geobridge/pkg/credentials"
	"github.com/avorra/geobridge/pkg/database"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/manager"
	"github.com/gofiber/fiber/v3"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)

	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogMode)

	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	defer zl.Sync()

	zl.Info("starting geobridge server")

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

	app := fiber.New(fiber.Config{
		AppName: "GeoBridge Server",
	})

	server := api.NewServer(db, clients, zl)
	server.SetupRoutes(app)

	zl.Info("server listening", "port", cfg.ServerPort)

	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		zl.Fatal("failed to start server", "error", err)
	}
}
