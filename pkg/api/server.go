package api

import (
	"errors"

	"github.com/avorra/geobridge/pkg/catalog"
	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/logger"
	"github.com/avorra/geobridge/pkg/manager"
	"github.com/avorra/geobridge/pkg/search"
	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"
)

// ErrorResponse carries the failure kind alongside the message so the
// host can decide between retrying (network), re-prompting for
// credentials (auth), and surfacing the server's message.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type Server struct {
	db          *gorm.DB
	connections *manager.ConnectionManager
	jobs        *manager.JobManager
	clients     *manager.Clients
	catalog     *catalog.Catalog
	engine      *search.Engine
	log         *logger.Logger
}

func NewServer(db *gorm.DB, clients *manager.Clients, log *logger.Logger) *Server {
	return &Server{
		db:          db,
		connections: manager.NewConnectionManager(db, clients),
		jobs:        manager.NewJobManager(db, clients),
		clients:     clients,
		catalog:     catalog.New(db, log),
		engine:      search.NewEngine(log),
		log:         log.With("component", "api"),
	}
}

func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	v1 := app.Group("/api/v1", s.AuthMiddleware())

	// Connection lifecycle
	v1.Post("/connections", s.CreateConnection)
	v1.Get("/connections", s.ListConnections)
	v1.Get("/connections/:id", s.GetConnection)
	v1.Put("/connections/:id", s.UpdateConnection)
	v1.Delete("/connections/:id", s.DeleteConnection)

	// Search and catalog
	v1.Get("/connections/:id/search", s.SearchResources)
	v1.Post("/connections/:id/refresh", s.RefreshCatalog)
	v1.Get("/connections/:id/resources", s.ListCatalogEntries)
	v1.Get("/connections/:id/resources/:remote_id", s.GetResource)
	v1.Get("/connections/:id/resources/:remote_id/style", s.GetStyle)
	v1.Delete("/connections/:id/resources/:remote_id", s.DeleteResource)

	// Upload workflow
	v1.Post("/uploads", s.EnqueueUpload)
	v1.Get("/uploads/:id", s.GetUpload)
	v1.Post("/uploads/:id/cancel", s.CancelUpload)
}

var errInvalidID = errors.New("invalid id")

// fail maps an error to the facade's status codes. Remote failures
// come back as gateway-style statuses since the bridge itself is
// healthy; the kind tells the host what to do next.
func (s *Server) fail(c fiber.Ctx, err error) error {
	if errors.Is(err, errInvalidID) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "not found"})
	}

	var ge *geonode.Error

	if errors.As(err, &ge) {
		status := fiber.StatusBadGateway

		switch ge.Kind {
		case geonode.KindNetwork:
			status = fiber.StatusGatewayTimeout
		case geonode.KindAPIIncompatible:
			status = fiber.StatusUnprocessableEntity
		}

		return c.Status(status).JSON(ErrorResponse{Error: ge.Message, Kind: string(ge.Kind)})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
}
