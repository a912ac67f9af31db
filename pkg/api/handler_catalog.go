package api

import (
	"github.com/avorra/geobridge/pkg/catalog"
	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/models"
	"github.com/gofiber/fiber/v3"
)

type RefreshCatalogResponse struct {
	ConnectionID string `json:"connection_id"`
	Entries      int    `json:"entries"`
}

type ListCatalogEntriesResponse struct {
	Entries []models.CatalogEntry `json:"entries"`
	Total   int64                 `json:"total"`
}

// RefreshCatalog re-fetches the full resource list and replaces the
// connection's snapshot.
func (s *Server) RefreshCatalog(c fiber.Ctx) error {
	conn, client, err := s.connectionClient(c)

	if err != nil {
		return s.fail(c, err)
	}

	resources, err := catalog.FetchAll(c.Context(), client)

	if err != nil {
		return s.fail(c, err)
	}

	if err := s.catalog.Refresh(c.Context(), conn.ID, resources); err != nil {
		return s.fail(c, err)
	}

	return c.JSON(RefreshCatalogResponse{
		ConnectionID: conn.ID.String(),
		Entries:      len(resources),
	})
}

func (s *Server) ListCatalogEntries(c fiber.Ctx) error {
	conn, err := s.connectionOnly(c)

	if err != nil {
		return s.fail(c, err)
	}

	entries, err := s.catalog.List(c.Context(), conn.ID, c.Query("type"))

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(ListCatalogEntriesResponse{
		Entries: entries,
		Total:   int64(len(entries)),
	})
}

// GetResource reads the live resource detail from the server, so the
// host always sees current metadata and style attachments.
func (s *Server) GetResource(c fiber.Ctx) error {
	_, client, err := s.connectionClient(c)

	if err != nil {
		return s.fail(c, err)
	}

	resource, err := client.GetResource(c.Context(), c.Params("remote_id"))

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(resource)
}

// GetStyle streams the resource's default SLD document.
func (s *Server) GetStyle(c fiber.Ctx) error {
	conn, client, err := s.connectionClient(c)

	if err != nil {
		return s.fail(c, err)
	}

	entry, err := s.catalog.Get(c.Context(), conn.ID, geonode.ResourceTypeLayer, c.Params("remote_id"))

	if err != nil {
		return s.fail(c, err)
	}

	if entry.DefaultStyleURL == "" {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "resource has no default style"})
	}

	body, err := client.GetStyle(c.Context(), entry.DefaultStyleURL)

	if err != nil {
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.ogc.sld+xml")

	return c.Send(body)
}

// DeleteResource deletes on the server and drops the catalog entry.
// Deleting an already-absent resource reports success.
func (s *Server) DeleteResource(c fiber.Ctx) error {
	conn, client, err := s.connectionClient(c)

	if err != nil {
		return s.fail(c, err)
	}

	remoteID := c.Params("remote_id")

	if err := client.DeleteResource(c.Context(), remoteID); err != nil {
		return s.fail(c, err)
	}

	if err := s.catalog.Remove(c.Context(), conn.ID, geonode.ResourceTypeLayer, remoteID); err != nil {
		return s.fail(c, err)
	}

	return c.JSON(fiber.Map{"deleted": true})
}
