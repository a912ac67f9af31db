package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/models"
	"github.com/avorra/geobridge/pkg/search"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// connectionClient resolves the :id route param into the stored
// connection and a client speaking its dialect.
func (s *Server) connectionClient(c fiber.Ctx) (*models.Connection, geonode.Client, error) {
	id, err := uuid.Parse(c.Params("id"))

	if err != nil {
		return nil, nil, fmt.Errorf("%w: connection id", errInvalidID)
	}

	conn, err := s.connections.Get(c.Context(), id)

	if err != nil {
		return nil, nil, err
	}

	client, err := s.clients.For(c.Context(), conn)

	if err != nil {
		return nil, nil, err
	}

	return conn, client, nil
}

// connectionOnly resolves the :id route param without building a
// client; catalog reads never touch the remote instance.
func (s *Server) connectionOnly(c fiber.Ctx) (*models.Connection, error) {
	id, err := uuid.Parse(c.Params("id"))

	if err != nil {
		return nil, fmt.Errorf("%w: connection id", errInvalidID)
	}

	return s.connections.Get(c.Context(), id)
}

func (s *Server) SearchResources(c fiber.Ctx) error {
	_, client, err := s.connectionClient(c)

	if err != nil {
		return s.fail(c, err)
	}

	q := search.Query{
		Type:     c.Query("type"),
		Keyword:  c.Query("keyword"),
		Category: c.Query("category"),
		Access:   c.Query("access"),
		OrderBy:  c.Query("order_by"),
		Reverse:  c.Query("reverse") == "true",
	}

	if page, err := strconv.Atoi(c.Query("page", "1")); err == nil {
		q.Page = page
	}
	if size, err := strconv.Atoi(c.Query("page_size", "10")); err == nil {
		q.PageSize = size
	}

	if raw := c.Query("bbox"); raw != "" {
		bbox, err := parseBbox(raw)

		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}

		q.Bbox = bbox
	}

	page, err := s.engine.Search(c.Context(), client, q)

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(page)
}

// parseBbox reads "minx,miny,maxx,maxy".
func parseBbox(raw string) (*geonode.BBox, error) {
	parts := strings.Split(raw, ",")

	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be minx,miny,maxx,maxy")
	}

	vals := make([]float64, 4)

	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)

		if err != nil {
			return nil, fmt.Errorf("bbox ordinate %q is not a number", p)
		}

		vals[i] = v
	}

	return &geonode.BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}, nil
}
