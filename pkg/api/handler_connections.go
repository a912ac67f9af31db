package api

import (
	"github.com/avorra/geobridge/pkg/manager"
	"github.com/avorra/geobridge/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type ListConnectionsResponse struct {
	Connections []models.Connection `json:"connections"`
	Total       int64               `json:"total"`
}

func (s *Server) CreateConnection(c fiber.Ctx) error {
	var req manager.CreateConnectionRequest

	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	conn, err := s.connections.Create(c.Context(), req)

	if err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(conn)
}

func (s *Server) ListConnections(c fiber.Ctx) error {
	conns, err := s.connections.List(c.Context())

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(ListConnectionsResponse{
		Connections: conns,
		Total:       int64(len(conns)),
	})
}

func (s *Server) GetConnection(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))

	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid connection id"})
	}

	conn, err := s.connections.Get(c.Context(), id)

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(conn)
}

func (s *Server) UpdateConnection(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))

	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid connection id"})
	}

	var req manager.UpdateConnectionRequest

	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	conn, err := s.connections.Update(c.Context(), id, req)

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(conn)
}

func (s *Server) DeleteConnection(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))

	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid connection id"})
	}

	if err := s.connections.Delete(c.Context(), id); err != nil {
		return s.fail(c, err)
	}

	return c.JSON(fiber.Map{"deleted": true})
}
