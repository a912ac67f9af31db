package api

import (
	"github.com/avorra/geobridge/pkg/manager"
	"github.com/avorra/geobridge/pkg/models"
	"github.com/avorra/geobridge/pkg/uploader"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type UploadJobResponse struct {
	Job    *models.UploadJob `json:"job"`
	Report uploader.Report   `json:"report"`
}

func (s *Server) EnqueueUpload(c fiber.Ctx) error {
	var req manager.EnqueueUploadRequest

	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	job, err := s.jobs.Enqueue(c.Context(), req)

	if err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UploadJobResponse{
		Job:    job,
		Report: uploader.BuildReport(job),
	})
}

func (s *Server) GetUpload(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))

	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid job id"})
	}

	job, err := s.jobs.Get(c.Context(), id)

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(UploadJobResponse{
		Job:    job,
		Report: uploader.BuildReport(job),
	})
}

func (s *Server) CancelUpload(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))

	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid job id"})
	}

	job, err := s.jobs.Cancel(c.Context(), id)

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(UploadJobResponse{
		Job:    job,
		Report: uploader.BuildReport(job),
	})
}
