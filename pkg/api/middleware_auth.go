package api

import (
	"github.com/avorra/geobridge/pkg/models"
	"github.com/gofiber/fiber/v3"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) AuthMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")

		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "missing api key"})
		}

		var keys []models.ProviderAPIKey

		err := s.db.
			WithContext(c.Context()).
			Find(&keys).
			Error

		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
		}

		for _, key := range keys {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(apiKey)) == nil {
				c.Locals("api_key_name", key.Name)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "invalid api key"})
	}
}
