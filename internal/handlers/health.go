package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pokeloco/pokebot-backend/database"
)

// HealthCheck reports service and database status for monitoring.
func HealthCheck(useMemoryStore bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "healthy"
		statusCode := fiber.StatusOK
		dbHealthy := true

		if !useMemoryStore && database.DB != nil {
			sqlDB, err := database.DB.DB()
			if err != nil || sqlDB.Ping() != nil {
				status = "unhealthy"
				statusCode = fiber.StatusServiceUnavailable
				dbHealthy = false
			}
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"database": dbHealthy,
			},
		})
	}
}
