package health

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Handlers struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// JSON serves the machine-readable health report.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	report := CollectHealth(c.Context(), h.DB, h.Rdb)
	status := fiber.StatusOK
	if report.Status != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}
