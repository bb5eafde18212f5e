package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/config"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck returns a handler that reports application health information.
// A nil db reports the database as "unknown".
func HealthCheck(cfg config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Database:    "unknown",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if db != nil {
			payload.Database = "ok"
			sqlDB, err := db.DB()
			if err == nil {
				ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
				err = sqlDB.PingContext(ctx)
				cancel()
			}
			if err != nil {
				payload.Status = "degraded"
				payload.Database = "unreachable"
				return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
