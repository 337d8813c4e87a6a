package handler

import (
	"quiz-forge/internal/domain"
	"quiz-forge/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// HealthHandler reports readiness of the service's backing stores.
type HealthHandler struct {
	db    *sqlx.DB
	cache domain.Cache
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(db *sqlx.DB, cache domain.Cache) *HealthHandler {
	return &HealthHandler{
		db:    db,
		cache: cache,
	}
}

// Check handles GET /healthz
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	checks := fiber.Map{
		"database": "ok",
		"cache":    "ok",
	}
	healthy := true

	if err := h.db.PingContext(c.Context()); err != nil {
		logger.Get().Error("Database health check failed", zap.Error(err))
		checks["database"] = "unavailable"
		healthy = false
	}
	if err := h.cache.Ping(c.Context()); err != nil {
		logger.Get().Error("Cache health check failed", zap.Error(err))
		checks["cache"] = "unavailable"
		healthy = false
	}

	status := fiber.StatusOK
	state := "healthy"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		state = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": state,
		"checks": checks,
	})
}
