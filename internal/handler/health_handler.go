package handler

import (
	"context"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check requests.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler. checks maps a dependency
// name, such as "database", to its pinger.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Check pings every dependency.
// Returns 200 OK with {"status": "healthy", "checks": {...}} when all are reachable.
// Returns 503 Service Unavailable with {"status": "unhealthy", ...} otherwise.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	results := make(fiber.Map, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(c.Context()); err != nil {
			log.Error().Err(err).Str("dependency", name).Msg("health check failed: dependency unreachable")
			results[name] = "unreachable"
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"checks": results,
		})
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
		"checks": results,
	})
}
