package rest

import (
	"context"

	"github.com/AzielCF/az-social/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// Pinger is any backing service the health route should probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	Checks map[string]Pinger
}

type componentStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func InitRestHealth(app fiber.Router, checks map[string]Pinger) Health {
	handler := Health{Checks: checks}
	app.Get("/health", handler.GetStatus)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	statuses := make(map[string]componentStatus, len(h.Checks))
	healthy := true
	for name, p := range h.Checks {
		st := componentStatus{Healthy: true}
		if err := p.Ping(c.UserContext()); err != nil {
			st = componentStatus{Error: err.Error()}
			healthy = false
		}
		statuses[name] = st
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  503,
			Code:    "UNHEALTHY",
			Message: "One or more components are down",
			Results: statuses,
		})
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: statuses,
	})
}
