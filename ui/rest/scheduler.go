package rest

import (
	"context"
	"time"

	"github.com/AzielCF/az-social/automation/application"
	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/pkg/msgworker"
	"github.com/AzielCF/az-social/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// Ticker is the part of the dispatcher the scheduler routes need.
type Ticker interface {
	RunTick(ctx context.Context, now time.Time) (application.TickReport, error)
	Stats() application.DispatcherStats
}

// StatusCounter reports how many actions sit in each status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.ActionStatus]int64, error)
}

type Scheduler struct {
	Dispatcher Ticker
	Counter    StatusCounter
	Pool       *msgworker.Pool
}

type schedulerStats struct {
	Dispatcher application.DispatcherStats   `json:"dispatcher"`
	Queue      map[domain.ActionStatus]int64 `json:"queue"`
	Inbound    *msgworker.PoolStats          `json:"inbound,omitempty"`
}

func InitRestScheduler(app fiber.Router, dispatcher Ticker, counter StatusCounter, pool *msgworker.Pool) Scheduler {
	rest := Scheduler{Dispatcher: dispatcher, Counter: counter, Pool: pool}

	app.Get("/scheduler/stats", rest.Stats)
	app.Post("/scheduler/tick", rest.Tick)

	return rest
}

func (h *Scheduler) Stats(c *fiber.Ctx) error {
	stats := schedulerStats{Dispatcher: h.Dispatcher.Stats()}
	if h.Counter != nil {
		counts, err := h.Counter.CountByStatus(c.UserContext())
		utils.PanicIfNeeded(httpError(err))
		stats.Queue = counts
	}
	if h.Pool != nil {
		pool := h.Pool.Stats()
		stats.Inbound = &pool
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Scheduler stats fetched",
		Results: stats,
	})
}

// Tick runs one dispatch pass immediately.
func (h *Scheduler) Tick(c *fiber.Ctx) error {
	report, err := h.Dispatcher.RunTick(c.UserContext(), time.Now().UTC())
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tick completed",
		Results: report,
	})
}
