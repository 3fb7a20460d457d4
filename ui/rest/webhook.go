package rest

import (
	"context"
	"time"

	"github.com/AzielCF/az-social/automation/application"
	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/pkg/msgworker"
	"github.com/AzielCF/az-social/pkg/utils"
	"github.com/AzielCF/az-social/platforms/instagram"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// InboundHandler consumes one parsed webhook event.
type InboundHandler interface {
	HandleInbound(ctx context.Context, ev domain.InboundEvent) (application.InboundResult, error)
}

type Webhook struct {
	Handler     InboundHandler
	Pool        *msgworker.Pool
	AppSecret   string
	VerifyToken string
}

func InitRestWebhook(app fiber.Router, handler InboundHandler, pool *msgworker.Pool, appSecret, verifyToken string) Webhook {
	rest := Webhook{Handler: handler, Pool: pool, AppSecret: appSecret, VerifyToken: verifyToken}

	app.Get("/webhooks/instagram", rest.Verify)
	app.Post("/webhooks/instagram", rest.Receive)

	return rest
}

// Verify answers Meta's subscription handshake.
func (h *Webhook) Verify(c *fiber.Ctx) error {
	if h.VerifyToken == "" || c.Query("hub.mode") != "subscribe" || c.Query("hub.verify_token") != h.VerifyToken {
		return c.Status(fiber.StatusForbidden).JSON(utils.ResponseData{Status: 403, Code: "FORBIDDEN", Message: "Verification failed"})
	}
	return c.SendString(c.Query("hub.challenge"))
}

// Receive authenticates the delivery and hands each event to the worker
// pool. Events from one conversation run in arrival order. A full pool
// answers 503 so Meta redelivers; the dedup guard absorbs the replay.
func (h *Webhook) Receive(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	if !instagram.VerifySignature(h.AppSecret, body, c.Get("X-Hub-Signature-256")) {
		logrus.Warn("[WEBHOOK] Rejected delivery with bad signature")
		return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{Status: 401, Code: "UNAUTHORIZED", Message: "Invalid signature"})
	}

	events, err := instagram.ParseWebhook(body, time.Now().UTC())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	dropped := 0
	for _, ev := range events {
		ev := ev
		run := func(ctx context.Context) error {
			res, err := h.Handler.HandleInbound(ctx, ev)
			if err != nil {
				logrus.WithError(err).Warnf("[WEBHOOK] Failed to handle %s %s", ev.Surface, ev.SourceID)
				return err
			}
			if !res.Duplicate {
				logrus.Debugf("[WEBHOOK] %s %s -> %s", ev.Surface, ev.SourceID, res.Decision.Action)
			}
			return nil
		}

		if h.Pool == nil {
			_ = run(c.UserContext())
			continue
		}
		if !h.Pool.TryDispatch(msgworker.Job{AccountKey: ev.RecipientID, ThreadKey: threadKey(ev), Handler: run}) {
			dropped++
		}
	}

	if dropped > 0 {
		logrus.Warnf("[WEBHOOK] Inbound pool full, dropped %d of %d events", dropped, len(events))
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{Status: 503, Code: "SERVICE_UNAVAILABLE", Message: "Inbound queue full"})
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Webhook accepted",
		Results: fiber.Map{"events": len(events)},
	})
}

// threadKey groups comments by post and messages by sender.
func threadKey(ev domain.InboundEvent) string {
	if ev.Surface == domain.SurfaceComments {
		return "media:" + ev.MediaID
	}
	return "dm:" + ev.AuthorID
}
