package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type storeHealth interface {
	HealthCheck(ctx context.Context) error
}

type busHealth interface {
	HealthCheck() error
}

// RegisterRoutes wires the HTTP surface: health and metrics at the root
// and the versioned API, including the gateway callback, under /api/v1.
func RegisterRoutes(app *fiber.App, h *Handler, wh *WebhookHandler, bus busHealth, store storeHealth) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", healthHandler(bus, store))

	v1 := app.Group("/api/v1")
	// Registered before /rfqs/:id so the literal segment wins the match.
	v1.Post("/rfqs/webhook", wh.DeliveryStatus)

	v1.Post("/rfqs", h.CreateRfq)
	v1.Get("/rfqs", h.ListRfqs)
	v1.Get("/rfqs/:id", h.GetRfq)
	v1.Delete("/rfqs/:id", h.DeleteRfq)

	v1.Post("/rfqs/:id/send", h.SendRfq)
	v1.Post("/rfqs/:id/cancel", h.CancelRfq)
	// Old clients still post to /confirm; both routes award.
	v1.Post("/rfqs/:id/confirm", h.AwardRfq)
	v1.Post("/rfqs/:id/award", h.AwardRfq)

	v1.Post("/rfqs/:id/ingest", h.CreateQuote)
	v1.Post("/rfqs/:id/quotes", h.CreateQuote)
	v1.Get("/rfqs/:id/quotes", h.ListQuotes)
	v1.Get("/rfqs/:id/quotes/export", h.ExportQuotes)

	v1.Get("/rfqs/:id/send-attempts", h.ListAttempts)
	v1.Post("/rfqs/:id/send-attempts/:attemptId/status", h.OverrideAttempt)

	v1.Get("/rfqs/:id/contracts", h.ListContracts)
}

func healthHandler(bus busHealth, store storeHealth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := fiber.Map{}
		healthy := true

		if bus != nil {
			if err := bus.HealthCheck(); err != nil {
				checks["nats"] = err.Error()
				healthy = false
			} else {
				checks["nats"] = "ok"
			}
		}
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			if err := store.HealthCheck(ctx); err != nil {
				checks["store"] = err.Error()
				healthy = false
			} else {
				checks["store"] = "ok"
			}
		}

		status := "ok"
		code := fiber.StatusOK
		if !healthy {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{"status": status, "checks": checks})
	}
}
