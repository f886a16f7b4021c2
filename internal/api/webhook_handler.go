package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/alcast-trading/rfq-engine/internal/rfq"
	"github.com/alcast-trading/rfq-engine/internal/webhook"
)

type authenticator interface {
	Authenticate(signature, apiKey, timestamp string, body []byte) (webhook.Result, error)
}

// WebhookHandler receives gateway delivery-status callbacks. It
// authenticates against the raw body before any parsing.
type WebhookHandler struct {
	logger       *zap.Logger
	service      RfqService
	auth         authenticator
	sigHeader    string
	apiKeyHeader string
	tsHeader     string
}

func NewWebhookHandler(logger *zap.Logger, service RfqService, auth authenticator, sigHeader, apiKeyHeader, tsHeader string) *WebhookHandler {
	return &WebhookHandler{
		logger:       logger,
		service:      service,
		auth:         auth,
		sigHeader:    sigHeader,
		apiKeyHeader: apiKeyHeader,
		tsHeader:     tsHeader,
	}
}

func (h *WebhookHandler) DeliveryStatus(c *fiber.Ctx) error {
	body := c.Body()
	result, err := h.auth.Authenticate(c.Get(h.sigHeader), c.Get(h.apiKeyHeader), c.Get(h.tsHeader), body)
	if err != nil {
		h.logger.Warn("webhook.rejected", zap.String("result", string(result)), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var payload WebhookBody
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid webhook payload")
	}
	if err := payload.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	attempt, err := h.service.ApplyDeliveryCallback(c.Context(), rfq.DeliveryCallback{
		ProviderMessageID: payload.providerMessageID(),
		Status:            rfq.SendStatus(payload.Status),
		Error:             payload.Error,
		Metadata:          payload.Metadata,
	})
	if err != nil {
		h.logger.Warn("webhook.apply_failed",
			zap.String("provider_message_id", payload.providerMessageID()),
			zap.String("status", payload.Status), zap.Error(err))
		return writeError(c, err)
	}

	h.logger.Info("webhook.applied",
		zap.Int64("attempt_id", attempt.ID),
		zap.Int64("rfq_id", attempt.RfqID),
		zap.String("status", string(attempt.Status)))
	return c.JSON(fiber.Map{"status": "ok", "attempt_id": attempt.ID})
}
