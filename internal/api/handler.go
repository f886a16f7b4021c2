package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

// RfqService is the slice of the lifecycle engine the HTTP layer consumes.
type RfqService interface {
	CreateRfq(ctx context.Context, r *rfq.Rfq) (*rfq.Rfq, error)
	GetRfq(ctx context.Context, id int64) (*rfq.Rfq, error)
	ListRfqs(ctx context.Context) ([]rfq.Rfq, error)
	DeleteRfq(ctx context.Context, id int64) error
	Send(ctx context.Context, rfqID int64, req rfq.SendRequest, actorID *int64) ([]rfq.SendAttempt, error)
	IngestQuote(ctx context.Context, rfqID int64, req rfq.IngestRequest) (*rfq.Quote, error)
	Award(ctx context.Context, rfqID int64, req rfq.AwardRequest, actorID *int64) (*rfq.Rfq, error)
	Cancel(ctx context.Context, id int64, reason string, actorID *int64) (*rfq.Rfq, error)
	ListSendAttempts(ctx context.Context, rfqID int64) ([]rfq.SendAttempt, error)
	OverrideAttemptStatus(ctx context.Context, rfqID, attemptID int64, upd rfq.AttemptStatusUpdate, actorID *int64) (*rfq.SendAttempt, error)
	ApplyDeliveryCallback(ctx context.Context, cb rfq.DeliveryCallback) (*rfq.SendAttempt, error)
	ListContracts(ctx context.Context, rfqID int64) ([]rfq.Contract, error)
}

type Handler struct {
	logger  *zap.Logger
	service RfqService
}

func NewHandler(logger *zap.Logger, service RfqService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) CreateRfq(c *fiber.Ctx) error {
	var req RfqCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	r := &rfq.Rfq{
		RfqNumber:    req.RfqNumber,
		SalesOrderID: req.SalesOrderID,
		DealID:       req.DealID,
		QuantityMT:   req.QuantityMT,
		Period:       req.Period,
		Status:       rfq.Status(req.Status),
		MessageText:  req.MessageText,
		Quotes:       req.Quotes,
		Invitations:  req.Invitations,
	}
	created, err := h.service.CreateRfq(c.Context(), r)
	if err != nil {
		h.logger.Error("api.create_rfq.failed", zap.Error(err))
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) ListRfqs(c *fiber.Ctx) error {
	rfqs, err := h.service.ListRfqs(c.Context())
	if err != nil {
		h.logger.Error("api.list_rfqs.failed", zap.Error(err))
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"rfqs": rfqs, "count": len(rfqs)})
}

func (h *Handler) GetRfq(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	r, err := h.service.GetRfq(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(r)
}

func (h *Handler) DeleteRfq(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	if err := h.service.DeleteRfq(c.Context(), id); err != nil {
		h.logger.Error("api.delete_rfq.failed", zap.Int64("rfq_id", id), zap.Error(err))
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) SendRfq(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	var body SendBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	if err := body.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if body.Channel == "" {
		body.Channel = rfq.ChannelAuto
	}

	attempts, err := h.service.Send(c.Context(), id, rfq.SendRequest{
		Channel:          body.Channel,
		Metadata:         body.Metadata,
		IdempotencyKey:   body.IdempotencyKey,
		Retry:            body.Retry,
		RetryOfAttemptID: body.RetryOfAttemptID,
		MaxRetries:       body.MaxRetries,
	}, actorID(c))
	if err != nil {
		h.logger.Error("api.send_rfq.failed", zap.Int64("rfq_id", id), zap.Error(err))
		return writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"attempts": attempts, "count": len(attempts)})
}

func (h *Handler) CancelRfq(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	var body CancelBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := body.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	r, err := h.service.Cancel(c.Context(), id, body.Motivo, actorID(c))
	if err != nil {
		h.logger.Error("api.cancel_rfq.failed", zap.Int64("rfq_id", id), zap.Error(err))
		return writeError(c, err)
	}
	return c.JSON(r)
}

// AwardRfq serves both the /confirm and /award routes.
func (h *Handler) AwardRfq(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	var body AwardBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := body.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	r, err := h.service.Award(c.Context(), id, rfq.AwardRequest{
		QuoteID:        body.QuoteID,
		Reason:         body.Motivo,
		HedgeID:        body.HedgeID,
		HedgeReference: body.HedgeReference,
	}, actorID(c))
	if err != nil {
		h.logger.Error("api.award_rfq.failed", zap.Int64("rfq_id", id), zap.Error(err))
		return writeError(c, err)
	}
	return c.JSON(r)
}

func (h *Handler) CreateQuote(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	var body QuoteBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := body.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	q, err := h.service.IngestQuote(c.Context(), id, rfq.IngestRequest{
		CounterpartyID:   body.CounterpartyID,
		CounterpartyName: body.CounterpartyName,
		Price:            body.Price,
		PriceType:        body.PriceType,
		VolumeMT:         body.VolumeMT,
		ValidUntil:       body.ValidUntil,
		Notes:            body.Notes,
		Channel:          body.Channel,
		MessageID:        body.MessageID,
		QuoteGroupID:     body.QuoteGroupID,
		LegSide:          body.LegSide,
	})
	if err != nil {
		h.logger.Error("api.create_quote.failed", zap.Int64("rfq_id", id), zap.Error(err))
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(q)
}

func (h *Handler) ListQuotes(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	r, err := h.service.GetRfq(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"quotes": r.Quotes, "count": len(r.Quotes)})
}

func (h *Handler) ListAttempts(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	attempts, err := h.service.ListSendAttempts(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"attempts": attempts, "count": len(attempts)})
}

func (h *Handler) OverrideAttempt(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	attemptID, err := pathID(c, "attemptId")
	if err != nil {
		return badRequest(c, "invalid attempt id")
	}
	var body AttemptOverrideBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := body.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	attempt, err := h.service.OverrideAttemptStatus(c.Context(), id, attemptID, rfq.AttemptStatusUpdate{
		Status:            rfq.SendStatus(body.Status),
		ProviderMessageID: body.ProviderMessageID,
		Error:             body.Error,
		Metadata:          body.Metadata,
		IdempotencyKey:    body.IdempotencyKey,
	}, actorID(c))
	if err != nil {
		h.logger.Error("api.override_attempt.failed",
			zap.Int64("rfq_id", id), zap.Int64("attempt_id", attemptID), zap.Error(err))
		return writeError(c, err)
	}
	return c.JSON(attempt)
}

func (h *Handler) ListContracts(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid rfq id")
	}
	contracts, err := h.service.ListContracts(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"contracts": contracts, "count": len(contracts)})
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := parseInt64(c.Params(name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func parseInt64(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// actorID reads the authenticated user forwarded by the edge proxy. The
// engine itself is deployed behind the office gateway and does not
// re-authenticate.
func actorID(c *fiber.Ctx) *int64 {
	raw := strings.TrimSpace(c.Get("X-User-Id"))
	if raw == "" {
		return nil
	}
	id, err := parseInt64(raw)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
