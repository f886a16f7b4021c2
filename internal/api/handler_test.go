package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

// --- Mock Service ---

type mockService struct {
	createFn    func(ctx context.Context, r *rfq.Rfq) (*rfq.Rfq, error)
	getFn       func(ctx context.Context, id int64) (*rfq.Rfq, error)
	listFn      func(ctx context.Context) ([]rfq.Rfq, error)
	deleteFn    func(ctx context.Context, id int64) error
	sendFn      func(ctx context.Context, rfqID int64, req rfq.SendRequest, actorID *int64) ([]rfq.SendAttempt, error)
	ingestFn    func(ctx context.Context, rfqID int64, req rfq.IngestRequest) (*rfq.Quote, error)
	awardFn     func(ctx context.Context, rfqID int64, req rfq.AwardRequest, actorID *int64) (*rfq.Rfq, error)
	cancelFn    func(ctx context.Context, id int64, reason string, actorID *int64) (*rfq.Rfq, error)
	attemptsFn  func(ctx context.Context, rfqID int64) ([]rfq.SendAttempt, error)
	overrideFn  func(ctx context.Context, rfqID, attemptID int64, upd rfq.AttemptStatusUpdate, actorID *int64) (*rfq.SendAttempt, error)
	callbackFn  func(ctx context.Context, cb rfq.DeliveryCallback) (*rfq.SendAttempt, error)
	contractsFn func(ctx context.Context, rfqID int64) ([]rfq.Contract, error)
}

func (m *mockService) CreateRfq(ctx context.Context, r *rfq.Rfq) (*rfq.Rfq, error) {
	if m.createFn != nil {
		return m.createFn(ctx, r)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) GetRfq(ctx context.Context, id int64) (*rfq.Rfq, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) ListRfqs(ctx context.Context) ([]rfq.Rfq, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) DeleteRfq(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockService) Send(ctx context.Context, rfqID int64, req rfq.SendRequest, actorID *int64) ([]rfq.SendAttempt, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, rfqID, req, actorID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) IngestQuote(ctx context.Context, rfqID int64, req rfq.IngestRequest) (*rfq.Quote, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, rfqID, req)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) Award(ctx context.Context, rfqID int64, req rfq.AwardRequest, actorID *int64) (*rfq.Rfq, error) {
	if m.awardFn != nil {
		return m.awardFn(ctx, rfqID, req, actorID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) Cancel(ctx context.Context, id int64, reason string, actorID *int64) (*rfq.Rfq, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, id, reason, actorID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) ListSendAttempts(ctx context.Context, rfqID int64) ([]rfq.SendAttempt, error) {
	if m.attemptsFn != nil {
		return m.attemptsFn(ctx, rfqID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) OverrideAttemptStatus(ctx context.Context, rfqID, attemptID int64, upd rfq.AttemptStatusUpdate, actorID *int64) (*rfq.SendAttempt, error) {
	if m.overrideFn != nil {
		return m.overrideFn(ctx, rfqID, attemptID, upd, actorID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) ApplyDeliveryCallback(ctx context.Context, cb rfq.DeliveryCallback) (*rfq.SendAttempt, error) {
	if m.callbackFn != nil {
		return m.callbackFn(ctx, cb)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) ListContracts(ctx context.Context, rfqID int64) ([]rfq.Contract, error) {
	if m.contractsFn != nil {
		return m.contractsFn(ctx, rfqID)
	}
	return nil, fmt.Errorf("not implemented")
}

// --- Test Helpers ---

func newTestApp(svc RfqService) *fiber.App {
	app := fiber.New()
	h := NewHandler(zap.NewNop(), svc)
	v1 := app.Group("/api/v1")
	v1.Post("/rfqs", h.CreateRfq)
	v1.Get("/rfqs", h.ListRfqs)
	v1.Get("/rfqs/:id", h.GetRfq)
	v1.Delete("/rfqs/:id", h.DeleteRfq)
	v1.Post("/rfqs/:id/send", h.SendRfq)
	v1.Post("/rfqs/:id/cancel", h.CancelRfq)
	v1.Post("/rfqs/:id/award", h.AwardRfq)
	v1.Post("/rfqs/:id/ingest", h.CreateQuote)
	v1.Post("/rfqs/:id/quotes", h.CreateQuote)
	v1.Get("/rfqs/:id/quotes", h.ListQuotes)
	v1.Get("/rfqs/:id/quotes/export", h.ExportQuotes)
	v1.Get("/rfqs/:id/send-attempts", h.ListAttempts)
	v1.Post("/rfqs/:id/send-attempts/:attemptId/status", h.OverrideAttempt)
	v1.Get("/rfqs/:id/contracts", h.ListContracts)
	return app
}

func jsonReq(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// --- CreateRfq ---

func TestCreateRfqHandler_Success(t *testing.T) {
	svc := &mockService{
		createFn: func(ctx context.Context, r *rfq.Rfq) (*rfq.Rfq, error) {
			assert.Equal(t, "RFQ-2026-042", r.RfqNumber)
			assert.Equal(t, int64(7), r.SalesOrderID)
			assert.True(t, r.QuantityMT.Equal(decimal.NewFromInt(500)))
			created := *r
			created.ID = 1
			created.Status = rfq.StatusDraft
			created.CreatedAt = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
			return &created, nil
		},
	}
	app := newTestApp(svc)

	body := `{
		"rfq_number": "RFQ-2026-042",
		"so_id": 7,
		"quantity_mt": "500",
		"period": "2026-04",
		"message_text": "RFQ for 500 MT"
	}`
	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs", body), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var result rfq.Rfq
	decodeBody(t, resp, &result)
	assert.Equal(t, int64(1), result.ID)
	assert.Equal(t, rfq.StatusDraft, result.Status)
}

func TestCreateRfqHandler_InvalidJSON(t *testing.T) {
	app := newTestApp(&mockService{})

	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs", "{invalid"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateRfqHandler_MissingRfqNumber(t *testing.T) {
	app := newTestApp(&mockService{})

	body := `{"so_id": 7, "quantity_mt": "500", "period": "2026-04"}`
	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs", body), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	decodeBody(t, resp, &result)
	assert.Contains(t, result["error"], "rfq_number is required")
}

func TestCreateRfqHandler_BadStatus(t *testing.T) {
	app := newTestApp(&mockService{})

	body := `{"rfq_number": "RFQ-1", "so_id": 7, "quantity_mt": "500", "period": "2026-04", "status": "bogus"}`
	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs", body), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// --- GetRfq / ListRfqs / DeleteRfq ---

func TestGetRfqHandler_NotFound(t *testing.T) {
	svc := &mockService{
		getFn: func(ctx context.Context, id int64) (*rfq.Rfq, error) {
			return nil, fmt.Errorf("%w: rfq %d", rfq.ErrNotFound, id)
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodGet, "/api/v1/rfqs/99", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetRfqHandler_BadID(t *testing.T) {
	app := newTestApp(&mockService{})

	resp, err := app.Test(jsonReq(t, http.MethodGet, "/api/v1/rfqs/abc", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListRfqsHandler(t *testing.T) {
	svc := &mockService{
		listFn: func(ctx context.Context) ([]rfq.Rfq, error) {
			return []rfq.Rfq{{ID: 2}, {ID: 1}}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodGet, "/api/v1/rfqs", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Rfqs  []rfq.Rfq `json:"rfqs"`
		Count int       `json:"count"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, int64(2), result.Rfqs[0].ID)
}

func TestDeleteRfqHandler(t *testing.T) {
	var deleted int64
	svc := &mockService{
		deleteFn: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodDelete, "/api/v1/rfqs/5", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(5), deleted)
}

// --- SendRfq ---

func TestSendRfqHandler_DefaultsToAuto(t *testing.T) {
	var got rfq.SendRequest
	svc := &mockService{
		sendFn: func(ctx context.Context, rfqID int64, req rfq.SendRequest, actorID *int64) ([]rfq.SendAttempt, error) {
			got = req
			pm := "pm-1"
			return []rfq.SendAttempt{{ID: 1, RfqID: rfqID, Channel: "whatsapp", Status: rfq.SendSent, ProviderMessageID: &pm}}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/send", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, rfq.ChannelAuto, got.Channel)

	var result struct {
		Attempts []rfq.SendAttempt `json:"attempts"`
		Count    int               `json:"count"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, rfq.SendSent, result.Attempts[0].Status)
}

func TestSendRfqHandler_PassesBodyAndActor(t *testing.T) {
	var got rfq.SendRequest
	var actor *int64
	svc := &mockService{
		sendFn: func(ctx context.Context, rfqID int64, req rfq.SendRequest, actorID *int64) ([]rfq.SendAttempt, error) {
			got, actor = req, actorID
			return []rfq.SendAttempt{{ID: 2}}, nil
		},
	}
	app := newTestApp(svc)

	body := `{"channel": "email", "idempotency_key": "send-1", "retry": true, "max_retries": 3}`
	req := jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/send", body)
	req.Header.Set("X-User-Id", "41")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "email", got.Channel)
	assert.Equal(t, "send-1", got.IdempotencyKey)
	assert.True(t, got.Retry)
	assert.Equal(t, 3, got.MaxRetries)
	require.NotNil(t, actor)
	assert.Equal(t, int64(41), *actor)
}

func TestSendRfqHandler_InvalidTransition(t *testing.T) {
	svc := &mockService{
		sendFn: func(ctx context.Context, rfqID int64, req rfq.SendRequest, actorID *int64) ([]rfq.SendAttempt, error) {
			return nil, fmt.Errorf("%w: rfq status awarded cannot be sent", rfq.ErrInvalidTransition)
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/send", `{"channel": "email"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	decodeBody(t, resp, &result)
	assert.Contains(t, result["error"], "cannot be sent")
}

// --- CancelRfq ---

func TestCancelRfqHandler(t *testing.T) {
	var gotReason string
	svc := &mockService{
		cancelFn: func(ctx context.Context, id int64, reason string, actorID *int64) (*rfq.Rfq, error) {
			gotReason = reason
			return &rfq.Rfq{ID: id, Status: rfq.StatusFailed, CancelReason: &reason}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/cancel", `{"motivo": "client pulled order"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "client pulled order", gotReason)

	var result rfq.Rfq
	decodeBody(t, resp, &result)
	assert.Equal(t, rfq.StatusFailed, result.Status)
}

func TestCancelRfqHandler_MissingMotivo(t *testing.T) {
	app := newTestApp(&mockService{})

	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/cancel", `{}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	decodeBody(t, resp, &result)
	assert.Contains(t, result["error"], "motivo is required")
}

// --- AwardRfq ---

func TestAwardRfqHandler(t *testing.T) {
	var got rfq.AwardRequest
	svc := &mockService{
		awardFn: func(ctx context.Context, rfqID int64, req rfq.AwardRequest, actorID *int64) (*rfq.Rfq, error) {
			got = req
			rank := 1
			return &rfq.Rfq{ID: rfqID, Status: rfq.StatusAwarded, WinnerQuoteID: &req.QuoteID, WinnerRank: &rank}, nil
		},
	}
	app := newTestApp(svc)

	body := `{"quote_id": 12, "motivo": "best price", "hedge_id": 99}`
	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/award", body), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(12), got.QuoteID)
	assert.Equal(t, "best price", got.Reason)
	require.NotNil(t, got.HedgeID)
	assert.Equal(t, int64(99), *got.HedgeID)

	var result rfq.Rfq
	decodeBody(t, resp, &result)
	assert.Equal(t, rfq.StatusAwarded, result.Status)
	require.NotNil(t, result.WinnerRank)
	assert.Equal(t, 1, *result.WinnerRank)
}

func TestAwardRfqHandler_UnbalancedGroup(t *testing.T) {
	svc := &mockService{
		awardFn: func(ctx context.Context, rfqID int64, req rfq.AwardRequest, actorID *int64) (*rfq.Rfq, error) {
			return nil, fmt.Errorf("%w: trade group g1 is missing a sell leg", rfq.ErrValidation)
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/award", `{"quote_id": 12, "motivo": "best price"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	decodeBody(t, resp, &result)
	assert.Contains(t, result["error"], "missing a sell leg")
}

func TestAwardRfqHandler_MissingQuoteID(t *testing.T) {
	app := newTestApp(&mockService{})

	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/award", `{"motivo": "best price"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// --- Quotes ---

func TestCreateQuoteHandler(t *testing.T) {
	var got rfq.IngestRequest
	svc := &mockService{
		ingestFn: func(ctx context.Context, rfqID int64, req rfq.IngestRequest) (*rfq.Quote, error) {
			got = req
			return &rfq.Quote{ID: 4, RfqID: rfqID, Price: req.Price, Status: "received"}, nil
		},
	}
	app := newTestApp(svc)

	body := `{
		"counterparty_id": 2,
		"quote_price": "2450.50",
		"channel": "whatsapp",
		"message_id": "wamid.123",
		"leg_side": "buy"
	}`
	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/ingest", body), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NotNil(t, got.CounterpartyID)
	assert.Equal(t, int64(2), *got.CounterpartyID)
	assert.Equal(t, "wamid.123", got.MessageID)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("2450.50")))
}

func TestCreateQuoteHandler_NonPositivePrice(t *testing.T) {
	app := newTestApp(&mockService{})

	body := `{"counterparty_id": 2, "quote_price": "0"}`
	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/ingest", body), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	decodeBody(t, resp, &result)
	assert.Contains(t, result["error"], "quote_price must be positive")
}

func TestListQuotesHandler(t *testing.T) {
	svc := &mockService{
		getFn: func(ctx context.Context, id int64) (*rfq.Rfq, error) {
			return &rfq.Rfq{ID: id, Quotes: []rfq.Quote{{ID: 1}, {ID: 2}}}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodGet, "/api/v1/rfqs/3/quotes", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Quotes []rfq.Quote `json:"quotes"`
		Count  int         `json:"count"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.Count)
}

// --- Export ---

func TestExportQuotesHandler(t *testing.T) {
	cpID := int64(2)
	svc := &mockService{
		getFn: func(ctx context.Context, id int64) (*rfq.Rfq, error) {
			return &rfq.Rfq{
				ID:        id,
				RfqNumber: "RFQ-2026-001",
				Quotes: []rfq.Quote{{
					ID:             1,
					CounterpartyID: &cpID,
					Price:          decimal.RequireFromString("2450.50"),
					Status:         "received",
					Selected:       true,
					QuotedAt:       time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
				}},
			}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodGet, "/api/v1/rfqs/3/quotes/export", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "rfq-RFQ-2026-001-quotes.csv")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "quote_price")
	assert.Contains(t, lines[1], "2450.5")
	assert.Contains(t, lines[1], "true")
	assert.Contains(t, lines[1], "2026-03-14T10:00:00Z")
}

// --- Attempts ---

func TestListAttemptsHandler(t *testing.T) {
	svc := &mockService{
		attemptsFn: func(ctx context.Context, rfqID int64) ([]rfq.SendAttempt, error) {
			return []rfq.SendAttempt{{ID: 1, RfqID: rfqID}, {ID: 2, RfqID: rfqID}}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodGet, "/api/v1/rfqs/3/send-attempts", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Attempts []rfq.SendAttempt `json:"attempts"`
		Count    int               `json:"count"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.Count)
}

func TestOverrideAttemptHandler(t *testing.T) {
	var gotRfqID, gotAttemptID int64
	var gotUpd rfq.AttemptStatusUpdate
	svc := &mockService{
		overrideFn: func(ctx context.Context, rfqID, attemptID int64, upd rfq.AttemptStatusUpdate, actorID *int64) (*rfq.SendAttempt, error) {
			gotRfqID, gotAttemptID, gotUpd = rfqID, attemptID, upd
			return &rfq.SendAttempt{ID: attemptID, RfqID: rfqID, Status: upd.Status}, nil
		},
	}
	app := newTestApp(svc)

	body := `{"status": "delivered", "provider_message_id": "pm-7"}`
	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/send-attempts/9/status", body), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), gotRfqID)
	assert.Equal(t, int64(9), gotAttemptID)
	assert.Equal(t, rfq.SendDelivered, gotUpd.Status)
	require.NotNil(t, gotUpd.ProviderMessageID)
	assert.Equal(t, "pm-7", *gotUpd.ProviderMessageID)
}

func TestOverrideAttemptHandler_UnknownStatus(t *testing.T) {
	app := newTestApp(&mockService{})

	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/v1/rfqs/3/send-attempts/9/status", `{"status": "bogus"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// --- Contracts ---

func TestListContractsHandler(t *testing.T) {
	svc := &mockService{
		contractsFn: func(ctx context.Context, rfqID int64) ([]rfq.Contract, error) {
			return []rfq.Contract{{ContractID: "c-1", RfqID: rfqID}}, nil
		},
	}
	app := newTestApp(svc)

	resp, err := app.Test(jsonReq(t, http.MethodGet, "/api/v1/rfqs/3/contracts", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Contracts []rfq.Contract `json:"contracts"`
		Count     int            `json:"count"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "c-1", result.Contracts[0].ContractID)
}
