// Package transport carries RFQ messages to counterparties through the
// outbound message gateway.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/alcast-trading/rfq-engine/internal/httpclient"
	"github.com/alcast-trading/rfq-engine/internal/metrics"
	"github.com/alcast-trading/rfq-engine/internal/rate"
	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

// gatewayRequest is the payload sent to the message gateway.
type gatewayRequest struct {
	Channel        string         `json:"channel"`
	Message        string         `json:"message"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// gatewayResponse is the gateway's synchronous reply.
type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type gatewayError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GatewaySender implements rfq.Sender against the HTTP message gateway.
// Failures are folded into the SendResult; dispatch records them on the
// attempt instead of aborting.
type GatewaySender struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
	apiKey  string
}

// NewGatewaySender constructs a sender with its own rate-limited executor.
func NewGatewaySender(logger *zap.Logger, rateMgr *rate.Manager, baseURL, apiKey string, retryMax int) *GatewaySender {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	exec := httpclient.New(logger, rateMgr, httpClient, retryMax, "gateway", func(status int, body []byte) error {
		var errResp gatewayError
		_ = json.Unmarshal(body, &errResp)

		errMsg := errResp.Message
		if errMsg == "" {
			errMsg = errResp.Error
		}
		if errMsg == "" {
			errMsg = string(body)
		}
		return fmt.Errorf("gateway returned %d: %s", status, errMsg)
	})
	return &GatewaySender{
		logger:  logger,
		exec:    exec,
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Send posts the message to the gateway. MaxRetries from the dispatch
// request bounds this one call; the executor handles transport retries.
// POST /api/messages
func (s *GatewaySender) Send(ctx context.Context, msg rfq.SendMessage) rfq.SendResult {
	payload := gatewayRequest{
		Channel:        msg.Channel,
		Message:        msg.Message,
		Metadata:       msg.Metadata,
		IdempotencyKey: msg.IdempotencyKey,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return failed(msg.Channel, fmt.Errorf("encode gateway request: %w", err))
	}

	url := s.baseURL + "/api/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return failed(msg.Channel, err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if msg.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", msg.IdempotencyKey)
	}
	// Counterparty-specific headers ride along in the dispatch metadata.
	// The in-process fan-out attaches them as map[string]string; headers
	// decoded from a JSON request body arrive as map[string]any.
	switch hdrs := msg.Metadata["headers"].(type) {
	case map[string]string:
		for k, v := range hdrs {
			req.Header.Set(k, v)
		}
	case map[string]any:
		for k, v := range hdrs {
			if sv, ok := v.(string); ok {
				req.Header.Set(k, sv)
			}
		}
	}

	// MaxRetries counts total tries for this dispatch; the executor bound
	// counts retries beyond the first.
	retries := -1
	if msg.MaxRetries > 0 {
		retries = msg.MaxRetries - 1
	}

	var resp gatewayResponse
	if err := s.exec.DoJSONBounded(ctx, req, msg.Channel, &resp, retries); err != nil {
		s.logger.Warn("gateway.send_failed",
			zap.String("channel", msg.Channel),
			zap.Error(err))
		return failed(msg.Channel, err)
	}

	status := normalizeGatewayStatus(resp.Status)
	metrics.IncSendAttempt(msg.Channel, string(status))
	return rfq.SendResult{
		Status:            status,
		ProviderMessageID: resp.MessageID,
	}
}

func failed(channel string, err error) rfq.SendResult {
	metrics.IncSendAttempt(channel, string(rfq.SendFailed))
	return rfq.SendResult{Status: rfq.SendFailed, Error: err.Error()}
}

// normalizeGatewayStatus maps the gateway's status vocabulary onto the
// dispatch ledger's. Unknown statuses count as sent: the gateway accepted
// the message and callbacks will refine the state.
func normalizeGatewayStatus(status string) rfq.SendStatus {
	switch status {
	case "queued", "accepted", "pending":
		return rfq.SendQueued
	case "delivered":
		return rfq.SendDelivered
	case "read":
		return rfq.SendRead
	case "failed", "rejected":
		return rfq.SendFailed
	default:
		return rfq.SendSent
	}
}
