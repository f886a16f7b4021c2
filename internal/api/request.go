package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

// RfqCreateRequest creates an RFQ, optionally with inline quotes and
// invitations.
type RfqCreateRequest struct {
	RfqNumber    string           `json:"rfq_number"`
	SalesOrderID int64            `json:"so_id"`
	DealID       *int64           `json:"deal_id"`
	QuantityMT   decimal.Decimal  `json:"quantity_mt"`
	Period       string           `json:"period"`
	Status       string           `json:"status"`
	MessageText  string           `json:"message_text"`
	Quotes       []rfq.Quote      `json:"counterparty_quotes"`
	Invitations  []rfq.Invitation `json:"invitations"`
}

// SendBody triggers dispatch over one channel, or "auto" for fan-out.
type SendBody struct {
	Channel          string         `json:"channel"`
	Metadata         map[string]any `json:"metadata"`
	IdempotencyKey   string         `json:"idempotency_key"`
	Retry            bool           `json:"retry"`
	RetryOfAttemptID *int64         `json:"retry_of_attempt_id"`
	MaxRetries       int            `json:"max_retries"`
}

// QuoteBody submits a counterparty quote, directly or relayed from an
// async channel.
type QuoteBody struct {
	CounterpartyID   *int64           `json:"counterparty_id"`
	CounterpartyName string           `json:"counterparty_name"`
	Price            decimal.Decimal  `json:"quote_price"`
	PriceType        string           `json:"price_type"`
	VolumeMT         *decimal.Decimal `json:"volume_mt"`
	ValidUntil       *time.Time       `json:"valid_until"`
	Notes            string           `json:"notes"`
	Channel          string           `json:"channel"`
	MessageID        string           `json:"message_id"`
	QuoteGroupID     string           `json:"quote_group_id"`
	LegSide          string           `json:"leg_side"`
}

// AwardBody selects the winning quote and closes the RFQ.
type AwardBody struct {
	QuoteID        int64   `json:"quote_id"`
	Motivo         string  `json:"motivo"`
	HedgeID        *int64  `json:"hedge_id"`
	HedgeReference *string `json:"hedge_reference"`
}

// CancelBody force-fails a non-terminal RFQ.
type CancelBody struct {
	Motivo string `json:"motivo"`
}

// AttemptOverrideBody manually patches one send attempt.
type AttemptOverrideBody struct {
	Status            string         `json:"status"`
	ProviderMessageID *string        `json:"provider_message_id"`
	Error             *string        `json:"error"`
	Metadata          map[string]any `json:"metadata"`
	IdempotencyKey    *string        `json:"idempotency_key"`
}

// WebhookBody is the gateway's delivery-status callback payload.
type WebhookBody struct {
	ProviderMessageID string         `json:"provider_message_id"`
	MessageID         string         `json:"message_id"` // gateway alias
	Status            string         `json:"status"`
	Error             *string        `json:"error"`
	Metadata          map[string]any `json:"metadata"`
}

func (b WebhookBody) providerMessageID() string {
	if b.ProviderMessageID != "" {
		return b.ProviderMessageID
	}
	return b.MessageID
}
