package rfq

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rfq is a request-for-quote sent to one or more counterparties for pricing
// on a quantity/period. It owns its quotes and invitations: deleting the RFQ
// deletes them in the same transaction.
type Rfq struct {
	ID           int64           `json:"id"`
	RfqNumber    string          `json:"rfq_number"`
	SalesOrderID int64           `json:"so_id"`
	DealID       *int64          `json:"deal_id,omitempty"`
	QuantityMT   decimal.Decimal `json:"quantity_mt"`
	Period       string          `json:"period"`
	Status       Status          `json:"status"`
	MessageText  string          `json:"message_text,omitempty"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	// Decision metadata, set once at award time.
	WinnerQuoteID  *int64     `json:"winner_quote_id,omitempty"`
	DecisionReason *string    `json:"decision_reason,omitempty"`
	DecidedBy      *int64     `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	WinnerRank     *int       `json:"winner_rank,omitempty"`
	HedgeID        *int64     `json:"hedge_id,omitempty"`
	HedgeReference *string    `json:"hedge_reference,omitempty"`
	AwardedAt      *time.Time `json:"awarded_at,omitempty"`

	CancelReason *string `json:"cancel_reason,omitempty"`
	CancelledBy  *int64  `json:"cancelled_by,omitempty"`

	Quotes      []Quote      `json:"counterparty_quotes"`
	Invitations []Invitation `json:"invitations"`
}

// Quote is one counterparty's response on an RFQ. Notes may carry an embedded
// "[msg:{id}]" marker used to deduplicate chat-channel ingestion.
type Quote struct {
	ID               int64            `json:"id"`
	RfqID            int64            `json:"rfq_id"`
	CounterpartyID   *int64           `json:"counterparty_id,omitempty"`
	CounterpartyName string           `json:"counterparty_name,omitempty"`
	Price            decimal.Decimal  `json:"quote_price"`
	PriceType        string           `json:"price_type,omitempty"`
	VolumeMT         *decimal.Decimal `json:"volume_mt,omitempty"`
	ValidUntil       *time.Time       `json:"valid_until,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Channel          string           `json:"channel,omitempty"`
	Status           string           `json:"status"`
	QuoteGroupID     string           `json:"quote_group_id,omitempty"`
	LegSide          string           `json:"leg_side,omitempty"`
	Selected         bool             `json:"selected"`
	QuotedAt         time.Time        `json:"quoted_at"`
}

// Invitation records that a counterparty was asked to quote on an RFQ.
type Invitation struct {
	ID               int64            `json:"id"`
	RfqID            int64            `json:"rfq_id"`
	CounterpartyID   int64            `json:"counterparty_id"`
	CounterpartyName string           `json:"counterparty_name,omitempty"`
	Status           InvitationStatus `json:"status"`
	SentAt           time.Time        `json:"sent_at"`
	RespondedAt      *time.Time       `json:"responded_at,omitempty"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	MessageText      string           `json:"message_text,omitempty"`
}

// SendAttempt is one append-only row in the dispatch ledger. A retry creates
// a new row chained through RetryOfAttemptID; the parent is never mutated by
// dispatch (only delivery callbacks update attempt status).
type SendAttempt struct {
	ID                int64          `json:"id"`
	RfqID             int64          `json:"rfq_id"`
	Channel           string         `json:"channel"`
	Status            SendStatus     `json:"status"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty"`
	Error             *string        `json:"error,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	IdempotencyKey    *string        `json:"idempotency_key,omitempty"`
	RetryOfAttemptID  *int64         `json:"retry_of_attempt_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Counterparty is the subset of counterparty data the engine needs for
// auto fan-out; full counterparty CRUD lives outside the core.
type Counterparty struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type,omitempty"`
	PreferredChannel string            `json:"preferred_channel"`
	APIHeaders       map[string]string `json:"api_headers,omitempty"`
	Active           bool              `json:"active"`
}

// TradeLeg is one side of a matched buy/sell pair, frozen at award time.
type TradeLeg struct {
	QuoteID    int64            `json:"quote_id"`
	Side       string           `json:"side"`
	Price      decimal.Decimal  `json:"price"`
	VolumeMT   *decimal.Decimal `json:"volume_mt,omitempty"`
	PriceType  string           `json:"price_type,omitempty"`
	ValidUntil *time.Time       `json:"valid_until,omitempty"`
	Notes      string           `json:"notes,omitempty"`
}

// TradeSnapshot is the immutable per-group record embedded in a Contract.
type TradeSnapshot struct {
	QuoteGroupID string   `json:"quote_group_id"`
	Buy          TradeLeg `json:"buy"`
	Sell         TradeLeg `json:"sell"`
}

// Contract is materialized once per validated trade group at award time and
// never mutated afterwards.
type Contract struct {
	ContractID     string        `json:"contract_id"`
	DealID         int64         `json:"deal_id"`
	RfqID          int64         `json:"rfq_id"`
	CounterpartyID *int64        `json:"counterparty_id,omitempty"`
	Status         string        `json:"status"`
	TradeIndex     int           `json:"trade_index"`
	QuoteGroupID   string        `json:"quote_group_id,omitempty"`
	TradeSnapshot  TradeSnapshot `json:"trade_snapshot"`
	CreatedBy      *int64        `json:"created_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
