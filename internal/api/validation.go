package api

import (
	"fmt"
	"strings"

	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

func (r RfqCreateRequest) Validate() error {
	if strings.TrimSpace(r.RfqNumber) == "" {
		return fmt.Errorf("rfq_number is required")
	}
	if r.SalesOrderID <= 0 {
		return fmt.Errorf("so_id is required")
	}
	if r.QuantityMT.IsNegative() {
		return fmt.Errorf("quantity_mt must not be negative")
	}
	if r.Status != "" && !rfq.ValidStatus(rfq.Status(r.Status)) {
		return fmt.Errorf("status %q is not a valid rfq status", r.Status)
	}
	return nil
}

func (b SendBody) Validate() error {
	if b.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if b.RetryOfAttemptID != nil && *b.RetryOfAttemptID <= 0 {
		return fmt.Errorf("retry_of_attempt_id must be positive")
	}
	return nil
}

func (b QuoteBody) Validate() error {
	if b.CounterpartyID == nil && strings.TrimSpace(b.CounterpartyName) == "" {
		return fmt.Errorf("counterparty_id or counterparty_name is required")
	}
	if !b.Price.IsPositive() {
		return fmt.Errorf("quote_price must be positive")
	}
	if b.VolumeMT != nil && !b.VolumeMT.IsPositive() {
		return fmt.Errorf("volume_mt must be positive")
	}
	return nil
}

func (b AwardBody) Validate() error {
	if b.QuoteID <= 0 {
		return fmt.Errorf("quote_id is required")
	}
	if strings.TrimSpace(b.Motivo) == "" {
		return fmt.Errorf("motivo is required")
	}
	return nil
}

func (b CancelBody) Validate() error {
	if strings.TrimSpace(b.Motivo) == "" {
		return fmt.Errorf("motivo is required")
	}
	return nil
}

func (b AttemptOverrideBody) Validate() error {
	if strings.TrimSpace(b.Status) == "" {
		return fmt.Errorf("status is required")
	}
	switch rfq.SendStatus(b.Status) {
	case rfq.SendQueued, rfq.SendSent, rfq.SendDelivered, rfq.SendRead, rfq.SendFailed:
		return nil
	}
	return fmt.Errorf("status %q is not a valid attempt status", b.Status)
}

func (b WebhookBody) Validate() error {
	if b.providerMessageID() == "" {
		return fmt.Errorf("provider_message_id is required")
	}
	if strings.TrimSpace(b.Status) == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}
