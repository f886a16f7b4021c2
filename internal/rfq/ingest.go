package rfq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChannelAPI is the default origin for directly submitted quotes.
const ChannelAPI = "api"

// ChannelWhatsApp is the async chat channel whose messages carry provider
// message ids; its quotes are deduplicated by the [msg:{id}] notes marker.
const ChannelWhatsApp = "whatsapp"

// IngestRequest carries a quote arriving from the API or an async channel.
type IngestRequest struct {
	CounterpartyID   *int64
	CounterpartyName string
	Price            decimal.Decimal
	PriceType        string
	VolumeMT         *decimal.Decimal
	ValidUntil       *time.Time
	Notes            string
	Channel          string
	MessageID        string
	QuoteGroupID     string
	LegSide          string
}

// messageMarker embeds an external message id into quote notes so repeated
// deliveries of the same chat message resolve to the same quote row.
func messageMarker(messageID string) string {
	return "[msg:" + messageID + "]"
}

// IngestQuote accepts a quote for an RFQ, suppressing duplicates by message
// id, updating the matching invitation, and moving the RFQ to quoted.
func (s *Service) IngestQuote(ctx context.Context, rfqID int64, req IngestRequest) (*Quote, error) {
	r, err := s.store.GetRfq(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	// Closed-for-quoting check doubles as the transition guard: every
	// terminal state lacks an edge to quoted.
	if r.Status != StatusQuoted {
		if err := ValidateTransition(r.Status, StatusQuoted); err != nil {
			return nil, fmt.Errorf("rfq closed for new quotes: %w", err)
		}
	}
	if req.CounterpartyID == nil && strings.TrimSpace(req.CounterpartyName) == "" {
		return nil, fmt.Errorf("%w: counterparty id or name is required", ErrValidation)
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: quote_price must be greater than 0", ErrValidation)
	}
	channel := req.Channel
	if channel == "" {
		channel = ChannelAPI
	}

	if req.MessageID != "" && req.CounterpartyID != nil {
		existing, err := s.store.FindQuoteByMessageMarker(ctx, rfqID, *req.CounterpartyID, ChannelWhatsApp, messageMarker(req.MessageID))
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("rfq.ingest.duplicate_suppressed",
				zap.Int64("rfq_id", rfqID),
				zap.Int64("quote_id", existing.ID),
				zap.String("message_id", req.MessageID))
			return existing, nil
		}
	}

	notes := strings.TrimSpace(req.Notes)
	if req.MessageID != "" {
		notes = strings.TrimSpace(notes + " " + messageMarker(req.MessageID))
	}

	now := s.now()
	quote := &Quote{
		RfqID:            rfqID,
		CounterpartyID:   req.CounterpartyID,
		CounterpartyName: req.CounterpartyName,
		Price:            req.Price,
		PriceType:        req.PriceType,
		VolumeMT:         req.VolumeMT,
		ValidUntil:       req.ValidUntil,
		Notes:            notes,
		Channel:          channel,
		Status:           "quoted",
		QuoteGroupID:     req.QuoteGroupID,
		LegSide:          strings.ToLower(strings.TrimSpace(req.LegSide)),
		QuotedAt:         now,
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		var invitation *Invitation
		if req.CounterpartyID != nil {
			invitation, err = tx.FindInvitation(ctx, rfqID, *req.CounterpartyID)
			if err != nil {
				return err
			}
			if invitation == nil {
				invitation = &Invitation{
					RfqID:            rfqID,
					CounterpartyID:   *req.CounterpartyID,
					CounterpartyName: req.CounterpartyName,
					Status:           InvitationSent,
					SentAt:           now,
				}
				if err := tx.InsertInvitation(ctx, invitation); err != nil {
					return err
				}
			}
		}

		if err := tx.InsertQuote(ctx, quote); err != nil {
			return err
		}

		if invitation != nil && invitation.Status == InvitationSent {
			if err := tx.MarkInvitationAnswered(ctx, invitation.ID, now); err != nil {
				return err
			}
		}

		if r.Status != StatusQuoted {
			return tx.TransitionStatus(ctx, rfqID, StatusQuoted, StatusDraft, StatusPending, StatusSent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "rfq.quote_ingested", nil, map[string]any{
		"rfq_id":   rfqID,
		"quote_id": quote.ID,
		"channel":  channel,
	})
	s.publish(ctx, "evt.rfq.quoted.v1", map[string]any{
		"rfq_id":   rfqID,
		"quote_id": quote.ID,
		"channel":  channel,
	})
	return quote, nil
}
