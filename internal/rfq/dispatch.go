package rfq

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ChannelAuto fans dispatch out to every active counterparty over its
// preferred channel.
const ChannelAuto = "auto"

// SendRequest is one dispatch request against an RFQ.
type SendRequest struct {
	Channel          string
	Metadata         map[string]any
	IdempotencyKey   string
	Retry            bool
	RetryOfAttemptID *int64
	MaxRetries       int
}

// Send dispatches the RFQ message over one channel, or over every active
// counterparty's preferred channel when the channel is "auto". It returns
// every attempt recorded by this call (a single idempotent hit returns the
// pre-existing attempt and records nothing).
//
// Attempts are append-only: a retry produces a new row chained to its
// parent, and a transport failure for one counterparty never aborts the
// remaining fan-out targets.
func (s *Service) Send(ctx context.Context, rfqID int64, req SendRequest, actorID *int64) ([]SendAttempt, error) {
	r, err := s.store.GetRfq(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if r.MessageText == "" {
		return nil, fmt.Errorf("%w: rfq message_text is empty; generate/attach before sending", ErrValidation)
	}
	if !Sendable(r.Status) {
		return nil, fmt.Errorf("%w: rfq status %s cannot be sent", ErrInvalidTransition, r.Status)
	}
	if req.Channel == "" {
		return nil, fmt.Errorf("%w: channel is required", ErrValidation)
	}

	var attempts []SendAttempt

	if req.Channel == ChannelAuto {
		counterparties, err := s.store.ListActiveCounterparties(ctx)
		if err != nil {
			return nil, err
		}
		if len(counterparties) == 0 {
			return nil, fmt.Errorf("%w: no active counterparties to send rfq", ErrValidation)
		}
		base := req.IdempotencyKey
		if base == "" {
			base = "auto"
		}
		for _, cp := range counterparties {
			meta := make(map[string]any, len(req.Metadata)+3)
			for k, v := range req.Metadata {
				meta[k] = v
			}
			if len(cp.APIHeaders) > 0 {
				meta["headers"] = cp.APIHeaders
			}
			meta["counterparty_id"] = cp.ID
			meta["counterparty_name"] = cp.Name
			key := fmt.Sprintf("%s-%d", base, cp.ID)
			attempt, err := s.sendSingle(ctx, r, cp.PreferredChannel, meta, key, req.RetryOfAttemptID, req.MaxRetries)
			if err != nil {
				return nil, err
			}
			attempts = append(attempts, *attempt)
		}
	} else {
		key := req.IdempotencyKey
		if key == "" {
			if v, ok := req.Metadata["idempotency_key"].(string); ok {
				key = v
			}
		}
		retryParentID := req.RetryOfAttemptID

		if key != "" && !req.Retry {
			existing, err := s.store.LatestAttemptByKey(ctx, rfqID, key)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			if existing != nil {
				s.recordAudit(ctx, "rfq.send_idempotent_hit", actorID, map[string]any{
					"rfq_id":          rfqID,
					"attempt_id":      existing.ID,
					"idempotency_key": key,
				})
				return []SendAttempt{*existing}, nil
			}
			retryParentID = nil
		}
		if req.Retry && retryParentID == nil {
			recent, err := s.store.LatestAttempt(ctx, rfqID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			if recent != nil {
				retryParentID = &recent.ID
			}
		}

		attempt, err := s.sendSingle(ctx, r, req.Channel, req.Metadata, key, retryParentID, req.MaxRetries)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *attempt)
	}

	if err := s.store.MarkRfqSent(ctx, rfqID, s.now()); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.ID)
	}
	s.recordAudit(ctx, "rfq.send_requested", actorID, map[string]any{
		"rfq_id":         rfqID,
		"channel":        req.Channel,
		"message_length": len(r.MessageText),
		"attempts":       ids,
	})
	s.publish(ctx, "evt.rfq.sent.v1", map[string]any{
		"rfq_id":   rfqID,
		"channel":  req.Channel,
		"attempts": ids,
	})
	return attempts, nil
}

// sendSingle invokes the transport collaborator synchronously and records
// exactly one ledger row. The collaborator's failure is captured on the row,
// never returned. A unique-key conflict on insert means another request won
// the race for this idempotency key; the existing row is returned instead.
func (s *Service) sendSingle(ctx context.Context, r *Rfq, channel string, metadata map[string]any, idempotencyKey string, retryParentID *int64, maxRetries int) (*SendAttempt, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	result := s.sender.Send(ctx, SendMessage{
		Channel:        channel,
		Message:        r.MessageText,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
		MaxRetries:     maxRetries,
	})

	now := s.now()
	attempt := &SendAttempt{
		RfqID:            r.ID,
		Channel:          channel,
		Status:           result.Status,
		Metadata:         metadata,
		RetryOfAttemptID: retryParentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if result.ProviderMessageID != "" {
		attempt.ProviderMessageID = &result.ProviderMessageID
	}
	if result.Error != "" {
		attempt.Error = &result.Error
	}
	if idempotencyKey != "" {
		attempt.IdempotencyKey = &idempotencyKey
	}

	err := s.store.InsertAttempt(ctx, attempt)
	switch {
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		existing, rerr := s.store.LatestAttemptByKey(ctx, r.ID, idempotencyKey)
		if rerr != nil {
			return nil, rerr
		}
		if existing == nil {
			// The conflicting row is not reachable through this key.
			// Surface the conflict instead of guessing which row won.
			return nil, err
		}
		s.logger.Info("rfq.send.idempotent_conflict",
			zap.Int64("rfq_id", r.ID),
			zap.String("idempotency_key", idempotencyKey),
			zap.Int64("attempt_id", existing.ID))
		return existing, nil
	case errors.Is(err, ErrDuplicateProviderMessage):
		if attempt.ProviderMessageID == nil {
			return nil, err
		}
		existing, rerr := s.store.GetAttemptByProviderMessageID(ctx, *attempt.ProviderMessageID)
		if rerr != nil {
			return nil, rerr
		}
		s.logger.Info("rfq.send.provider_message_replayed",
			zap.Int64("rfq_id", r.ID),
			zap.String("provider_message_id", *attempt.ProviderMessageID),
			zap.Int64("attempt_id", existing.ID))
		return existing, nil
	case err != nil:
		return nil, err
	}

	s.logger.Info("rfq.send.attempt_recorded",
		zap.Int64("rfq_id", r.ID),
		zap.Int64("attempt_id", attempt.ID),
		zap.String("channel", channel),
		zap.String("status", string(attempt.Status)))
	return attempt, nil
}
