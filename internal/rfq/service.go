package rfq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Service orchestrates the RFQ lifecycle: dispatch, ingestion, award,
// cancellation and delivery-status propagation. Each public method is
// request-scoped and runs against one transactional unit of the store.
type Service struct {
	store  Store
	sender Sender
	pub    EventPublisher
	audit  AuditRecorder
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the engine. pub and audit may be nil; events and audit
// entries are then skipped, both are best-effort concerns.
func NewService(store Store, sender Sender, pub EventPublisher, audit AuditRecorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		sender: sender,
		pub:    pub,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRfq persists a new RFQ with optional inline quotes and invitations.
func (s *Service) CreateRfq(ctx context.Context, r *Rfq) (*Rfq, error) {
	if strings.TrimSpace(r.RfqNumber) == "" {
		return nil, fmt.Errorf("%w: rfq_number is required", ErrValidation)
	}
	r.RfqNumber = strings.TrimSpace(r.RfqNumber)
	if r.SalesOrderID <= 0 {
		return nil, fmt.Errorf("%w: so_id is required", ErrValidation)
	}
	if !r.QuantityMT.IsPositive() {
		return nil, fmt.Errorf("%w: quantity_mt must be greater than 0", ErrValidation)
	}
	if strings.TrimSpace(r.Period) == "" {
		return nil, fmt.Errorf("%w: period is required", ErrValidation)
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if !ValidStatus(r.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, r.Status)
	}
	r.CreatedAt = s.now()

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.InsertRfq(ctx, r); err != nil {
			return err
		}
		for i := range r.Quotes {
			q := &r.Quotes[i]
			q.RfqID = r.ID
			if q.Status == "" {
				q.Status = "quoted"
			}
			if q.QuotedAt.IsZero() {
				q.QuotedAt = r.CreatedAt
			}
			if err := tx.InsertQuote(ctx, q); err != nil {
				return err
			}
		}
		for i := range r.Invitations {
			inv := &r.Invitations[i]
			inv.RfqID = r.ID
			if inv.Status == "" {
				inv.Status = InvitationSent
			}
			if inv.SentAt.IsZero() {
				inv.SentAt = r.CreatedAt
			}
			if err := tx.InsertInvitation(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "rfq.created", nil, map[string]any{"rfq_id": r.ID, "rfq_number": r.RfqNumber})
	s.publish(ctx, "evt.rfq.created.v1", r)
	return s.store.GetRfq(ctx, r.ID)
}

// GetRfq loads an RFQ with its quotes and invitations.
func (s *Service) GetRfq(ctx context.Context, id int64) (*Rfq, error) {
	return s.store.GetRfq(ctx, id)
}

// ListRfqs returns all RFQs, newest first.
func (s *Service) ListRfqs(ctx context.Context) ([]Rfq, error) {
	return s.store.ListRfqs(ctx)
}

// DeleteRfq removes an RFQ and its owned quotes and invitations atomically.
func (s *Service) DeleteRfq(ctx context.Context, id int64) error {
	if _, err := s.store.GetRfq(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteRfq(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "rfq.deleted", nil, map[string]any{"rfq_id": id})
	return nil
}

// Cancel forces a non-terminal RFQ to failed, recording actor and reason.
// It is always permitted from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id int64, reason string, actorID *int64) (*Rfq, error) {
	r, err := s.store.GetRfq(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanCancel(r.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusFailed)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: motivo is required", ErrValidation)
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.TransitionStatus(ctx, id, StatusFailed, StatusDraft, StatusPending, StatusSent, StatusQuoted); err != nil {
			return err
		}
		return tx.SetCancellation(ctx, id, reason, actorID)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "rfq.cancelled", actorID, map[string]any{"rfq_id": id, "motivo": reason})
	s.publish(ctx, "evt.rfq.failed.v1", map[string]any{"rfq_id": id, "reason": reason, "cancelled": true})
	return s.store.GetRfq(ctx, id)
}

// ListSendAttempts returns the dispatch ledger for an RFQ, newest first.
func (s *Service) ListSendAttempts(ctx context.Context, rfqID int64) ([]SendAttempt, error) {
	if _, err := s.store.GetRfq(ctx, rfqID); err != nil {
		return nil, err
	}
	return s.store.ListAttempts(ctx, rfqID)
}

// AttemptStatusUpdate carries a manual or webhook-driven delivery update.
type AttemptStatusUpdate struct {
	Status            SendStatus
	ProviderMessageID *string
	Error             *string
	Metadata          map[string]any
	IdempotencyKey    *string
}

// OverrideAttemptStatus applies a manual status override to one attempt,
// with the same RFQ propagation rules as the webhook path.
func (s *Service) OverrideAttemptStatus(ctx context.Context, rfqID, attemptID int64, upd AttemptStatusUpdate, actorID *int64) (*SendAttempt, error) {
	if !ValidSendStatus(upd.Status) {
		return nil, fmt.Errorf("%w: unknown send status %q", ErrValidation, upd.Status)
	}
	if _, err := s.store.GetRfq(ctx, rfqID); err != nil {
		return nil, err
	}
	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.RfqID != rfqID {
		return nil, fmt.Errorf("%w: send attempt not found for rfq", ErrNotFound)
	}

	attempt.Status = upd.Status
	if upd.ProviderMessageID != nil {
		attempt.ProviderMessageID = upd.ProviderMessageID
	}
	if upd.Error != nil {
		attempt.Error = upd.Error
	}
	if upd.Metadata != nil {
		attempt.Metadata = upd.Metadata
	}
	if upd.IdempotencyKey != nil {
		attempt.IdempotencyKey = upd.IdempotencyKey
	}
	attempt.UpdatedAt = s.now()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}
		return s.propagateDeliveryStatus(ctx, tx, rfqID, upd.Status)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "rfq.send_attempt_updated", actorID, map[string]any{
		"rfq_id":     rfqID,
		"attempt_id": attemptID,
		"status":     string(attempt.Status),
	})
	return attempt, nil
}

// DeliveryCallback is the authenticated webhook payload.
type DeliveryCallback struct {
	ProviderMessageID string
	Status            SendStatus
	Error             *string
	Metadata          map[string]any
}

// ApplyDeliveryCallback locates the attempt by provider message id, updates
// it, and propagates to the owning RFQ. Callers authenticate first.
func (s *Service) ApplyDeliveryCallback(ctx context.Context, cb DeliveryCallback) (*SendAttempt, error) {
	if !ValidSendStatus(cb.Status) {
		return nil, fmt.Errorf("%w: unknown send status %q", ErrValidation, cb.Status)
	}
	attempt, err := s.store.GetAttemptByProviderMessageID(ctx, cb.ProviderMessageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetRfq(ctx, attempt.RfqID); err != nil {
		return nil, err
	}

	attempt.Status = cb.Status
	attempt.Error = cb.Error
	if cb.Metadata != nil {
		attempt.Metadata = cb.Metadata
	}
	attempt.UpdatedAt = s.now()

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.UpdateAttempt(ctx, attempt); err != nil {
			return err
		}
		return s.propagateDeliveryStatus(ctx, tx, attempt.RfqID, cb.Status)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "rfq.webhook_status", nil, map[string]any{
		"rfq_id":     attempt.RfqID,
		"attempt_id": attempt.ID,
		"status":     string(attempt.Status),
	})
	s.publish(ctx, "evt.rfq.delivery.v1", map[string]any{
		"rfq_id":              attempt.RfqID,
		"attempt_id":          attempt.ID,
		"provider_message_id": cb.ProviderMessageID,
		"status":              string(cb.Status),
	})
	return attempt, nil
}

// propagateDeliveryStatus applies a delivery update to the owning RFQ:
// failed forces the RFQ to failed unless it already reached a terminal
// state; delivered/read are softening updates that leave a sent RFQ sent.
func (s *Service) propagateDeliveryStatus(ctx context.Context, tx Store, rfqID int64, st SendStatus) error {
	if st != SendFailed {
		return nil
	}
	err := tx.TransitionStatus(ctx, rfqID, StatusFailed, StatusDraft, StatusPending, StatusSent, StatusQuoted)
	if err == nil {
		return nil
	}
	// Already terminal: the attempt keeps its failed status, the RFQ
	// outcome stands. Concurrent award wins by design.
	if errors.Is(err, ErrStatusConflict) {
		s.logger.Warn("rfq.delivery.terminal_rfq_unchanged", zap.Int64("rfq_id", rfqID))
		return nil
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, action string, actorID *int64, payload map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, action, actorID, payload)
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, subject, payload); err != nil {
		s.logger.Warn("rfq.publish_failed", zap.String("subject", subject), zap.Error(err))
	}
}
