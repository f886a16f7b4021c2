package rfq

import (
	"context"
	"time"
)

// Store is the persistence contract for the RFQ engine. Implementations
// must enforce the (rfq_id, idempotency_key) and provider_message_id
// unique constraints at the storage layer (InsertAttempt returns
// ErrDuplicateIdempotencyKey or ErrDuplicateProviderMessage on the
// respective conflict) and guard status transitions into terminal states
// with a conditional update (TransitionStatus returns ErrStatusConflict
// when the current status is not in allowedFrom).
type Store interface {
	// RunInTx runs fn against a transaction-scoped Store. An error from fn
	// rolls the transaction back; all writes inside fn commit atomically.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	InsertRfq(ctx context.Context, r *Rfq) error
	GetRfq(ctx context.Context, id int64) (*Rfq, error)
	ListRfqs(ctx context.Context) ([]Rfq, error)
	DeleteRfq(ctx context.Context, id int64) error
	// MarkRfqSent forces status to sent and sets sent_at only when unset.
	MarkRfqSent(ctx context.Context, id int64, sentAt time.Time) error
	// TransitionStatus conditionally moves the RFQ to the target status.
	TransitionStatus(ctx context.Context, id int64, to Status, allowedFrom ...Status) error
	SetDecision(ctx context.Context, id int64, d Decision) error
	SetCancellation(ctx context.Context, id int64, reason string, actorID *int64) error

	GetSalesOrderDealID(ctx context.Context, soID int64) (*int64, error)

	InsertQuote(ctx context.Context, q *Quote) error
	GetQuote(ctx context.Context, id int64) (*Quote, error)
	ListQuotes(ctx context.Context, rfqID int64) ([]Quote, error)
	// FindQuoteByMessageMarker searches a counterparty's chat-channel quotes
	// on the RFQ for a notes marker like "[msg:wamid.123]".
	FindQuoteByMessageMarker(ctx context.Context, rfqID, counterpartyID int64, channel, marker string) (*Quote, error)
	// SelectWinnerQuote flags the winner and clears selection on every other
	// quote of the RFQ, preserving the single-selection invariant.
	SelectWinnerQuote(ctx context.Context, rfqID, quoteID int64) error

	InsertInvitation(ctx context.Context, inv *Invitation) error
	FindInvitation(ctx context.Context, rfqID, counterpartyID int64) (*Invitation, error)
	MarkInvitationAnswered(ctx context.Context, id int64, respondedAt time.Time) error
	// FinalizeInvitations marks the winner's invitation and flips every other
	// non-terminal invitation to lost. Expired/refused rows are untouched.
	FinalizeInvitations(ctx context.Context, rfqID int64, winnerCounterpartyID *int64) error

	InsertAttempt(ctx context.Context, a *SendAttempt) error
	GetAttempt(ctx context.Context, id int64) (*SendAttempt, error)
	GetAttemptByProviderMessageID(ctx context.Context, providerMessageID string) (*SendAttempt, error)
	LatestAttemptByKey(ctx context.Context, rfqID int64, idempotencyKey string) (*SendAttempt, error)
	LatestAttempt(ctx context.Context, rfqID int64) (*SendAttempt, error)
	ListAttempts(ctx context.Context, rfqID int64) ([]SendAttempt, error)
	UpdateAttempt(ctx context.Context, a *SendAttempt) error

	ListActiveCounterparties(ctx context.Context) ([]Counterparty, error)

	InsertContract(ctx context.Context, c *Contract) error
	ListContracts(ctx context.Context, rfqID int64) ([]Contract, error)
}

// Decision is the award metadata persisted on the RFQ.
type Decision struct {
	WinnerQuoteID  int64
	Reason         string
	DecidedBy      *int64
	DecidedAt      time.Time
	WinnerRank     int
	HedgeID        *int64
	HedgeReference *string
}

// SendMessage is the request handed to the transport collaborator.
type SendMessage struct {
	Channel        string
	Message        string
	Metadata       map[string]any
	IdempotencyKey string
	MaxRetries     int
}

// SendResult is the collaborator's synchronous outcome. Transport failures
// come back as Status=failed with Error set; they are captured, not raised.
type SendResult struct {
	Status            SendStatus
	ProviderMessageID string
	Error             string
}

// Sender is the message-transport collaborator (e-mail/chat/API gateway).
// Transport-level retries are its concern; dispatch passes MaxRetries through.
type Sender interface {
	Send(ctx context.Context, msg SendMessage) SendResult
}

// EventPublisher emits lifecycle events (NATS in production). Publishing is
// best-effort: dispatch and award never fail because an event did not go out.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// AuditRecorder persists audit-trail entries best-effort; implementations
// fall back to log emission when the write fails.
type AuditRecorder interface {
	Record(ctx context.Context, action string, actorID *int64, payload map[string]any)
}
