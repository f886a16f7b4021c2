package rfq

import "fmt"

// Status is the lifecycle state of an RFQ. The zero value is not valid;
// callers create RFQs in StatusDraft or StatusPending.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusQuoted  Status = "quoted"
	StatusAwarded Status = "awarded"
	StatusFailed  Status = "failed"
	StatusExpired Status = "expired"
)

// SendStatus is the delivery state of a single send attempt.
type SendStatus string

const (
	SendQueued    SendStatus = "queued"
	SendSent      SendStatus = "sent"
	SendDelivered SendStatus = "delivered"
	SendRead      SendStatus = "read"
	SendFailed    SendStatus = "failed"
)

// InvitationStatus tracks a counterparty's participation in an RFQ.
type InvitationStatus string

const (
	InvitationSent     InvitationStatus = "sent"
	InvitationAnswered InvitationStatus = "answered"
	InvitationWinner   InvitationStatus = "winner"
	InvitationLost     InvitationStatus = "lost"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRefused  InvitationStatus = "refused"
)

// transitions is the closed edge set of legal RFQ status moves.
// Terminal states have no outgoing edges.
var transitions = map[Status][]Status{
	StatusDraft:   {StatusPending, StatusSent, StatusQuoted},
	StatusPending: {StatusSent, StatusQuoted, StatusFailed},
	StatusSent:    {StatusQuoted, StatusFailed},
	StatusQuoted:  {StatusAwarded, StatusFailed},
}

// AllStatuses returns every known RFQ status, for enumeration by jobs
// and gauges.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusPending, StatusSent, StatusQuoted, StatusAwarded, StatusFailed, StatusExpired}
}

// ValidStatus reports whether s is one of the known RFQ statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusPending, StatusSent, StatusQuoted, StatusAwarded, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// ValidSendStatus reports whether s is one of the known attempt statuses.
func ValidSendStatus(s SendStatus) bool {
	switch s {
	case SendQueued, SendSent, SendDelivered, SendRead, SendFailed:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusAwarded || s == StatusFailed || s == StatusExpired
}

// Terminal reports whether the attempt status is final.
func (s SendStatus) Terminal() bool {
	return s == SendDelivered || s == SendRead || s == SendFailed
}

// Terminal reports whether the invitation can no longer change.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationWinner || s == InvitationLost || s == InvitationExpired || s == InvitationRefused
}

// ValidateTransition checks the from->to edge against the transition table.
// It returns an InvalidTransition error naming both states when the edge
// is not allowed. Cancellation is a special case handled by CanCancel and
// is always permitted from non-terminal states.
func ValidateTransition(from, to Status) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CanCancel reports whether an RFQ in the given status may be cancelled
// (forced to failed). Any non-terminal state qualifies.
func CanCancel(from Status) bool {
	return !from.Terminal()
}

// Sendable reports whether dispatch is allowed for an RFQ in this status.
func Sendable(s Status) bool {
	return s == StatusDraft || s == StatusQuoted || s == StatusSent
}

// Decidable reports whether an award decision may be taken in this status.
func Decidable(s Status) bool {
	return s == StatusDraft || s == StatusPending || s == StatusSent || s == StatusQuoted
}
