package rfq

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the engine tests. RunInTx snapshots
// state and restores it when fn fails, mimicking a rollback.
type memStore struct {
	mu             sync.Mutex
	rfqs           map[int64]*Rfq
	quotes         map[int64]*Quote
	invitations    map[int64]*Invitation
	attempts       map[int64]*SendAttempt
	contracts      []Contract
	counterparties []Counterparty
	soDeals        map[int64]*int64
	nextID         int64
}

func newMemStore() *memStore {
	return &memStore{
		rfqs:        make(map[int64]*Rfq),
		quotes:      make(map[int64]*Quote),
		invitations: make(map[int64]*Invitation),
		attempts:    make(map[int64]*SendAttempt),
		soDeals:     make(map[int64]*int64),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

type memSnapshot struct {
	rfqs        map[int64]*Rfq
	quotes      map[int64]*Quote
	invitations map[int64]*Invitation
	attempts    map[int64]*SendAttempt
	contracts   []Contract
	nextID      int64
}

func (m *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		rfqs:        make(map[int64]*Rfq, len(m.rfqs)),
		quotes:      make(map[int64]*Quote, len(m.quotes)),
		invitations: make(map[int64]*Invitation, len(m.invitations)),
		attempts:    make(map[int64]*SendAttempt, len(m.attempts)),
		contracts:   append([]Contract(nil), m.contracts...),
		nextID:      m.nextID,
	}
	for k, v := range m.rfqs {
		c := *v
		snap.rfqs[k] = &c
	}
	for k, v := range m.quotes {
		c := *v
		snap.quotes[k] = &c
	}
	for k, v := range m.invitations {
		c := *v
		snap.invitations[k] = &c
	}
	for k, v := range m.attempts {
		c := *v
		snap.attempts[k] = &c
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.rfqs = snap.rfqs
	m.quotes = snap.quotes
	m.invitations = snap.invitations
	m.attempts = snap.attempts
	m.contracts = snap.contracts
	m.nextID = snap.nextID
}

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	snap := m.snapshot()
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) InsertRfq(ctx context.Context, r *Rfq) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	c := *r
	m.rfqs[r.ID] = &c
	return nil
}

func (m *memStore) GetRfq(ctx context.Context, id int64) (*Rfq, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfqs[id]
	if !ok {
		return nil, fmt.Errorf("%w: rfq %d", ErrNotFound, id)
	}
	c := *r
	c.Quotes = nil
	c.Invitations = nil
	for _, q := range m.quotes {
		if q.RfqID == id {
			c.Quotes = append(c.Quotes, *q)
		}
	}
	for _, inv := range m.invitations {
		if inv.RfqID == id {
			c.Invitations = append(c.Invitations, *inv)
		}
	}
	return &c, nil
}

func (m *memStore) ListRfqs(ctx context.Context) ([]Rfq, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Rfq
	for _, r := range m.rfqs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) DeleteRfq(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rfqs, id)
	for qid, q := range m.quotes {
		if q.RfqID == id {
			delete(m.quotes, qid)
		}
	}
	for iid, inv := range m.invitations {
		if inv.RfqID == id {
			delete(m.invitations, iid)
		}
	}
	return nil
}

func (m *memStore) MarkRfqSent(ctx context.Context, id int64, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfqs[id]
	if !ok {
		return fmt.Errorf("%w: rfq %d", ErrNotFound, id)
	}
	r.Status = StatusSent
	if r.SentAt == nil {
		t := sentAt
		r.SentAt = &t
	}
	return nil
}

func (m *memStore) TransitionStatus(ctx context.Context, id int64, to Status, allowedFrom ...Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfqs[id]
	if !ok {
		return fmt.Errorf("%w: rfq %d", ErrNotFound, id)
	}
	for _, from := range allowedFrom {
		if r.Status == from {
			r.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: rfq %d is %s", ErrStatusConflict, id, r.Status)
}

func (m *memStore) SetDecision(ctx context.Context, id int64, d Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfqs[id]
	if !ok {
		return fmt.Errorf("%w: rfq %d", ErrNotFound, id)
	}
	r.WinnerQuoteID = &d.WinnerQuoteID
	r.DecisionReason = &d.Reason
	r.DecidedBy = d.DecidedBy
	t := d.DecidedAt
	r.DecidedAt = &t
	rank := d.WinnerRank
	r.WinnerRank = &rank
	r.HedgeID = d.HedgeID
	r.HedgeReference = d.HedgeReference
	r.AwardedAt = &t
	return nil
}

func (m *memStore) SetCancellation(ctx context.Context, id int64, reason string, actorID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfqs[id]
	if !ok {
		return fmt.Errorf("%w: rfq %d", ErrNotFound, id)
	}
	r.CancelReason = &reason
	r.CancelledBy = actorID
	return nil
}

func (m *memStore) GetSalesOrderDealID(ctx context.Context, soID int64) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.soDeals[soID], nil
}

func (m *memStore) InsertQuote(ctx context.Context, q *Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = m.id()
	c := *q
	m.quotes[q.ID] = &c
	return nil
}

func (m *memStore) GetQuote(ctx context.Context, id int64) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, fmt.Errorf("%w: quote %d", ErrNotFound, id)
	}
	c := *q
	return &c, nil
}

func (m *memStore) ListQuotes(ctx context.Context, rfqID int64) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, q := range m.quotes {
		if q.RfqID == rfqID {
			ids = append(ids, id)
		}
	}
	// insertion order
	sortInt64s(ids)
	out := make([]Quote, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.quotes[id])
	}
	return out, nil
}

func (m *memStore) FindQuoteByMessageMarker(ctx context.Context, rfqID, counterpartyID int64, channel, marker string) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.quotes {
		if q.RfqID == rfqID && q.CounterpartyID != nil && *q.CounterpartyID == counterpartyID &&
			q.Channel == channel && strings.Contains(q.Notes, marker) {
			c := *q
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) SelectWinnerQuote(ctx context.Context, rfqID, quoteID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.quotes {
		if q.RfqID == rfqID {
			q.Selected = q.ID == quoteID
		}
	}
	return nil
}

func (m *memStore) InsertInvitation(ctx context.Context, inv *Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.ID = m.id()
	c := *inv
	m.invitations[inv.ID] = &c
	return nil
}

func (m *memStore) FindInvitation(ctx context.Context, rfqID, counterpartyID int64) (*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.RfqID == rfqID && inv.CounterpartyID == counterpartyID {
			c := *inv
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) MarkInvitationAnswered(ctx context.Context, id int64, respondedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return fmt.Errorf("%w: invitation %d", ErrNotFound, id)
	}
	inv.Status = InvitationAnswered
	t := respondedAt
	inv.RespondedAt = &t
	return nil
}

func (m *memStore) FinalizeInvitations(ctx context.Context, rfqID int64, winnerCounterpartyID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.RfqID != rfqID || inv.Status.Terminal() {
			continue
		}
		if winnerCounterpartyID != nil && inv.CounterpartyID == *winnerCounterpartyID {
			inv.Status = InvitationWinner
		} else {
			inv.Status = InvitationLost
		}
	}
	return nil
}

func (m *memStore) InsertAttempt(ctx context.Context, a *SendAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.IdempotencyKey != nil {
		for _, existing := range m.attempts {
			if existing.RfqID == a.RfqID && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *a.IdempotencyKey {
				return fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, *a.IdempotencyKey)
			}
		}
	}
	if a.ProviderMessageID != nil {
		for _, existing := range m.attempts {
			if existing.ProviderMessageID != nil && *existing.ProviderMessageID == *a.ProviderMessageID {
				return fmt.Errorf("%w: %s", ErrDuplicateProviderMessage, *a.ProviderMessageID)
			}
		}
	}
	a.ID = m.id()
	c := *a
	m.attempts[a.ID] = &c
	return nil
}

func (m *memStore) GetAttempt(ctx context.Context, id int64) (*SendAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, fmt.Errorf("%w: send attempt %d", ErrNotFound, id)
	}
	c := *a
	return &c, nil
}

func (m *memStore) GetAttemptByProviderMessageID(ctx context.Context, providerMessageID string) (*SendAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ProviderMessageID != nil && *a.ProviderMessageID == providerMessageID {
			c := *a
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: attempt for provider_message_id %s", ErrNotFound, providerMessageID)
}

func (m *memStore) LatestAttemptByKey(ctx context.Context, rfqID int64, idempotencyKey string) (*SendAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *SendAttempt
	for _, a := range m.attempts {
		if a.RfqID == rfqID && a.IdempotencyKey != nil && *a.IdempotencyKey == idempotencyKey {
			if latest == nil || a.ID > latest.ID {
				latest = a
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (m *memStore) LatestAttempt(ctx context.Context, rfqID int64) (*SendAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *SendAttempt
	for _, a := range m.attempts {
		if a.RfqID == rfqID {
			if latest == nil || a.ID > latest.ID {
				latest = a
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (m *memStore) ListAttempts(ctx context.Context, rfqID int64) ([]SendAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, a := range m.attempts {
		if a.RfqID == rfqID {
			ids = append(ids, id)
		}
	}
	sortInt64s(ids)
	out := make([]SendAttempt, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // newest first
		out = append(out, *m.attempts[ids[i]])
	}
	return out, nil
}

func (m *memStore) UpdateAttempt(ctx context.Context, a *SendAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[a.ID]; !ok {
		return fmt.Errorf("%w: send attempt %d", ErrNotFound, a.ID)
	}
	c := *a
	m.attempts[a.ID] = &c
	return nil
}

func (m *memStore) ListActiveCounterparties(ctx context.Context) ([]Counterparty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Counterparty
	for _, cp := range m.counterparties {
		if cp.Active {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *memStore) InsertContract(ctx context.Context, c *Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts = append(m.contracts, *c)
	return nil
}

func (m *memStore) ListContracts(ctx context.Context, rfqID int64) ([]Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Contract
	for _, c := range m.contracts {
		if c.RfqID == rfqID {
			out = append(out, c)
		}
	}
	return out, nil
}

func sortInt64s(ids []int64) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// stubSender records transport calls and answers with a programmable result.
type stubSender struct {
	mu    sync.Mutex
	calls []SendMessage
	fn    func(msg SendMessage) SendResult
}

func (s *stubSender) Send(ctx context.Context, msg SendMessage) SendResult {
	s.mu.Lock()
	s.calls = append(s.calls, msg)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(msg)
	}
	return SendResult{Status: SendSent, ProviderMessageID: fmt.Sprintf("pm-%d", len(s.calls))}
}

// stubAudit captures recorded audit actions.
type stubAudit struct {
	mu      sync.Mutex
	actions []string
}

func (s *stubAudit) Record(ctx context.Context, action string, actorID *int64, payload map[string]any) {
	s.mu.Lock()
	s.actions = append(s.actions, action)
	s.mu.Unlock()
}

func (s *stubAudit) has(action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.actions {
		if a == action {
			return true
		}
	}
	return false
}
