// Package store persists the RFQ engine's state in Postgres with a Redis
// cache in front of hot reads.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

//go:embed schema.sql
var schemaDDL string

// detailCacheTTL bounds staleness of the cached RFQ detail between the
// write-side invalidations.
const detailCacheTTL = 30 * time.Second

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx, so every query method
// works unchanged inside and outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// HybridStore is the Redis-cached, Postgres-backed rfq.Store.
type HybridStore struct {
	redis  *redis.Client
	pool   *pgxpool.Pool
	db     dbtx
	logger *zap.Logger
	inTx   bool
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pgPoolConfig.MaxConns > 0 {
		cfg.MaxConns = pgPoolConfig.MaxConns
	}
	if pgPoolConfig.MinConns > 0 {
		cfg.MinConns = pgPoolConfig.MinConns
	}
	if pgPoolConfig.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
	}
	if pgPoolConfig.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
	}
	if pgPoolConfig.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &HybridStore{redis: rdb, pool: pool, db: pool, logger: logger}, nil
}

// EnsureSchema applies the embedded DDL. Every statement is idempotent.
func (s *HybridStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RunInTx runs fn against a transaction-scoped store. Nested calls join the
// outer transaction.
func (s *HybridStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx rfq.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &HybridStore{redis: s.redis, pool: s.pool, db: tx, logger: s.logger, inTx: true}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const rfqColumns = `id, rfq_number, so_id, deal_id, quantity_mt, period, status, message_text,
	sent_at, created_at, winner_quote_id, decision_reason, decided_by, decided_at,
	winner_rank, hedge_id, hedge_reference, awarded_at, cancel_reason, cancelled_by`

func scanRfq(row pgx.Row) (*rfq.Rfq, error) {
	var r rfq.Rfq
	err := row.Scan(&r.ID, &r.RfqNumber, &r.SalesOrderID, &r.DealID, &r.QuantityMT, &r.Period,
		&r.Status, &r.MessageText, &r.SentAt, &r.CreatedAt, &r.WinnerQuoteID, &r.DecisionReason,
		&r.DecidedBy, &r.DecidedAt, &r.WinnerRank, &r.HedgeID, &r.HedgeReference, &r.AwardedAt,
		&r.CancelReason, &r.CancelledBy)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *HybridStore) InsertRfq(ctx context.Context, r *rfq.Rfq) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO rfq.rfqs (rfq_number, so_id, deal_id, quantity_mt, period, status, message_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, r.RfqNumber, r.SalesOrderID, r.DealID, r.QuantityMT, r.Period, string(r.Status), r.MessageText, r.CreatedAt).
		Scan(&r.ID)
}

func (s *HybridStore) GetRfq(ctx context.Context, id int64) (*rfq.Rfq, error) {
	key := detailKey(id)
	if !s.inTx {
		var cached rfq.Rfq
		if err := s.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	r, err := scanRfq(s.db.QueryRow(ctx, `SELECT `+rfqColumns+` FROM rfq.rfqs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: rfq %d", rfq.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if r.Quotes, err = s.ListQuotes(ctx, id); err != nil {
		return nil, err
	}
	if r.Invitations, err = s.listInvitations(ctx, id); err != nil {
		return nil, err
	}

	if !s.inTx {
		if err := s.SetJSON(ctx, key, r, detailCacheTTL); err != nil {
			s.logger.Debug("store.cache_set_failed", zap.Int64("rfq_id", id), zap.Error(err))
		}
	}
	return r, nil
}

func (s *HybridStore) ListRfqs(ctx context.Context) ([]rfq.Rfq, error) {
	rows, err := s.db.Query(ctx, `SELECT `+rfqColumns+` FROM rfq.rfqs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rfq.Rfq
	for rows.Next() {
		r, err := scanRfq(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *HybridStore) DeleteRfq(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM rfq.rfqs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rfq %d", rfq.ErrNotFound, id)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *HybridStore) MarkRfqSent(ctx context.Context, id int64, sentAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE rfq.rfqs SET status = $2, sent_at = COALESCE(sent_at, $3) WHERE id = $1
	`, id, string(rfq.StatusSent), sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rfq %d", rfq.ErrNotFound, id)
	}
	s.invalidate(ctx, id)
	return nil
}

// TransitionStatus is the optimistic guard against concurrent lifecycle
// writes: the update only lands when the row still holds an allowed status.
func (s *HybridStore) TransitionStatus(ctx context.Context, id int64, to rfq.Status, allowedFrom ...rfq.Status) error {
	from := make([]string, 0, len(allowedFrom))
	for _, st := range allowedFrom {
		from = append(from, string(st))
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rfq.rfqs SET status = $2 WHERE id = $1 AND status = ANY($3)
	`, id, string(to), from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := s.db.QueryRow(ctx, `SELECT status FROM rfq.rfqs WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: rfq %d", rfq.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: rfq %d is %s", rfq.ErrStatusConflict, id, current)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *HybridStore) SetDecision(ctx context.Context, id int64, d rfq.Decision) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE rfq.rfqs SET
			winner_quote_id = $2, decision_reason = $3, decided_by = $4, decided_at = $5,
			winner_rank = $6, hedge_id = $7, hedge_reference = $8, awarded_at = $5
		WHERE id = $1
	`, id, d.WinnerQuoteID, d.Reason, d.DecidedBy, d.DecidedAt, d.WinnerRank, d.HedgeID, d.HedgeReference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rfq %d", rfq.ErrNotFound, id)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *HybridStore) SetCancellation(ctx context.Context, id int64, reason string, actorID *int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE rfq.rfqs SET cancel_reason = $2, cancelled_by = $3 WHERE id = $1
	`, id, reason, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rfq %d", rfq.ErrNotFound, id)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *HybridStore) GetSalesOrderDealID(ctx context.Context, soID int64) (*int64, error) {
	var dealID *int64
	err := s.db.QueryRow(ctx, `SELECT deal_id FROM rfq.sales_orders WHERE id = $1`, soID).Scan(&dealID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dealID, nil
}

const quoteColumns = `id, rfq_id, counterparty_id, counterparty_name, quote_price, price_type,
	volume_mt, valid_until, notes, channel, status, quote_group_id, leg_side, selected, quoted_at`

func scanQuote(row pgx.Row) (*rfq.Quote, error) {
	var q rfq.Quote
	err := row.Scan(&q.ID, &q.RfqID, &q.CounterpartyID, &q.CounterpartyName, &q.Price, &q.PriceType,
		&q.VolumeMT, &q.ValidUntil, &q.Notes, &q.Channel, &q.Status, &q.QuoteGroupID, &q.LegSide,
		&q.Selected, &q.QuotedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *HybridStore) InsertQuote(ctx context.Context, q *rfq.Quote) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO rfq.rfq_quotes (rfq_id, counterparty_id, counterparty_name, quote_price, price_type,
			volume_mt, valid_until, notes, channel, status, quote_group_id, leg_side, selected, quoted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, q.RfqID, q.CounterpartyID, q.CounterpartyName, q.Price, q.PriceType, q.VolumeMT, q.ValidUntil,
		q.Notes, q.Channel, q.Status, q.QuoteGroupID, q.LegSide, q.Selected, q.QuotedAt).
		Scan(&q.ID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, q.RfqID)
	return nil
}

func (s *HybridStore) GetQuote(ctx context.Context, id int64) (*rfq.Quote, error) {
	q, err := scanQuote(s.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM rfq.rfq_quotes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: quote %d", rfq.ErrNotFound, id)
	}
	return q, err
}

func (s *HybridStore) ListQuotes(ctx context.Context, rfqID int64) ([]rfq.Quote, error) {
	rows, err := s.db.Query(ctx, `SELECT `+quoteColumns+` FROM rfq.rfq_quotes WHERE rfq_id = $1 ORDER BY id`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rfq.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (s *HybridStore) FindQuoteByMessageMarker(ctx context.Context, rfqID, counterpartyID int64, channel, marker string) (*rfq.Quote, error) {
	q, err := scanQuote(s.db.QueryRow(ctx, `
		SELECT `+quoteColumns+` FROM rfq.rfq_quotes
		WHERE rfq_id = $1 AND counterparty_id = $2 AND channel = $3 AND notes LIKE '%' || $4 || '%'
		ORDER BY id LIMIT 1
	`, rfqID, counterpartyID, channel, marker))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (s *HybridStore) SelectWinnerQuote(ctx context.Context, rfqID, quoteID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE rfq.rfq_quotes SET selected = (id = $2) WHERE rfq_id = $1
	`, rfqID, quoteID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, rfqID)
	return nil
}

const invitationColumns = `id, rfq_id, counterparty_id, counterparty_name, status, sent_at,
	responded_at, expires_at, message_text`

func scanInvitation(row pgx.Row) (*rfq.Invitation, error) {
	var inv rfq.Invitation
	err := row.Scan(&inv.ID, &inv.RfqID, &inv.CounterpartyID, &inv.CounterpartyName, &inv.Status,
		&inv.SentAt, &inv.RespondedAt, &inv.ExpiresAt, &inv.MessageText)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *HybridStore) InsertInvitation(ctx context.Context, inv *rfq.Invitation) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO rfq.rfq_invitations (rfq_id, counterparty_id, counterparty_name, status, sent_at, responded_at, expires_at, message_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, inv.RfqID, inv.CounterpartyID, inv.CounterpartyName, string(inv.Status), inv.SentAt,
		inv.RespondedAt, inv.ExpiresAt, inv.MessageText).
		Scan(&inv.ID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, inv.RfqID)
	return nil
}

func (s *HybridStore) FindInvitation(ctx context.Context, rfqID, counterpartyID int64) (*rfq.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRow(ctx, `
		SELECT `+invitationColumns+` FROM rfq.rfq_invitations
		WHERE rfq_id = $1 AND counterparty_id = $2
		ORDER BY id LIMIT 1
	`, rfqID, counterpartyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

func (s *HybridStore) listInvitations(ctx context.Context, rfqID int64) ([]rfq.Invitation, error) {
	rows, err := s.db.Query(ctx, `SELECT `+invitationColumns+` FROM rfq.rfq_invitations WHERE rfq_id = $1 ORDER BY id`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rfq.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *HybridStore) MarkInvitationAnswered(ctx context.Context, id int64, respondedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE rfq.rfq_invitations SET status = $2, responded_at = $3 WHERE id = $1
	`, id, string(rfq.InvitationAnswered), respondedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invitation %d", rfq.ErrNotFound, id)
	}
	return nil
}

func (s *HybridStore) FinalizeInvitations(ctx context.Context, rfqID int64, winnerCounterpartyID *int64) error {
	terminal := []string{
		string(rfq.InvitationWinner), string(rfq.InvitationLost),
		string(rfq.InvitationExpired), string(rfq.InvitationRefused),
	}
	if winnerCounterpartyID != nil {
		_, err := s.db.Exec(ctx, `
			UPDATE rfq.rfq_invitations SET status = $3
			WHERE rfq_id = $1 AND counterparty_id = $2 AND NOT (status = ANY($4))
		`, rfqID, *winnerCounterpartyID, string(rfq.InvitationWinner), terminal)
		if err != nil {
			return err
		}
	}
	_, err := s.db.Exec(ctx, `
		UPDATE rfq.rfq_invitations SET status = $2
		WHERE rfq_id = $1 AND NOT (status = ANY($3))
	`, rfqID, string(rfq.InvitationLost), terminal)
	if err != nil {
		return err
	}
	s.invalidate(ctx, rfqID)
	return nil
}

const attemptColumns = `id, rfq_id, channel, status, provider_message_id, error, metadata,
	idempotency_key, retry_of_attempt_id, created_at, updated_at`

func scanAttempt(row pgx.Row) (*rfq.SendAttempt, error) {
	var a rfq.SendAttempt
	err := row.Scan(&a.ID, &a.RfqID, &a.Channel, &a.Status, &a.ProviderMessageID, &a.Error,
		&a.Metadata, &a.IdempotencyKey, &a.RetryOfAttemptID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *HybridStore) InsertAttempt(ctx context.Context, a *rfq.SendAttempt) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO rfq.rfq_send_attempts (rfq_id, channel, status, provider_message_id, error,
			metadata, idempotency_key, retry_of_attempt_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, a.RfqID, a.Channel, string(a.Status), a.ProviderMessageID, a.Error, a.Metadata,
		a.IdempotencyKey, a.RetryOfAttemptID, a.CreatedAt, a.UpdatedAt).
		Scan(&a.ID)
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case "uq_rfq_send_attempts_key":
			return fmt.Errorf("%w: rfq %d", rfq.ErrDuplicateIdempotencyKey, a.RfqID)
		case "uq_rfq_send_attempts_pmid":
			return fmt.Errorf("%w: rfq %d", rfq.ErrDuplicateProviderMessage, a.RfqID)
		}
	}
	return err
}

func (s *HybridStore) GetAttempt(ctx context.Context, id int64) (*rfq.SendAttempt, error) {
	a, err := scanAttempt(s.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM rfq.rfq_send_attempts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: send attempt %d", rfq.ErrNotFound, id)
	}
	return a, err
}

func (s *HybridStore) GetAttemptByProviderMessageID(ctx context.Context, providerMessageID string) (*rfq.SendAttempt, error) {
	a, err := scanAttempt(s.db.QueryRow(ctx, `
		SELECT `+attemptColumns+` FROM rfq.rfq_send_attempts
		WHERE provider_message_id = $1
		ORDER BY id DESC LIMIT 1
	`, providerMessageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: attempt for provider_message_id %s", rfq.ErrNotFound, providerMessageID)
	}
	return a, err
}

func (s *HybridStore) LatestAttemptByKey(ctx context.Context, rfqID int64, idempotencyKey string) (*rfq.SendAttempt, error) {
	a, err := scanAttempt(s.db.QueryRow(ctx, `
		SELECT `+attemptColumns+` FROM rfq.rfq_send_attempts
		WHERE rfq_id = $1 AND idempotency_key = $2
		ORDER BY id DESC LIMIT 1
	`, rfqID, idempotencyKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *HybridStore) LatestAttempt(ctx context.Context, rfqID int64) (*rfq.SendAttempt, error) {
	a, err := scanAttempt(s.db.QueryRow(ctx, `
		SELECT `+attemptColumns+` FROM rfq.rfq_send_attempts
		WHERE rfq_id = $1
		ORDER BY id DESC LIMIT 1
	`, rfqID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *HybridStore) ListAttempts(ctx context.Context, rfqID int64) ([]rfq.SendAttempt, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+attemptColumns+` FROM rfq.rfq_send_attempts WHERE rfq_id = $1 ORDER BY id DESC
	`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rfq.SendAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *HybridStore) UpdateAttempt(ctx context.Context, a *rfq.SendAttempt) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE rfq.rfq_send_attempts
		SET status = $2, provider_message_id = $3, error = $4, metadata = $5, idempotency_key = $6, updated_at = $7
		WHERE id = $1
	`, a.ID, string(a.Status), a.ProviderMessageID, a.Error, a.Metadata, a.IdempotencyKey, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: send attempt %d", rfq.ErrNotFound, a.ID)
	}
	return nil
}

func (s *HybridStore) ListActiveCounterparties(ctx context.Context) ([]rfq.Counterparty, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, type, preferred_channel, api_headers, active
		FROM rfq.counterparties WHERE active ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rfq.Counterparty
	for rows.Next() {
		var cp rfq.Counterparty
		if err := rows.Scan(&cp.ID, &cp.Name, &cp.Type, &cp.PreferredChannel, &cp.APIHeaders, &cp.Active); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *HybridStore) InsertContract(ctx context.Context, c *rfq.Contract) error {
	snapshot, err := json.Marshal(c.TradeSnapshot)
	if err != nil {
		return fmt.Errorf("encode trade snapshot: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO rfq.contracts (contract_id, deal_id, rfq_id, counterparty_id, status,
			trade_index, quote_group_id, trade_snapshot, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ContractID, c.DealID, c.RfqID, c.CounterpartyID, c.Status, c.TradeIndex,
		c.QuoteGroupID, snapshot, c.CreatedBy, c.CreatedAt)
	return err
}

func (s *HybridStore) ListContracts(ctx context.Context, rfqID int64) ([]rfq.Contract, error) {
	rows, err := s.db.Query(ctx, `
		SELECT contract_id, deal_id, rfq_id, counterparty_id, status, trade_index,
			quote_group_id, trade_snapshot, created_by, created_at
		FROM rfq.contracts WHERE rfq_id = $1 ORDER BY trade_index
	`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rfq.Contract
	for rows.Next() {
		var c rfq.Contract
		if err := rows.Scan(&c.ContractID, &c.DealID, &c.RfqID, &c.CounterpartyID, &c.Status,
			&c.TradeIndex, &c.QuoteGroupID, &c.TradeSnapshot, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordAudit appends one audit row. Callers treat failures as best-effort.
func (s *HybridStore) RecordAudit(ctx context.Context, action string, actorID *int64, payload map[string]any) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rfq.audit_log (action, actor_id, payload) VALUES ($1, $2, $3)
	`, action, actorID, payload)
	return err
}

// CountByStatus feeds the status gauge refresher.
func (s *HybridStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM rfq.rfqs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return s.redis.Close()
}

func detailKey(id int64) string {
	return fmt.Sprintf("rfq:detail:%d", id)
}

// invalidate drops the cached detail for an RFQ. Cache maintenance never
// fails a write.
func (s *HybridStore) invalidate(ctx context.Context, id int64) {
	if err := s.redis.Del(ctx, detailKey(id)).Err(); err != nil {
		s.logger.Debug("store.cache_invalidate_failed", zap.Int64("rfq_id", id), zap.Error(err))
	}
}

// uniqueViolation reports which unique index fired, if any. The two
// attempt indexes map to different domain errors; every other 23505
// surfaces as a plain error.
func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
