package rfq

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// legVolumeTolerance is the maximum allowed buy/sell volume difference
// inside one trade group.
var legVolumeTolerance = decimal.New(1, -6)

const (
	LegBuy  = "buy"
	LegSell = "sell"
)

// AwardRequest selects the winning quote and closes the RFQ.
type AwardRequest struct {
	QuoteID        int64
	Reason         string
	HedgeID        *int64
	HedgeReference *string
}

// Award ranks the RFQ's quotes, validates the winner's trade groups,
// materializes one immutable Contract per group, finalizes invitations and
// moves the RFQ into its terminal awarded state. Steps after validation
// commit as a single transaction; any group validation failure aborts with
// no side effects.
func (s *Service) Award(ctx context.Context, rfqID int64, req AwardRequest, actorID *int64) (*Rfq, error) {
	r, err := s.store.GetRfq(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if r.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusAwarded)
	}
	if !Decidable(r.Status) {
		return nil, fmt.Errorf("%w: rfq status %s cannot be decided", ErrInvalidTransition, r.Status)
	}
	if len(strings.TrimSpace(req.Reason)) < 3 {
		return nil, fmt.Errorf("%w: motivo is required", ErrValidation)
	}

	winner, err := s.store.GetQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	if winner.RfqID != rfqID {
		return nil, fmt.Errorf("%w: quote not found for rfq", ErrNotFound)
	}

	quotes, err := s.store.ListQuotes(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	rank := winnerRank(quotes, winner.ID)
	snapshots, err := buildTradeSnapshots(winnerQuotes(quotes, winner))
	if err != nil {
		return nil, err
	}

	dealID, err := s.resolveDealID(ctx, r)
	if err != nil {
		return nil, err
	}

	now := s.now()
	contracts := make([]Contract, 0, len(snapshots))
	for i, snap := range snapshots {
		contracts = append(contracts, Contract{
			ContractID:     uuid.NewString(),
			DealID:         dealID,
			RfqID:          rfqID,
			CounterpartyID: winner.CounterpartyID,
			Status:         "active",
			TradeIndex:     i,
			QuoteGroupID:   snap.QuoteGroupID,
			TradeSnapshot:  snap,
			CreatedBy:      actorID,
			CreatedAt:      now,
		})
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		// The guarded transition goes first: losing the race to another
		// award (or a concurrent failure) rolls everything back before any
		// contract exists.
		if err := tx.TransitionStatus(ctx, rfqID, StatusAwarded, StatusDraft, StatusPending, StatusSent, StatusQuoted); err != nil {
			return err
		}
		for i := range contracts {
			if err := tx.InsertContract(ctx, &contracts[i]); err != nil {
				return err
			}
		}
		if err := tx.SelectWinnerQuote(ctx, rfqID, winner.ID); err != nil {
			return err
		}
		if err := tx.FinalizeInvitations(ctx, rfqID, winner.CounterpartyID); err != nil {
			return err
		}
		return tx.SetDecision(ctx, rfqID, Decision{
			WinnerQuoteID:  winner.ID,
			Reason:         req.Reason,
			DecidedBy:      actorID,
			DecidedAt:      now,
			WinnerRank:     rank,
			HedgeID:        req.HedgeID,
			HedgeReference: req.HedgeReference,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rfq.awarded",
		zap.Int64("rfq_id", rfqID),
		zap.Int64("quote_id", winner.ID),
		zap.Int("winner_rank", rank),
		zap.Int("contracts", len(contracts)))
	s.recordAudit(ctx, "rfq.awarded", actorID, map[string]any{
		"rfq_id":      rfqID,
		"quote_id":    winner.ID,
		"winner_rank": rank,
		"motivo":      req.Reason,
		"contracts":   len(contracts),
	})
	s.publish(ctx, "evt.rfq.awarded.v1", map[string]any{
		"rfq_id":      rfqID,
		"quote_id":    winner.ID,
		"winner_rank": rank,
	})
	return s.store.GetRfq(ctx, rfqID)
}

// ListContracts returns the contracts materialized for an RFQ.
func (s *Service) ListContracts(ctx context.Context, rfqID int64) ([]Contract, error) {
	if _, err := s.store.GetRfq(ctx, rfqID); err != nil {
		return nil, err
	}
	return s.store.ListContracts(ctx, rfqID)
}

// resolveDealID returns the RFQ's deal, or transitively the deal of its
// originating sales order. A contract cannot exist without a deal.
func (s *Service) resolveDealID(ctx context.Context, r *Rfq) (int64, error) {
	if r.DealID != nil {
		return *r.DealID, nil
	}
	dealID, err := s.store.GetSalesOrderDealID(ctx, r.SalesOrderID)
	if err != nil {
		return 0, err
	}
	if dealID == nil {
		return 0, fmt.Errorf("%w: rfq has no resolvable deal; contracts require a deal", ErrValidation)
	}
	return *dealID, nil
}

// winnerRank sorts quotes ascending by price (stable, preserving input
// order on ties) and returns the winner's 1-based position.
func winnerRank(quotes []Quote, winnerID int64) int {
	ordered := make([]Quote, len(quotes))
	copy(ordered, quotes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Price.LessThan(ordered[j].Price)
	})
	for i, q := range ordered {
		if q.ID == winnerID {
			return i + 1
		}
	}
	return 0
}

// winnerQuotes filters the RFQ's quotes down to the winning counterparty,
// matching by id when the winner has one, otherwise by name.
func winnerQuotes(quotes []Quote, winner *Quote) []Quote {
	var out []Quote
	for _, q := range quotes {
		if winner.CounterpartyID != nil {
			if q.CounterpartyID != nil && *q.CounterpartyID == *winner.CounterpartyID {
				out = append(out, q)
			}
			continue
		}
		if q.CounterpartyID == nil && q.CounterpartyName == winner.CounterpartyName {
			out = append(out, q)
		}
	}
	return out
}

// buildTradeSnapshots partitions quotes into trade groups and freezes each
// validated group into an immutable snapshot. A quote without a group id
// forms its own singleton group keyed by its quote id.
func buildTradeSnapshots(quotes []Quote) ([]TradeSnapshot, error) {
	groupIDs := make([]string, 0)
	groups := make(map[string][]Quote)
	for _, q := range quotes {
		key := q.QuoteGroupID
		if key == "" {
			key = fmt.Sprintf("q-%d", q.ID)
		}
		if _, seen := groups[key]; !seen {
			groupIDs = append(groupIDs, key)
		}
		groups[key] = append(groups[key], q)
	}

	snapshots := make([]TradeSnapshot, 0, len(groupIDs))
	for _, gid := range groupIDs {
		snap, err := buildSnapshot(gid, groups[gid])
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots, nil
}

func buildSnapshot(groupID string, legs []Quote) (*TradeSnapshot, error) {
	var buy, sell *Quote
	for i := range legs {
		switch strings.ToLower(legs[i].LegSide) {
		case LegBuy:
			if buy != nil {
				return nil, fmt.Errorf("%w: trade group %s has more than one buy leg", ErrValidation, groupID)
			}
			buy = &legs[i]
		case LegSell:
			if sell != nil {
				return nil, fmt.Errorf("%w: trade group %s has more than one sell leg", ErrValidation, groupID)
			}
			sell = &legs[i]
		}
	}
	if buy == nil {
		return nil, fmt.Errorf("%w: trade group %s is missing a buy leg", ErrValidation, groupID)
	}
	if sell == nil {
		return nil, fmt.Errorf("%w: trade group %s is missing a sell leg", ErrValidation, groupID)
	}

	if buy.VolumeMT != nil && sell.VolumeMT != nil {
		if buy.VolumeMT.Sub(*sell.VolumeMT).Abs().GreaterThan(legVolumeTolerance) {
			return nil, fmt.Errorf("%w: trade group %s leg volumes differ: buy %s vs sell %s",
				ErrValidation, groupID, buy.VolumeMT.String(), sell.VolumeMT.String())
		}
	}

	return &TradeSnapshot{
		QuoteGroupID: groupID,
		Buy:          snapshotLeg(buy, LegBuy),
		Sell:         snapshotLeg(sell, LegSell),
	}, nil
}

func snapshotLeg(q *Quote, side string) TradeLeg {
	return TradeLeg{
		QuoteID:    q.ID,
		Side:       side,
		Price:      q.Price,
		VolumeMT:   q.VolumeMT,
		PriceType:  q.PriceType,
		ValidUntil: q.ValidUntil,
		Notes:      q.Notes,
	}
}
