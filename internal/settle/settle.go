package settle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calebgmahala/SaltyBets/internal/ledger"
	"github.com/calebgmahala/SaltyBets/internal/metrics"
	"github.com/calebgmahala/SaltyBets/internal/model"
	"github.com/calebgmahala/SaltyBets/internal/store"
)

// ErrNoWinner is returned when Settle is called for a match whose
// winning side has not been set.
var ErrNoWinner = errors.New("settle: match has no winning side")

// Service performs settlement: it reads the full ledger, applies the
// durable all-or-nothing transaction (debits, stake rows, payouts), and
// only then resets the ledger. The lifecycle controller guarantees this
// runs to completion before the next match opens, so the ledger always
// belongs to exactly one match.
type Service struct {
	store  store.Store
	ledger ledger.Ledger
}

// NewService creates a settlement service.
func NewService(st store.Store, l ledger.Ledger) *Service {
	return &Service{store: st, ledger: l}
}

// Settle drains the ledger for the given concluded match. Settlement
// for a match id runs at most once; the caller sequences it between
// setting the winning side and opening the next match.
func (s *Service) Settle(ctx context.Context, match *model.Match) error {
	if match.WinningSide == nil {
		return ErrNoWinner
	}

	entries, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("settle %s: %w", match.ID, err)
	}

	now := time.Now().UTC()
	stakes := make([]model.Stake, 0, len(entries))
	total := model.TotalsSnapshot{}
	for _, e := range entries {
		stakes = append(stakes, model.Stake{
			ID:        uuid.New().String(),
			Amount:    e.Amount,
			Side:      e.Side,
			UserID:    e.UserID,
			MatchID:   match.ID,
			CreatedAt: now,
		})
		if e.Side == model.SideRed {
			total.Red = total.Red.Add(e.Amount)
		} else {
			total.Blue = total.Blue.Add(e.Amount)
		}
	}

	batch := &store.SettlementBatch{
		MatchID: match.ID,
		Stakes:  stakes,
		Awards:  Distribute(stakes, *match.WinningSide),
	}

	if err := s.store.ApplySettlement(ctx, batch); err != nil {
		return fmt.Errorf("settle %s: %w", match.ID, err)
	}

	// The durable records exist; clear the ephemeral window so the next
	// match starts from zero.
	if err := s.ledger.Reset(ctx); err != nil {
		return fmt.Errorf("settle %s: reset ledger: %w", match.ID, err)
	}

	metrics.SettlementsTotal.Inc()
	metrics.SettledStakes.Add(float64(len(stakes)))

	slog.Info("match settled",
		"match", match.ID,
		"winner", string(*match.WinningSide),
		"stakes", len(stakes),
		"pool_red", total.Red.String(),
		"pool_blue", total.Blue.String(),
	)
	return nil
}
