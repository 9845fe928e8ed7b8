// Package bet exposes the stake ledger operations: placing and
// cancelling stakes against the currently open match, reading the live
// side totals, and serving "my bet" queries. It validates requests and
// delegates the actual mutation to the ledger's atomic operations.
//
// All monetary values use shopspring/decimal — never float64 for money.
package bet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/ledger"
	"github.com/calebgmahala/SaltyBets/internal/metrics"
	"github.com/calebgmahala/SaltyBets/internal/model"
	"github.com/calebgmahala/SaltyBets/internal/store"
)

var (
	// ErrInvalidAmount is returned when an amount is not a positive
	// multiple of model.MinIncrement.
	ErrInvalidAmount = errors.New("bet: amount must be a positive multiple of the minimum increment")

	// ErrInvalidSide is returned when the side is neither red nor blue.
	ErrInvalidSide = errors.New("bet: side must be red or blue")

	// ErrNoOpenMatch is returned when no current match exists.
	ErrNoOpenMatch = errors.New("bet: no open match")

	// ErrMatchLocked is returned when the current match no longer
	// accepts stakes.
	ErrMatchLocked = errors.New("bet: match is locked")

	// ErrInsufficientFunds is returned when the amount exceeds the
	// user's balance minus their currently reserved stake.
	ErrInsufficientFunds = errors.New("bet: insufficient funds")

	// ErrNoActiveStake is returned by CancelStake when the user has no
	// active stake.
	ErrNoActiveStake = errors.New("bet: no active stake")

	// ErrStakeExceedsActive is returned by CancelStake when the amount
	// exceeds the user's active stake.
	ErrStakeExceedsActive = errors.New("bet: amount exceeds active stake")
)

// Service handles stake operations for the currently open match.
type Service struct {
	store    store.Store
	ledger   ledger.Ledger
	throttle *Throttle // optional; nil disables broadcasting
}

// NewService creates a stake service. Pass nil for throttle if totals
// broadcasting is not needed.
func NewService(st store.Store, l ledger.Ledger, throttle *Throttle) *Service {
	return &Service{store: st, ledger: l, throttle: throttle}
}

// PlaceStake reserves amount on side for the user.
//
// The balance check reads the user's currently reserved amount from the
// ledger immediately before placing. It is read-then-decide, not part
// of the atomic placement: two concurrent placements by the same user
// can both observe the stale reservation and over-commit. The window is
// bounded by per-request latency and is accepted rather than closed
// (see DESIGN.md).
func (s *Service) PlaceStake(ctx context.Context, user *model.User, amount decimal.Decimal, side model.Side) error {
	if !model.ValidAmount(amount) {
		metrics.BetsRejectedTotal.WithLabelValues("invalid_amount").Inc()
		return ErrInvalidAmount
	}
	if _, ok := model.ParseSide(string(side)); !ok {
		metrics.BetsRejectedTotal.WithLabelValues("invalid_side").Inc()
		return ErrInvalidSide
	}

	current, err := s.store.CurrentMatch(ctx)
	if errors.Is(err, store.ErrNotFound) {
		metrics.BetsRejectedTotal.WithLabelValues("no_match").Inc()
		return ErrNoOpenMatch
	}
	if err != nil {
		return fmt.Errorf("bet: current match: %w", err)
	}
	if current.Status != model.MatchOpen {
		metrics.BetsRejectedTotal.WithLabelValues("locked").Inc()
		return ErrMatchLocked
	}

	entry, err := s.ledger.EntryOf(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("bet: read reservation: %w", err)
	}
	reserved := decimal.Zero
	if entry != nil {
		reserved = entry.Amount
	}
	if user.Balance.Sub(reserved).LessThan(amount) {
		metrics.BetsRejectedTotal.WithLabelValues("insufficient_funds").Inc()
		return ErrInsufficientFunds
	}

	if err := s.ledger.Place(ctx, user.ID, amount, side); err != nil {
		return err
	}

	metrics.BetsPlacedTotal.WithLabelValues(string(side)).Inc()
	slog.Info("stake placed",
		"user", user.ID,
		"amount", amount.String(),
		"side", string(side),
		"match", current.ID,
	)

	if s.throttle != nil {
		s.throttle.Request()
	}
	return nil
}

// CancelStake releases amount from the user's active stake.
func (s *Service) CancelStake(ctx context.Context, user *model.User, amount decimal.Decimal) error {
	if !model.ValidAmount(amount) {
		return ErrInvalidAmount
	}

	err := s.ledger.Cancel(ctx, user.ID, amount)
	switch {
	case errors.Is(err, ledger.ErrNoBet):
		return ErrNoActiveStake
	case errors.Is(err, ledger.ErrInsufficientBet):
		return ErrStakeExceedsActive
	case err != nil:
		return err
	}

	metrics.BetsCancelledTotal.Inc()
	slog.Info("stake cancelled", "user", user.ID, "amount", amount.String())

	if s.throttle != nil {
		s.throttle.Request()
	}
	return nil
}

// CurrentTotals returns the live aggregate staked per side.
func (s *Service) CurrentTotals(ctx context.Context) (model.TotalsSnapshot, error) {
	return s.ledger.SideTotals(ctx)
}

// ActiveEntryOf returns the user's ephemeral entry for the open betting
// window, or nil when none exists. While a match is open this is the
// only view of "my bet" — durable stake rows exist only post-settlement.
func (s *Service) ActiveEntryOf(ctx context.Context, userID string) (*ledger.Entry, error) {
	return s.ledger.EntryOf(ctx, userID)
}

// ActiveStakeOf returns the user's durable stake on the current match,
// or nil when none has been settled yet.
func (s *Service) ActiveStakeOf(ctx context.Context, userID string) (*model.Stake, error) {
	current, err := s.store.CurrentMatch(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bet: current match: %w", err)
	}

	stake, err := s.store.StakeFor(ctx, userID, current.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stake, nil
}
