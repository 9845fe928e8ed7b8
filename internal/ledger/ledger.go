// Package ledger is the ephemeral store of currently-open, not-yet-
// settled stakes. It holds one entry per user plus one aggregate
// counter per side, and guarantees that every mutation ("read current
// amount, compute new amount, write amount, adjust aggregate") is a
// single indivisible step even under concurrent callers.
//
// Amounts cross the store boundary as integer cents so that script-side
// arithmetic stays exact; the public API uses shopspring/decimal.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

var (
	// ErrNoBet is returned by Cancel when the user has no active entry.
	ErrNoBet = errors.New("ledger: no active bet")

	// ErrInsufficientBet is returned by Cancel when the requested amount
	// exceeds the stored entry amount.
	ErrInsufficientBet = errors.New("ledger: amount exceeds active bet")
)

// Entry is one user's active stake within the currently open betting
// window. At most one entry exists per user; the ledger is reset at
// settlement, so entries are implicitly scoped to the current match.
type Entry struct {
	UserID string
	Amount decimal.Decimal
	Side   model.Side
}

// Ledger provides atomic place/cancel over per-user entries and side
// aggregates, plus the snapshot/reset pair settlement drains it with.
//
// Place and Cancel confine their effects to the keys they name and are
// atomic with respect to every other ledger operation. SideTotals is a
// plain read: the two counters are individually exact but not required
// to be mutually consistent at a single instant.
type Ledger interface {
	// Place adds amount to the user's entry (creating it if absent),
	// records side, and adds amount to that side's aggregate. A user
	// placing on the opposite side keeps their accumulated amount; the
	// accumulated portion is carried over to the new side's aggregate.
	// Place never rejects on balance — that check belongs to the caller.
	Place(ctx context.Context, userID string, amount decimal.Decimal, side model.Side) error

	// Cancel subtracts amount from the user's entry, deleting it when
	// the result is exactly zero, and decrements the aggregate of the
	// entry's recorded side. Fails with ErrNoBet or ErrInsufficientBet.
	Cancel(ctx context.Context, userID string, amount decimal.Decimal) error

	// SideTotals returns the live aggregate staked per side.
	SideTotals(ctx context.Context) (model.TotalsSnapshot, error)

	// EntryOf returns the user's active entry, or nil when absent.
	EntryOf(ctx context.Context, userID string) (*Entry, error)

	// Snapshot returns every active entry. Settlement reads this,
	// applies its durable transaction, then calls Reset.
	Snapshot(ctx context.Context) ([]Entry, error)

	// Reset deletes all entries and zeroes both side aggregates.
	Reset(ctx context.Context) error
}

// toCents converts a validated stake amount to integer cents. Amounts
// are multiples of model.MinIncrement, so this is exact.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// fromCents converts integer cents back to a decimal amount.
func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
