// Package store defines the durable persistence interface for the
// betting engine. Implementations include PostgreSQL (source of truth)
// and in-memory (for testing). The ephemeral betting ledger lives in
// package ledger, not here.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Award is one user's settlement outcome: the balance credit to apply
// and the statistics deltas. Produced by the payout engine, applied by
// ApplySettlement.
type Award struct {
	UserID        string
	Credit        decimal.Decimal
	Wins          int
	Losses        int
	RevenueGained decimal.Decimal
	RevenueLost   decimal.Decimal
}

// SettlementBatch is the full durable effect of settling one match:
// every stake's amount is debited from its user's balance and the stake
// row inserted, then every award is applied. The whole batch commits or
// rolls back as one transaction — a partial settlement must never be
// observable.
type SettlementBatch struct {
	MatchID string
	Stakes  []model.Stake
	Awards  []Award
}

// Store is the durable persistence interface.
type Store interface {
	// --- Users (owned by the identity subsystem; the core reads the
	// record and mutates balance/counters only via ApplySettlement) ---

	GetUser(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error

	// --- Matches ---

	CreateMatch(ctx context.Context, m *model.Match) error
	GetMatch(ctx context.Context, id string) (*model.Match, error)

	// CurrentMatch returns the most recently created match, or
	// ErrNotFound when none exists.
	CurrentMatch(ctx context.Context) (*model.Match, error)

	// UpdateMatch persists WinningSide, ExternalID, and Status.
	// All other fields are immutable after creation.
	UpdateMatch(ctx context.Context, m *model.Match) error

	// --- Stakes (created only by settlement) ---

	StakeFor(ctx context.Context, userID, matchID string) (*model.Stake, error)
	StakesByMatch(ctx context.Context, matchID string) ([]model.Stake, error)

	// ApplySettlement applies a settlement batch atomically.
	ApplySettlement(ctx context.Context, batch *SettlementBatch) error
}
