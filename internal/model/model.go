// Package model defines the core domain types shared across the betting
// engine. All monetary values use shopspring/decimal — never float64 for
// money.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is one of the two competitor colors a stake can be placed on.
type Side string

const (
	SideRed  Side = "red"
	SideBlue Side = "blue"
)

// ParseSide validates a side string.
func ParseSide(s string) (Side, bool) {
	switch Side(s) {
	case SideRed, SideBlue:
		return Side(s), true
	}
	return "", false
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideRed {
		return SideBlue
	}
	return SideRed
}

// MinIncrement is the minimum betting increment. Every stake amount must
// be a positive integer multiple of it. This is the single place the
// granularity is defined.
var MinIncrement = decimal.NewFromFloat(0.05)

// ValidAmount reports whether amount is positive and an exact multiple
// of MinIncrement.
func ValidAmount(amount decimal.Decimal) bool {
	if amount.LessThanOrEqual(decimal.Zero) {
		return false
	}
	return amount.Mod(MinIncrement).IsZero()
}

// MatchStatus is the explicit lifecycle state of a match:
// open → locked (winner set, settlement running) → settled.
type MatchStatus string

const (
	MatchOpen    MatchStatus = "open"
	MatchLocked  MatchStatus = "locked"
	MatchSettled MatchStatus = "settled"
)

// User is the durable record owned by the identity subsystem. The
// betting core reads and mutates Balance and the four counters, under a
// transaction, during settlement only.
type User struct {
	ID                 string          `json:"id" db:"id"`
	Balance            decimal.Decimal `json:"balance" db:"balance"`
	TotalWins          int             `json:"total_wins" db:"total_wins"`
	TotalLosses        int             `json:"total_losses" db:"total_losses"`
	TotalRevenueGained decimal.Decimal `json:"total_revenue_gained" db:"total_revenue_gained"`
	TotalRevenueLost   decimal.Decimal `json:"total_revenue_lost" db:"total_revenue_lost"`
}

// Match is a durable record of one real-world bout. WinningSide is nil
// until the match is decided and is set exactly once. The most recently
// created match is the current one.
type Match struct {
	ID          string      `json:"id" db:"id"`
	ExternalID  int64       `json:"external_id,omitempty" db:"external_id"`
	WinningSide *Side       `json:"winning_side" db:"winning_side"`
	Fighter1    string      `json:"fighter1" db:"fighter1"`
	Fighter2    string      `json:"fighter2" db:"fighter2"`
	Status      MatchStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Stake is an immutable durable record of a settled bet. Stakes are
// created only by settlement, never directly by a user action.
type Stake struct {
	ID        string          `json:"id" db:"id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Side      Side            `json:"side" db:"side"`
	UserID    string          `json:"user_id" db:"user_id"`
	MatchID   string          `json:"match_id" db:"match_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TotalsSnapshot is the live aggregate staked per side, as broadcast to
// subscribers.
type TotalsSnapshot struct {
	Red  decimal.Decimal `json:"red"`
	Blue decimal.Decimal `json:"blue"`
}

// Equal reports whether two snapshots carry identical values. Used for
// broadcast no-op suppression.
func (t TotalsSnapshot) Equal(o TotalsSnapshot) bool {
	return t.Red.Equal(o.Red) && t.Blue.Equal(o.Blue)
}

// BoutToken builds the match identity token:
// "<fighter1>-<fighter2>-<freshnessToken>". The format must be stable
// for interop with persisted data.
func BoutToken(fighter1, fighter2, freshness string) string {
	return fighter1 + "-" + fighter2 + "-" + freshness
}

// SameBout reports whether two tokens identify the same competitor
// pair. Only the first two hyphen-delimited fields take part in the
// comparison; the freshness field is informational.
func SameBout(a, b string) bool {
	af := strings.SplitN(a, "-", 3)
	bf := strings.SplitN(b, "-", 3)
	if len(af) < 2 || len(bf) < 2 {
		return false
	}
	return af[0] == bf[0] && af[1] == bf[1]
}
