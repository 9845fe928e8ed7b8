// Package settle converts the ephemeral ledger into durable records
// when a match concludes: it drains the ledger, debits balances, writes
// stake rows, and distributes winnings pari-mutuel.
//
// All monetary values use shopspring/decimal — never float64 for money.
package settle

import (
	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/model"
	"github.com/calebgmahala/SaltyBets/internal/store"
)

// Distribute computes the pari-mutuel payout for a settled match. It is
// a pure function: stakes in, awards out, no I/O.
//
// Winners split the losing pool proportionally to their own stake and
// get their principal back:
//
//	share = (stake / Σ winning) * Σ losing
//	credit = stake + share
//
// The principal is not counted as revenue; only the share increments
// TotalRevenueGained. Losers get no credit (the principal was already
// debited at settlement) and their full stake counts as revenue lost.
//
// When no stake sits on the winning side, every stake is refunded in
// full and no win/loss counters move — nobody won, nobody lost.
//
// Residual fractions from the division are kept on the individual
// awards as-is, not redistributed.
func Distribute(stakes []model.Stake, winningSide model.Side) []store.Award {
	var winning, losing []model.Stake
	for _, st := range stakes {
		if st.Side == winningSide {
			winning = append(winning, st)
		} else {
			losing = append(losing, st)
		}
	}

	if len(winning) == 0 {
		awards := make([]store.Award, 0, len(stakes))
		for _, st := range stakes {
			awards = append(awards, store.Award{
				UserID: st.UserID,
				Credit: st.Amount,
			})
		}
		return awards
	}

	pWin := decimal.Zero
	for _, st := range winning {
		pWin = pWin.Add(st.Amount)
	}
	pLose := decimal.Zero
	for _, st := range losing {
		pLose = pLose.Add(st.Amount)
	}

	awards := make([]store.Award, 0, len(stakes))
	for _, st := range winning {
		share := st.Amount.Div(pWin).Mul(pLose)
		awards = append(awards, store.Award{
			UserID:        st.UserID,
			Credit:        st.Amount.Add(share),
			Wins:          1,
			RevenueGained: share,
		})
	}
	for _, st := range losing {
		awards = append(awards, store.Award{
			UserID:      st.UserID,
			Credit:      decimal.Zero,
			Losses:      1,
			RevenueLost: st.Amount,
		})
	}
	return awards
}
