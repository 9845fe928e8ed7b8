package settle_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/ledger"
	"github.com/calebgmahala/SaltyBets/internal/model"
	"github.com/calebgmahala/SaltyBets/internal/settle"
	"github.com/calebgmahala/SaltyBets/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func stake(user string, amount float64, side model.Side) model.Stake {
	return model.Stake{
		ID:     "stake-" + user,
		Amount: d(amount),
		Side:   side,
		UserID: user,
	}
}

// --- Distribute (pure payout) ---

func TestDistribute_PariMutuelSplit(t *testing.T) {
	stakes := []model.Stake{
		stake("userA", 10, model.SideRed),
		stake("userB", 30, model.SideRed),
		stake("userC", 20, model.SideBlue),
	}

	awards := settle.Distribute(stakes, model.SideRed)

	byUser := make(map[string]store.Award)
	for _, a := range awards {
		byUser[a.UserID] = a
	}

	// P_win = 40, P_lose = 20.
	// userA: 10 + (10/40)*20 = 15, revenue gained 5.
	a := byUser["userA"]
	if !a.Credit.Equal(d(15)) {
		t.Errorf("userA credit = %s, want 15", a.Credit)
	}
	if a.Wins != 1 || !a.RevenueGained.Equal(d(5)) {
		t.Errorf("userA stats: wins=%d gained=%s, want 1/5", a.Wins, a.RevenueGained)
	}

	// userB: 30 + (30/40)*20 = 45.
	b := byUser["userB"]
	if !b.Credit.Equal(d(45)) {
		t.Errorf("userB credit = %s, want 45", b.Credit)
	}

	// userC: nothing back, loss of 20.
	c := byUser["userC"]
	if !c.Credit.IsZero() {
		t.Errorf("userC credit = %s, want 0", c.Credit)
	}
	if c.Losses != 1 || !c.RevenueLost.Equal(d(20)) {
		t.Errorf("userC stats: losses=%d lost=%s, want 1/20", c.Losses, c.RevenueLost)
	}
}

func TestDistribute_RefundWhenNoWinningStakes(t *testing.T) {
	// Winner is blue but nobody staked blue: both users get exactly
	// their principal back and no counters move.
	stakes := []model.Stake{
		stake("userA", 10, model.SideRed),
		stake("userB", 5, model.SideRed),
	}

	awards := settle.Distribute(stakes, model.SideBlue)

	if len(awards) != 2 {
		t.Fatalf("expected 2 awards, got %d", len(awards))
	}
	for _, a := range awards {
		want := d(10)
		if a.UserID == "userB" {
			want = d(5)
		}
		if !a.Credit.Equal(want) {
			t.Errorf("%s credit = %s, want %s", a.UserID, a.Credit, want)
		}
		if a.Wins != 0 || a.Losses != 0 {
			t.Errorf("%s counters moved on refund: wins=%d losses=%d", a.UserID, a.Wins, a.Losses)
		}
		if !a.RevenueGained.IsZero() || !a.RevenueLost.IsZero() {
			t.Errorf("%s revenue moved on refund", a.UserID)
		}
	}
}

func TestDistribute_WinnersOnly(t *testing.T) {
	// Everyone on the winning side: principal back, zero share.
	stakes := []model.Stake{
		stake("userA", 10, model.SideRed),
		stake("userB", 20, model.SideRed),
	}

	awards := settle.Distribute(stakes, model.SideRed)
	for _, a := range awards {
		if !a.RevenueGained.IsZero() {
			t.Errorf("%s gained %s from an empty losing pool", a.UserID, a.RevenueGained)
		}
		if a.Wins != 1 {
			t.Errorf("%s wins = %d, want 1", a.UserID, a.Wins)
		}
	}
}

func TestDistribute_Empty(t *testing.T) {
	if awards := settle.Distribute(nil, model.SideRed); len(awards) != 0 {
		t.Errorf("expected no awards for no stakes, got %d", len(awards))
	}
}

// --- Service.Settle (drain → durable) ---

type settleEnv struct {
	store  *store.MemoryStore
	ledger *ledger.MemoryLedger
	svc    *settle.Service
	match  *model.Match
}

func newSettleEnv(t *testing.T, winner model.Side) *settleEnv {
	t.Helper()

	ms := store.NewMemoryStore()
	ml := ledger.NewMemoryLedger()
	ctx := context.Background()

	for _, id := range []string{"userA", "userB", "userC"} {
		if err := ms.CreateUser(ctx, &model.User{ID: id, Balance: d(100)}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	match := &model.Match{
		ID:          "Kirby-Ryu-1",
		Fighter1:    "Kirby",
		Fighter2:    "Ryu",
		WinningSide: &winner,
		Status:      model.MatchLocked,
		CreatedAt:   time.Now().UTC(),
	}
	if err := ms.CreateMatch(ctx, match); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	return &settleEnv{
		store:  ms,
		ledger: ml,
		svc:    settle.NewService(ms, ml),
		match:  match,
	}
}

func TestSettle_DebitsAndPaysOut(t *testing.T) {
	env := newSettleEnv(t, model.SideRed)
	ctx := context.Background()

	env.ledger.Place(ctx, "userA", d(10), model.SideRed)
	env.ledger.Place(ctx, "userB", d(30), model.SideRed)
	env.ledger.Place(ctx, "userC", d(20), model.SideBlue)

	if err := env.svc.Settle(ctx, env.match); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// userA: 100 - 10 + 15 = 105; userB: 100 - 30 + 45 = 115;
	// userC: 100 - 20 = 80.
	for _, c := range []struct {
		user string
		want decimal.Decimal
	}{
		{"userA", d(105)},
		{"userB", d(115)},
		{"userC", d(80)},
	} {
		u, err := env.store.GetUser(ctx, c.user)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if !u.Balance.Equal(c.want) {
			t.Errorf("%s balance = %s, want %s", c.user, u.Balance, c.want)
		}
	}

	uC, _ := env.store.GetUser(ctx, "userC")
	if uC.TotalLosses != 1 || !uC.TotalRevenueLost.Equal(d(20)) {
		t.Errorf("userC stats: losses=%d lost=%s", uC.TotalLosses, uC.TotalRevenueLost)
	}
}

func TestSettle_ConservationAcrossBoundary(t *testing.T) {
	// The durable stake rows carry exactly what was drained.
	env := newSettleEnv(t, model.SideRed)
	ctx := context.Background()

	env.ledger.Place(ctx, "userA", d(12.35), model.SideRed)
	env.ledger.Place(ctx, "userB", d(7.65), model.SideBlue)

	if err := env.svc.Settle(ctx, env.match); err != nil {
		t.Fatalf("settle: %v", err)
	}

	stakes, _ := env.store.StakesByMatch(ctx, env.match.ID)
	sum := decimal.Zero
	for _, st := range stakes {
		sum = sum.Add(st.Amount)
	}
	if !sum.Equal(d(20)) {
		t.Errorf("durable stakes sum = %s, want 20", sum)
	}
}

func TestSettle_ResetsLedger(t *testing.T) {
	env := newSettleEnv(t, model.SideRed)
	ctx := context.Background()

	env.ledger.Place(ctx, "userA", d(10), model.SideRed)

	if err := env.svc.Settle(ctx, env.match); err != nil {
		t.Fatalf("settle: %v", err)
	}

	entries, _ := env.ledger.Snapshot(ctx)
	if len(entries) != 0 {
		t.Errorf("ledger should be empty after settlement, got %d entries", len(entries))
	}
	totals, _ := env.ledger.SideTotals(ctx)
	if !totals.Red.IsZero() || !totals.Blue.IsZero() {
		t.Errorf("totals should be zero after settlement")
	}
}

func TestSettle_RequiresWinner(t *testing.T) {
	env := newSettleEnv(t, model.SideRed)
	env.match.WinningSide = nil

	if err := env.svc.Settle(context.Background(), env.match); err != settle.ErrNoWinner {
		t.Errorf("expected ErrNoWinner, got %v", err)
	}
}

func TestSettle_AbortLeavesLedgerIntact(t *testing.T) {
	// An unknown user makes the durable batch fail; the ledger must not
	// be reset, so settlement can be retried.
	env := newSettleEnv(t, model.SideRed)
	ctx := context.Background()

	env.ledger.Place(ctx, "userA", d(10), model.SideRed)
	env.ledger.Place(ctx, "ghost", d(5), model.SideBlue)

	if err := env.svc.Settle(ctx, env.match); err == nil {
		t.Fatal("expected settlement to fail for unknown user")
	}

	entries, _ := env.ledger.Snapshot(ctx)
	if len(entries) != 2 {
		t.Errorf("ledger must be intact after aborted settlement, got %d entries", len(entries))
	}

	// No partial debits either.
	uA, _ := env.store.GetUser(ctx, "userA")
	if !uA.Balance.Equal(d(100)) {
		t.Errorf("userA balance mutated by aborted settlement: %s", uA.Balance)
	}
}
