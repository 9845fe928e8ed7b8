package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/calebgmahala/SaltyBets/internal/ledger"
	"github.com/calebgmahala/SaltyBets/internal/model"
)

// setupTestRedis connects to a local Redis and skips the test when none
// is reachable. Uses DB 9 to stay clear of development data.
func setupTestRedis(t *testing.T) *ledger.RedisLedger {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 9})
	ctx := context.Background()

	l, err := ledger.NewRedisLedger(ctx, rdb)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}

	if err := l.Reset(ctx); err != nil {
		t.Fatalf("failed to reset test ledger: %v", err)
	}
	t.Cleanup(func() {
		l.Reset(ctx)
		rdb.Close()
	})
	return l
}

func TestRedisLedger_PlaceCancel(t *testing.T) {
	l := setupTestRedis(t)
	ctx := context.Background()

	if err := l.Place(ctx, "u1", d(10), model.SideRed); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := l.Place(ctx, "u1", d(2.50), model.SideRed); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := l.Place(ctx, "u2", d(5), model.SideBlue); err != nil {
		t.Fatalf("place: %v", err)
	}

	e, err := l.EntryOf(ctx, "u1")
	if err != nil {
		t.Fatalf("entry of: %v", err)
	}
	if e == nil || !e.Amount.Equal(d(12.50)) || e.Side != model.SideRed {
		t.Fatalf("unexpected entry: %+v", e)
	}

	totals, err := l.SideTotals(ctx)
	if err != nil {
		t.Fatalf("side totals: %v", err)
	}
	if !totals.Red.Equal(d(12.50)) || !totals.Blue.Equal(d(5)) {
		t.Errorf("expected red=12.50 blue=5, got red=%s blue=%s", totals.Red, totals.Blue)
	}

	if err := l.Cancel(ctx, "u1", d(12.50)); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := l.Cancel(ctx, "u1", d(1)); !errors.Is(err, ledger.ErrNoBet) {
		t.Errorf("expected ErrNoBet after full cancel, got %v", err)
	}
	if err := l.Cancel(ctx, "u2", d(10)); !errors.Is(err, ledger.ErrInsufficientBet) {
		t.Errorf("expected ErrInsufficientBet, got %v", err)
	}
}

func TestRedisLedger_SnapshotReset(t *testing.T) {
	l := setupTestRedis(t)
	ctx := context.Background()

	l.Place(ctx, "u1", d(10), model.SideRed)
	l.Place(ctx, "u2", d(5), model.SideBlue)

	entries, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if err := l.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	entries, _ = l.Snapshot(ctx)
	if len(entries) != 0 {
		t.Errorf("expected empty snapshot after reset, got %d", len(entries))
	}
	totals, _ := l.SideTotals(ctx)
	if !totals.Red.IsZero() || !totals.Blue.IsZero() {
		t.Errorf("expected zero totals after reset, got red=%s blue=%s", totals.Red, totals.Blue)
	}
}

func TestRedisLedger_SideFlip(t *testing.T) {
	l := setupTestRedis(t)
	ctx := context.Background()

	l.Place(ctx, "u1", d(10), model.SideRed)
	l.Place(ctx, "u1", d(5), model.SideBlue)

	totals, _ := l.SideTotals(ctx)
	if !totals.Red.IsZero() || !totals.Blue.Equal(d(15)) {
		t.Errorf("expected red=0 blue=15 after flip, got red=%s blue=%s", totals.Red, totals.Blue)
	}
}
