package bet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/calebgmahala/SaltyBets/internal/metrics"
	"github.com/calebgmahala/SaltyBets/internal/model"
)

// DefaultBroadcastWindow bounds the totals broadcast rate.
const DefaultBroadcastWindow = 100 * time.Millisecond

// Throttle coalesces high-frequency ledger mutations into a bounded-
// rate stream of totals snapshots. A request broadcasts immediately
// when the window has elapsed since the last firing; otherwise a single
// deferred firing is scheduled at the window boundary and any number of
// intervening requests collapse into it. A firing whose totals are
// identical to the previously broadcast ones is skipped.
//
// Delivery is best-effort: no queueing, no retry, latest-totals-wins.
type Throttle struct {
	window  time.Duration
	read    func(context.Context) (model.TotalsSnapshot, error)
	publish func(model.TotalsSnapshot)

	mu      sync.Mutex
	lastAt  time.Time
	last    model.TotalsSnapshot
	hasLast bool
	pending *time.Timer
}

// NewThrottle creates a throttle reading current totals with read and
// delivering them with publish.
func NewThrottle(window time.Duration, read func(context.Context) (model.TotalsSnapshot, error), publish func(model.TotalsSnapshot)) *Throttle {
	if window <= 0 {
		window = DefaultBroadcastWindow
	}
	return &Throttle{window: window, read: read, publish: publish}
}

// Request asks for a broadcast. Never blocks on delivery.
func (t *Throttle) Request() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		// A deferred firing is already scheduled; this request
		// collapses into it.
		return
	}

	elapsed := time.Since(t.lastAt)
	if elapsed >= t.window {
		t.fireLocked()
		return
	}

	t.pending = time.AfterFunc(t.window-elapsed, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.pending = nil
		t.fireLocked()
	})
}

// Stop cancels any pending deferred firing.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// fireLocked reads and publishes the current totals. Caller holds mu.
func (t *Throttle) fireLocked() {
	totals, err := t.read(context.Background())
	if err != nil {
		slog.Warn("totals broadcast skipped", "err", err)
		return
	}

	t.lastAt = time.Now()
	if t.hasLast && totals.Equal(t.last) {
		metrics.BroadcastsSuppressed.Inc()
		return
	}
	t.last = totals
	t.hasLast = true

	t.publish(totals)
	metrics.BroadcastsTotal.Inc()
}
