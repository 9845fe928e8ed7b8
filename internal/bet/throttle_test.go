package bet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

// throttleRecorder counts publishes and remembers the last snapshot.
type throttleRecorder struct {
	mu    sync.Mutex
	count int
	last  model.TotalsSnapshot
}

func (r *throttleRecorder) publish(s model.TotalsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	r.last = s
}

func (r *throttleRecorder) snapshot() (int, model.TotalsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count, r.last
}

func TestThrottleCollapsesBurst(t *testing.T) {
	var (
		mu     sync.Mutex
		totals model.TotalsSnapshot
	)
	read := func(context.Context) (model.TotalsSnapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		return totals, nil
	}

	rec := &throttleRecorder{}
	th := NewThrottle(50*time.Millisecond, read, rec.publish)
	defer th.Stop()

	// Ten rapid mutations inside one window: the first fires
	// immediately, the rest collapse into a single trailing firing.
	for i := 1; i <= 10; i++ {
		mu.Lock()
		totals.Red = d(float64(i) * 0.05)
		mu.Unlock()
		th.Request()
	}

	time.Sleep(120 * time.Millisecond)

	count, last := rec.snapshot()
	if count != 2 {
		t.Fatalf("publish count = %d, want 2 (leading + trailing)", count)
	}
	if !last.Red.Equal(d(0.50)) {
		t.Fatalf("last broadcast red = %s, want 0.50", last.Red)
	}
}

func TestThrottleFiresImmediatelyWhenIdle(t *testing.T) {
	read := func(context.Context) (model.TotalsSnapshot, error) {
		return model.TotalsSnapshot{Red: d(1), Blue: d(2)}, nil
	}

	rec := &throttleRecorder{}
	th := NewThrottle(time.Hour, read, rec.publish)
	defer th.Stop()

	th.Request()

	count, last := rec.snapshot()
	if count != 1 {
		t.Fatalf("publish count = %d, want immediate firing", count)
	}
	if !last.Red.Equal(d(1)) || !last.Blue.Equal(d(2)) {
		t.Fatalf("broadcast totals = %s/%s, want 1/2", last.Red, last.Blue)
	}
}

func TestThrottleSuppressesIdenticalSnapshot(t *testing.T) {
	read := func(context.Context) (model.TotalsSnapshot, error) {
		return model.TotalsSnapshot{Red: d(5), Blue: d(5)}, nil
	}

	rec := &throttleRecorder{}
	th := NewThrottle(10*time.Millisecond, read, rec.publish)
	defer th.Stop()

	th.Request()
	time.Sleep(30 * time.Millisecond)
	th.Request() // same totals again
	time.Sleep(30 * time.Millisecond)

	count, _ := rec.snapshot()
	if count != 1 {
		t.Fatalf("publish count = %d, want identical snapshot suppressed", count)
	}
}
