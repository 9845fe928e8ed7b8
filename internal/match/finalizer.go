package match

import (
	"sync"
	"time"
)

// finalizer arms one pending auto-end timer per match. Arming a match
// that already has a pending timer replaces it, so only the most recent
// deadline ever fires.
type finalizer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
	end    func(matchID string)
}

func newFinalizer(delay time.Duration, end func(matchID string)) *finalizer {
	return &finalizer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
		end:    end,
	}
}

func (f *finalizer) Arm(matchID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[matchID]; ok {
		t.Stop()
	}
	f.timers[matchID] = time.AfterFunc(f.delay, func() {
		f.mu.Lock()
		delete(f.timers, matchID)
		f.mu.Unlock()
		f.end(matchID)
	})
}

func (f *finalizer) Cancel(matchID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[matchID]; ok {
		t.Stop()
		delete(f.timers, matchID)
	}
}

func (f *finalizer) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.timers {
		t.Stop()
		delete(f.timers, id)
	}
}
