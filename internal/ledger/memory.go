package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

// MemoryLedger implements Ledger with in-memory maps under a single
// mutex. Used for testing and development; semantics mirror RedisLedger
// exactly, including the side-flip carry-over.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]*Entry
	red     decimal.Decimal
	blue    decimal.Decimal
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]*Entry),
	}
}

func (l *MemoryLedger) addTotal(side model.Side, amount decimal.Decimal) {
	if side == model.SideRed {
		l.red = l.red.Add(amount)
	} else {
		l.blue = l.blue.Add(amount)
	}
}

func (l *MemoryLedger) Place(_ context.Context, userID string, amount decimal.Decimal, side model.Side) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		l.entries[userID] = &Entry{UserID: userID, Amount: amount, Side: side}
		l.addTotal(side, amount)
		return nil
	}

	if e.Side != side {
		// Carry the accumulated amount over to the new side.
		l.addTotal(e.Side, e.Amount.Neg())
		l.addTotal(side, e.Amount)
		e.Side = side
	}
	e.Amount = e.Amount.Add(amount)
	l.addTotal(side, amount)
	return nil
}

func (l *MemoryLedger) Cancel(_ context.Context, userID string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		return ErrNoBet
	}
	if amount.GreaterThan(e.Amount) {
		return ErrInsufficientBet
	}

	e.Amount = e.Amount.Sub(amount)
	l.addTotal(e.Side, amount.Neg())
	if e.Amount.IsZero() {
		delete(l.entries, userID)
	}
	return nil
}

func (l *MemoryLedger) SideTotals(_ context.Context) (model.TotalsSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return model.TotalsSnapshot{Red: l.red, Blue: l.blue}, nil
}

func (l *MemoryLedger) EntryOf(_ context.Context, userID string) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		return nil, nil
	}
	copy := *e
	return &copy, nil
}

func (l *MemoryLedger) Snapshot(_ context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, *e)
	}
	return entries, nil
}

func (l *MemoryLedger) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]*Entry)
	l.red = decimal.Zero
	l.blue = decimal.Zero
	return nil
}
