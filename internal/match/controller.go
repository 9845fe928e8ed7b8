package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calebgmahala/SaltyBets/internal/metrics"
	"github.com/calebgmahala/SaltyBets/internal/model"
	"github.com/calebgmahala/SaltyBets/internal/settle"
	"github.com/calebgmahala/SaltyBets/internal/store"
)

var (
	// ErrDuplicateMatch means the bout feed still reports the bout the
	// current match was created from, so there is nothing new to open.
	ErrDuplicateMatch = errors.New("match already exists for the current bout")

	// ErrMatchNotFound means no match with the given id exists.
	ErrMatchNotFound = errors.New("match not found")

	// ErrAlreadyConcluded means the match has already been settled and
	// cannot be ended again. A locked match is not concluded: ending it
	// resumes the pending settlement.
	ErrAlreadyConcluded = errors.New("match already concluded")

	// ErrUnresolvedWinner means the bout feed has no result for this
	// match yet and no manual winner was supplied.
	ErrUnresolvedWinner = errors.New("winner could not be resolved")

	// ErrCorruptWinnerMapping means the feed reported a winner name
	// that matches neither fighter of the match being ended.
	ErrCorruptWinnerMapping = errors.New("winner does not match either fighter")
)

// Controller drives the match lifecycle: open a match against the live
// bout, end it with a resolved winner, and hand the concluded match to
// the settlement service. A single mutex serializes lifecycle
// transitions so there is never more than one open match.
type Controller struct {
	store   store.Store
	source  Source
	settler *settle.Service
	fin     *finalizer

	mu sync.Mutex
	// lastKnownBoutID marks how far into the feed's result history we
	// have consumed. Advanced only when a result is accepted.
	lastKnownBoutID int64
}

// NewController wires the lifecycle controller. finalizeAfter is how
// long an open match may sit before it is ended automatically.
func NewController(st store.Store, src Source, settler *settle.Service, finalizeAfter time.Duration) *Controller {
	c := &Controller{
		store:   st,
		source:  src,
		settler: settler,
	}
	c.fin = newFinalizer(finalizeAfter, c.autoEnd)
	return c
}

// Bootstrap restores controller state after a restart: the history
// marker picks up from the most recent match with a feed id, and a
// still-open current match gets its auto-end timer re-armed.
func (c *Controller) Bootstrap(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.store.CurrentMatch(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("match: bootstrap: %w", err)
	}

	if cur.ExternalID > c.lastKnownBoutID {
		c.lastKnownBoutID = cur.ExternalID
	}
	switch cur.Status {
	case model.MatchOpen:
		c.fin.Arm(cur.ID)
		slog.Info("re-armed finalizer for open match", "match_id", cur.ID)
	case model.MatchLocked:
		// Crashed mid-settlement: the winner is recorded and the
		// ledger still holds the open bets. Resume the settlement now;
		// if it fails again the finalizer retries.
		if _, err := c.endLocked(ctx, cur, nil); err != nil {
			slog.Warn("settlement resume failed at startup", "match_id", cur.ID, "error", err)
			c.fin.Arm(cur.ID)
		}
	}
	return nil
}

// Stop cancels all pending auto-end timers.
func (c *Controller) Stop() {
	c.fin.StopAll()
}

// CreateNextMatch opens a match for the bout the feed currently
// reports. If the previous match is still open it is ended first, with
// manualWinner as the fallback should the feed have no result for it.
func (c *Controller) CreateNextMatch(ctx context.Context, manualWinner *model.Side) (*model.Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bout, err := c.source.CurrentBout(ctx)
	if err != nil {
		return nil, err
	}
	id := model.BoutToken(bout.Fighter1, bout.Fighter2, bout.Freshness)

	if _, err := c.store.GetMatch(ctx, id); err == nil {
		return nil, ErrDuplicateMatch
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("match: lookup %s: %w", id, err)
	}

	cur, err := c.store.CurrentMatch(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("match: load current: %w", err)
	}
	if err == nil && cur.Status != model.MatchSettled {
		// The predecessor is still open, or locked with a failed
		// settlement behind it. Either way its ledger entries must be
		// drained before a new betting window opens over them.
		if _, err := c.endLocked(ctx, cur, manualWinner); err != nil {
			return nil, err
		}
	}

	m := &model.Match{
		ID:        id,
		Fighter1:  bout.Fighter1,
		Fighter2:  bout.Fighter2,
		Status:    model.MatchOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.store.CreateMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("match: create %s: %w", id, err)
	}

	c.fin.Arm(m.ID)
	metrics.MatchesCreated.Inc()
	slog.Info("match opened",
		"match_id", m.ID,
		"fighter1", m.Fighter1,
		"fighter2", m.Fighter2,
	)
	return m, nil
}

// EndMatch concludes the match with the given id, resolving the winner
// from the bout feed when possible and falling back to manualWinner.
func (c *Controller) EndMatch(ctx context.Context, id string, manualWinner *model.Side) (*model.Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.store.GetMatch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("match: lookup %s: %w", id, err)
	}
	return c.endLocked(ctx, m, manualWinner)
}

// endLocked resolves a winner and settles. Caller holds c.mu.
//
// Resolution order: the feed's next unconsumed result, then the feed's
// latest result, then manualWinner. If all three fail the history
// marker is rolled back so a later retry re-reads the same results.
func (c *Controller) endLocked(ctx context.Context, m *model.Match, manualWinner *model.Side) (*model.Match, error) {
	if m.Status == model.MatchSettled {
		return nil, ErrAlreadyConcluded
	}
	if m.Status == model.MatchLocked && m.WinningSide != nil {
		// The winner was already recorded but a previous settlement
		// attempt failed. The ledger is intact, so resume it rather
		// than resolve a winner twice.
		return c.settleLocked(ctx, m)
	}
	if m.WinningSide != nil {
		return nil, ErrAlreadyConcluded
	}

	prevKnown := c.lastKnownBoutID

	var (
		winnerName string
		externalID int64
		resolved   bool
	)

	next, err := c.source.BoutAfter(ctx, c.lastKnownBoutID)
	if err != nil {
		return nil, err
	}
	if next != nil {
		c.lastKnownBoutID = next.ID
		if model.SameBout(model.BoutToken(next.Fighter1, next.Fighter2, ""), m.ID) {
			winnerName = next.Winner
			externalID = next.ID
			resolved = true
		}
	}

	if !resolved {
		latest, err := c.source.LatestBout(ctx)
		if err != nil {
			c.lastKnownBoutID = prevKnown
			return nil, err
		}
		if latest != nil && model.SameBout(model.BoutToken(latest.Fighter1, latest.Fighter2, ""), m.ID) {
			winnerName = latest.Winner
			externalID = latest.ID
			resolved = true
			if latest.ID > c.lastKnownBoutID {
				c.lastKnownBoutID = latest.ID
			}
		}
	}

	var side model.Side
	switch {
	case resolved:
		switch winnerName {
		case m.Fighter1:
			side = model.SideRed
		case m.Fighter2:
			side = model.SideBlue
		default:
			c.lastKnownBoutID = prevKnown
			return nil, fmt.Errorf("%w: %q is neither %q nor %q",
				ErrCorruptWinnerMapping, winnerName, m.Fighter1, m.Fighter2)
		}
	case manualWinner != nil:
		side = *manualWinner
	default:
		c.lastKnownBoutID = prevKnown
		return nil, ErrUnresolvedWinner
	}

	m.WinningSide = &side
	m.ExternalID = externalID
	m.Status = model.MatchLocked
	if err := c.store.UpdateMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("match: lock %s: %w", m.ID, err)
	}

	return c.settleLocked(ctx, m)
}

// settleLocked settles a locked match and marks it settled. Caller
// holds c.mu. On failure the match stays locked and the ledger keeps
// its entries, so EndMatch (or the next CreateNextMatch) retries the
// settlement instead of opening a new window over stale bets.
func (c *Controller) settleLocked(ctx context.Context, m *model.Match) (*model.Match, error) {
	c.fin.Cancel(m.ID)

	if err := c.settler.Settle(ctx, m); err != nil {
		return nil, fmt.Errorf("match: settle %s: %w", m.ID, err)
	}

	m.Status = model.MatchSettled
	if err := c.store.UpdateMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("match: mark settled %s: %w", m.ID, err)
	}

	slog.Info("match concluded",
		"match_id", m.ID,
		"winning_side", *m.WinningSide,
		"bout_id", m.ExternalID,
	)
	return m, nil
}

// autoEnd runs when a finalizer timer fires. Failures are logged and
// left for a manual EndMatch or the next CreateNextMatch to retry.
func (c *Controller) autoEnd(matchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := c.EndMatch(ctx, matchID, nil); err != nil {
		if errors.Is(err, ErrAlreadyConcluded) || errors.Is(err, ErrMatchNotFound) {
			return
		}
		slog.Warn("automatic match end failed", "match_id", matchID, "error", err)
	}
}
