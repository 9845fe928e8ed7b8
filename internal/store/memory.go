package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*model.User
	matches []*model.Match // creation order; last is current
	stakes  []model.Stake
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*model.User),
	}
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	copy := *u
	s.users[u.ID] = &copy
	return nil
}

func (s *MemoryStore) CreateMatch(_ context.Context, m *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.matches {
		if existing.ID == m.ID {
			return fmt.Errorf("match %s already exists", m.ID)
		}
	}
	copy := *m
	s.matches = append(s.matches, &copy)
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.matches {
		if m.ID == id {
			copy := *m
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) CurrentMatch(_ context.Context) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.matches) == 0 {
		return nil, ErrNotFound
	}
	copy := *s.matches[len(s.matches)-1]
	return &copy, nil
}

func (s *MemoryStore) UpdateMatch(_ context.Context, m *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.matches {
		if existing.ID == m.ID {
			copy := *m
			s.matches[i] = &copy
			return nil
		}
	}
	return fmt.Errorf("match %s: %w", m.ID, ErrNotFound)
}

func (s *MemoryStore) StakeFor(_ context.Context, userID, matchID string) (*model.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.stakes {
		if st.UserID == userID && st.MatchID == matchID {
			copy := st
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("stake for %s on %s: %w", userID, matchID, ErrNotFound)
}

func (s *MemoryStore) StakesByMatch(_ context.Context, matchID string) ([]model.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Stake
	for _, st := range s.stakes {
		if st.MatchID == matchID {
			result = append(result, st)
		}
	}
	return result, nil
}

// ApplySettlement applies the batch under one lock. Every referenced
// user is validated before any mutation so the batch stays
// all-or-nothing, matching the transactional PostgreSQL behavior.
func (s *MemoryStore) ApplySettlement(_ context.Context, batch *SettlementBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range batch.Stakes {
		if _, ok := s.users[st.UserID]; !ok {
			return fmt.Errorf("settlement %s: debit %s: %w", batch.MatchID, st.UserID, ErrNotFound)
		}
	}
	for _, a := range batch.Awards {
		if _, ok := s.users[a.UserID]; !ok {
			return fmt.Errorf("settlement %s: award %s: %w", batch.MatchID, a.UserID, ErrNotFound)
		}
	}

	for _, st := range batch.Stakes {
		u := s.users[st.UserID]
		u.Balance = u.Balance.Sub(st.Amount)
		s.stakes = append(s.stakes, st)
	}
	for _, a := range batch.Awards {
		u := s.users[a.UserID]
		u.Balance = u.Balance.Add(a.Credit)
		u.TotalWins += a.Wins
		u.TotalLosses += a.Losses
		u.TotalRevenueGained = u.TotalRevenueGained.Add(a.RevenueGained)
		u.TotalRevenueLost = u.TotalRevenueLost.Add(a.RevenueLost)
	}
	return nil
}
