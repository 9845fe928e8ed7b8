package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of
// truth. All monetary values are stored as NUMERIC for exact decimal
// precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var balance, gained, lost string

	err := s.pool.QueryRow(ctx,
		`SELECT id, balance::TEXT, total_wins, total_losses,
		        total_revenue_gained::TEXT, total_revenue_lost::TEXT
		 FROM users WHERE id = $1`, id).
		Scan(&u.ID, &balance, &u.TotalWins, &u.TotalLosses, &gained, &lost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Balance, _ = decimal.NewFromString(balance)
	u.TotalRevenueGained, _ = decimal.NewFromString(gained)
	u.TotalRevenueLost, _ = decimal.NewFromString(lost)
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, balance, total_wins, total_losses, total_revenue_gained, total_revenue_lost)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5::NUMERIC, $6::NUMERIC)`,
		u.ID, u.Balance.String(), u.TotalWins, u.TotalLosses,
		u.TotalRevenueGained.String(), u.TotalRevenueLost.String(),
	)
	return err
}

func (s *PostgresStore) CreateMatch(ctx context.Context, m *model.Match) error {
	var winning *string
	if m.WinningSide != nil {
		w := string(*m.WinningSide)
		winning = &w
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO matches (id, external_id, winning_side, fighter1, fighter2, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ExternalID, winning, m.Fighter1, m.Fighter2, string(m.Status), m.CreatedAt,
	)
	return err
}

const matchColumns = `id, external_id, winning_side, fighter1, fighter2, status, created_at`

func scanMatch(row pgx.Row) (*model.Match, error) {
	var m model.Match
	var winning *string
	var status string

	err := row.Scan(&m.ID, &m.ExternalID, &winning, &m.Fighter1, &m.Fighter2, &status, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if winning != nil {
		side := model.Side(*winning)
		m.WinningSide = &side
	}
	m.Status = model.MatchStatus(status)
	return &m, nil
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) CurrentMatch(ctx context.Context) (*model.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY created_at DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("current match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) UpdateMatch(ctx context.Context, m *model.Match) error {
	var winning *string
	if m.WinningSide != nil {
		w := string(*m.WinningSide)
		winning = &w
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE matches SET external_id = $2, winning_side = $3, status = $4 WHERE id = $1`,
		m.ID, m.ExternalID, winning, string(m.Status),
	)
	if err != nil {
		return fmt.Errorf("update match %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) StakeFor(ctx context.Context, userID, matchID string) (*model.Stake, error) {
	var st model.Stake
	var amount, side string

	err := s.pool.QueryRow(ctx,
		`SELECT id, amount::TEXT, side, user_id, match_id, created_at
		 FROM stakes WHERE user_id = $1 AND match_id = $2`, userID, matchID).
		Scan(&st.ID, &amount, &side, &st.UserID, &st.MatchID, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("stake for %s on %s: %w", userID, matchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stake for %s: %w", userID, err)
	}

	st.Amount, _ = decimal.NewFromString(amount)
	st.Side = model.Side(side)
	return &st, nil
}

func (s *PostgresStore) StakesByMatch(ctx context.Context, matchID string) ([]model.Stake, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, amount::TEXT, side, user_id, match_id, created_at
		 FROM stakes WHERE match_id = $1 ORDER BY created_at`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stakes []model.Stake
	for rows.Next() {
		var st model.Stake
		var amount, side string
		if err := rows.Scan(&st.ID, &amount, &side, &st.UserID, &st.MatchID, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.Amount, _ = decimal.NewFromString(amount)
		st.Side = model.Side(side)
		stakes = append(stakes, st)
	}
	return stakes, rows.Err()
}

// ApplySettlement runs the entire batch inside one transaction: debit
// every staked amount, insert every stake row, then apply every award.
// Any failure rolls the whole batch back.
func (s *PostgresStore) ApplySettlement(ctx context.Context, batch *SettlementBatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("settlement %s: begin: %w", batch.MatchID, err)
	}
	defer tx.Rollback(ctx)

	for _, st := range batch.Stakes {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET balance = balance - $2::NUMERIC WHERE id = $1`,
			st.UserID, st.Amount.String())
		if err != nil {
			return fmt.Errorf("settlement %s: debit %s: %w", batch.MatchID, st.UserID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("settlement %s: debit %s: %w", batch.MatchID, st.UserID, ErrNotFound)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO stakes (id, amount, side, user_id, match_id, created_at)
			 VALUES ($1, $2::NUMERIC, $3, $4, $5, $6)`,
			st.ID, st.Amount.String(), string(st.Side), st.UserID, st.MatchID, st.CreatedAt)
		if err != nil {
			return fmt.Errorf("settlement %s: insert stake for %s: %w", batch.MatchID, st.UserID, err)
		}
	}

	for _, a := range batch.Awards {
		_, err := tx.Exec(ctx,
			`UPDATE users SET
			     balance = balance + $2::NUMERIC,
			     total_wins = total_wins + $3,
			     total_losses = total_losses + $4,
			     total_revenue_gained = total_revenue_gained + $5::NUMERIC,
			     total_revenue_lost = total_revenue_lost + $6::NUMERIC
			 WHERE id = $1`,
			a.UserID, a.Credit.String(), a.Wins, a.Losses,
			a.RevenueGained.String(), a.RevenueLost.String())
		if err != nil {
			return fmt.Errorf("settlement %s: award %s: %w", batch.MatchID, a.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("settlement %s: commit: %w", batch.MatchID, err)
	}
	return nil
}
