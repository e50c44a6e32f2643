package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// ─── User Repository ────────────────────────────────────────────────────────

const userColumns = `seq, id, name, email, reputation, balance_cents, active, created_at, last_active_at`

// InsertUser creates a user and fills in its sequential id.
func (s *Store) InsertUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO users (id, name, email, reputation, balance_cents, active, created_at, last_active_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Reputation, toCents(u.Balance), u.Active,
		u.CreatedAt.Unix(), nullableUnix(u.LastActiveAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.Seq, err = result.LastInsertId()
	return err
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return u, nil
}

// AddReputation atomically increments reputation by delta (may be negative)
// and returns the new value.
func (s *Store) AddReputation(ctx context.Context, userID string, delta int) (int, error) {
	var rep int
	err := s.q.QueryRowContext(ctx,
		`UPDATE users SET reputation = reputation + ? WHERE id = ? RETURNING reputation`,
		delta, userID,
	).Scan(&rep)
	if err != nil {
		return 0, notFound(err, domain.ErrUserNotFound)
	}
	return rep, nil
}

// CreditBalance atomically adds amount to the user's balance and returns the
// balances before and after.
func (s *Store) CreditBalance(ctx context.Context, userID string, amount decimal.Decimal) (before, after decimal.Decimal, err error) {
	var afterCents int64
	cents := toCents(amount)
	err = s.q.QueryRowContext(ctx,
		`UPDATE users SET balance_cents = balance_cents + ? WHERE id = ? RETURNING balance_cents`,
		cents, userID,
	).Scan(&afterCents)
	if err != nil {
		return decimal.Zero, decimal.Zero, notFound(err, domain.ErrUserNotFound)
	}
	return fromCents(afterCents - cents), fromCents(afterCents), nil
}

// DebitBalance subtracts amount only if the balance covers it. It returns
// domain.ErrInsufficientBalance when it does not.
func (s *Store) DebitBalance(ctx context.Context, userID string, amount decimal.Decimal) (before, after decimal.Decimal, err error) {
	var afterCents int64
	cents := toCents(amount)
	err = s.q.QueryRowContext(ctx,
		`UPDATE users SET balance_cents = balance_cents - ?
		 WHERE id = ? AND balance_cents >= ? RETURNING balance_cents`,
		cents, userID, cents,
	).Scan(&afterCents)
	if err == sql.ErrNoRows {
		if _, gerr := s.GetUser(ctx, userID); gerr != nil {
			return decimal.Zero, decimal.Zero, gerr
		}
		return decimal.Zero, decimal.Zero, domain.ErrInsufficientBalance
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return fromCents(afterCents + cents), fromCents(afterCents), nil
}

// TouchUser records activity at t.
func (s *Store) TouchUser(ctx context.Context, userID string, t time.Time) error {
	_, err := s.q.ExecContext(ctx, `UPDATE users SET last_active_at = ? WHERE id = ?`, t.Unix(), userID)
	return err
}

// SetUserActive flips the active flag. Users are never deleted.
func (s *Store) SetUserActive(ctx context.Context, userID string, active bool) error {
	result, err := s.q.ExecContext(ctx, `UPDATE users SET active = ? WHERE id = ?`, active, userID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RankUsers returns active users ordered by reputation then balance.
// A non-zero since keeps only users active at or after it.
func (s *Store) RankUsers(ctx context.Context, limit int, since time.Time) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active = 1`
	args := []any{}
	if !since.IsZero() {
		query += ` AND last_active_at >= ?`
		args = append(args, since.Unix())
	}
	query += ` ORDER BY reputation DESC, balance_cents DESC, seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	var balance, createdAt int64
	var lastActive sql.NullInt64
	err := s.Scan(&u.Seq, &u.ID, &u.Name, &u.Email, &u.Reputation, &balance,
		&u.Active, &createdAt, &lastActive)
	if err != nil {
		return nil, err
	}
	u.Balance = fromCents(balance)
	u.CreatedAt = time.Unix(createdAt, 0)
	u.LastActiveAt = fromNullableUnix(lastActive)
	return &u, nil
}
