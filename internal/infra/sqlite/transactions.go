package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// ─── Payment Transactions ───────────────────────────────────────────────────

const txColumns = `id, user_id, type, method, operator, destination, amount_cents,
	balance_before_cents, balance_after_cents, status, external_ref, error_reason,
	processed_by, campaign_id, details, created_at, processed_at`

// InsertTransaction appends a payment transaction.
func (s *Store) InsertTransaction(ctx context.Context, t domain.PaymentTransaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	var details sql.NullString
	if len(t.Details) > 0 {
		details = sql.NullString{String: string(t.Details), Valid: true}
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO payment_transactions (`+txColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Type), t.Method, t.Operator, t.Destination,
		toCents(t.Amount), toCents(t.BalanceBefore), toCents(t.BalanceAfter),
		string(t.Status), t.ExternalRef, t.ErrorReason, t.ProcessedBy, t.CampaignID,
		details, t.CreatedAt.Unix(), nullableUnix(t.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+txColumns+` FROM payment_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return t, nil
}

// Finalization carries the fields written when a pending transaction is
// settled by an operator.
type Finalization struct {
	Status      domain.TxStatus
	ExternalRef string
	ErrorReason string
	ProcessedBy string
	ProcessedAt time.Time
}

// FinalizeTransaction moves a pending transaction to a final status. It
// returns domain.ErrTransactionProcessed when the row is no longer pending.
func (s *Store) FinalizeTransaction(ctx context.Context, id string, f Finalization) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE payment_transactions
		 SET status = ?, external_ref = ?, error_reason = ?, processed_by = ?, processed_at = ?
		 WHERE id = ? AND status = ?`,
		string(f.Status), f.ExternalRef, f.ErrorReason, f.ProcessedBy, f.ProcessedAt.Unix(),
		id, string(domain.TxPending),
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, gerr := s.GetTransaction(ctx, id); gerr != nil {
			return gerr
		}
		return domain.ErrTransactionProcessed
	}
	return nil
}

// LastWithdrawalAt returns the creation time of the user's most recent
// withdrawal that was not cancelled, or the zero time if there is none.
func (s *Store) LastWithdrawalAt(ctx context.Context, userID string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.q.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM payment_transactions
		 WHERE user_id = ? AND type = ? AND status != ?`,
		userID, string(domain.TxWithdrawal), string(domain.TxCancelled),
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	return fromNullableUnix(ts), nil
}

// ListTransactions returns a user's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.PaymentTransaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM payment_transactions
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit)
}

// ListWithdrawalsByStatus returns withdrawals with the given status,
// oldest first so operators work the queue in order.
func (s *Store) ListWithdrawalsByStatus(ctx context.Context, status domain.TxStatus, limit int) ([]domain.PaymentTransaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM payment_transactions
		 WHERE type = ? AND status = ? ORDER BY created_at ASC, rowid ASC LIMIT ?`,
		string(domain.TxWithdrawal), string(status), limit)
}

// WithdrawalTotals returns the count and summed amount of withdrawals with
// the given status.
func (s *Store) WithdrawalTotals(ctx context.Context, status domain.TxStatus) (int, decimal.Decimal, error) {
	var n int
	var sum int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount_cents), 0) FROM payment_transactions
		 WHERE type = ? AND status = ?`,
		string(domain.TxWithdrawal), string(status),
	).Scan(&n, &sum)
	return n, fromCents(sum), err
}

// LedgerBalance recomputes a balance from the transaction log: completed
// credits minus withdrawals that are pending or completed.
func (s *Store) LedgerBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var cents int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE
			WHEN type = ? AND status = ? THEN amount_cents
			WHEN type = ? AND status IN (?, ?) THEN -amount_cents
			ELSE 0 END), 0)
		 FROM payment_transactions WHERE user_id = ?`,
		string(domain.TxReward), string(domain.TxCompleted),
		string(domain.TxWithdrawal), string(domain.TxPending), string(domain.TxCompleted),
		userID,
	).Scan(&cents)
	return fromCents(cents), err
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.PaymentTransaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTransaction(s scanner) (*domain.PaymentTransaction, error) {
	var t domain.PaymentTransaction
	var typ, status string
	var amount, before, after, createdAt int64
	var details sql.NullString
	var processedAt sql.NullInt64
	err := s.Scan(&t.ID, &t.UserID, &typ, &t.Method, &t.Operator, &t.Destination,
		&amount, &before, &after, &status, &t.ExternalRef, &t.ErrorReason,
		&t.ProcessedBy, &t.CampaignID, &details, &createdAt, &processedAt)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TxType(typ)
	t.Status = domain.TxStatus(status)
	t.Amount = fromCents(amount)
	t.BalanceBefore = fromCents(before)
	t.BalanceAfter = fromCents(after)
	if details.Valid {
		t.Details = []byte(details.String)
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	t.ProcessedAt = fromNullableUnix(processedAt)
	return &t, nil
}
