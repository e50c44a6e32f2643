package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// ─── Withdrawal Settings ────────────────────────────────────────────────────

// SeedWithdrawalSettings writes def only when no settings row exists yet.
// The stored row stays authoritative across restarts.
func (s *Store) SeedWithdrawalSettings(ctx context.Context, def domain.WithdrawalSettings) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO withdrawal_settings (id, min_amount_cents, min_days_between, processing_hours, updated_at)
		 VALUES (1, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		toCents(def.MinAmount), def.MinDaysBetween, def.ProcessingHours, time.Now().Unix(),
	)
	return err
}

// PutWithdrawalSettings overwrites the settings row.
func (s *Store) PutWithdrawalSettings(ctx context.Context, ws domain.WithdrawalSettings) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO withdrawal_settings (id, min_amount_cents, min_days_between, processing_hours, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			min_amount_cents=excluded.min_amount_cents,
			min_days_between=excluded.min_days_between,
			processing_hours=excluded.processing_hours,
			updated_at=excluded.updated_at`,
		toCents(ws.MinAmount), ws.MinDaysBetween, ws.ProcessingHours, time.Now().Unix(),
	)
	return err
}

// GetWithdrawalSettings reads the settings row. A missing row yields
// zero-valued settings (no minimum, no frequency limit).
func (s *Store) GetWithdrawalSettings(ctx context.Context) (domain.WithdrawalSettings, error) {
	var ws domain.WithdrawalSettings
	var minCents int64
	err := s.q.QueryRowContext(ctx,
		`SELECT min_amount_cents, min_days_between, processing_hours FROM withdrawal_settings WHERE id = 1`,
	).Scan(&minCents, &ws.MinDaysBetween, &ws.ProcessingHours)
	if errors.Is(err, sql.ErrNoRows) {
		return ws, nil
	}
	if err != nil {
		return ws, err
	}
	ws.MinAmount = fromCents(minCents)
	return ws, nil
}
