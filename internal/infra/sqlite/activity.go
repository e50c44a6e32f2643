package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// ─── Activity Log ───────────────────────────────────────────────────────────

// AppendActivity writes one audit entry. Entries are never updated.
func (s *Store) AppendActivity(ctx context.Context, e domain.ActivityEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var details sql.NullString
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, action, details, created_at) VALUES (?, ?, ?, ?)`,
		e.UserID, e.Action, details, e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ListActivity returns a user's most recent entries, optionally filtered
// by action name.
func (s *Store) ListActivity(ctx context.Context, userID, action string, limit int) ([]domain.ActivityEntry, error) {
	query := `SELECT id, user_id, action, details, created_at FROM activity_logs WHERE user_id = ?`
	args := []any{userID}
	if action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var details sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &details, &createdAt); err != nil {
			return nil, err
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("decode activity %d: %w", e.ID, err)
			}
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountReputationEvents counts the user's reputation changes recorded for
// one action kind. The count comes from the activity log, which is written
// best-effort: an entry whose append failed is never counted, so medals
// derived from it (Influencer, Guardião) can lag the reputation ledger.
func (s *Store) CountReputationEvents(ctx context.Context, userID string, action domain.Action) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_logs
		 WHERE user_id = ? AND action = ? AND json_extract(details, '$.acao') = ?`,
		userID, domain.LogReputationChanged, string(action),
	).Scan(&n)
	return n, err
}
