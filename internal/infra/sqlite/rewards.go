package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// ─── Reward Repository ──────────────────────────────────────────────────────

// InsertReward appends a reward record. A second reward for the same
// (user, campaign) surfaces as domain.ErrAlreadyAnswered.
func (s *Store) InsertReward(ctx context.Context, r domain.Reward) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO rewards (id, user_id, campaign_id, value_cents, type, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.CampaignID, toCents(r.Value), r.Type, r.Status, r.CreatedAt.Unix(),
	)
	if IsUniqueViolation(err) {
		return domain.ErrAlreadyAnswered.Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

// ListRewards returns a user's rewards, newest first.
func (s *Store) ListRewards(ctx context.Context, userID string, limit int) ([]domain.Reward, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, campaign_id, value_cents, type, status, created_at
		 FROM rewards WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reward
	for rows.Next() {
		var r domain.Reward
		var value, createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.CampaignID, &value, &r.Type, &r.Status, &createdAt); err != nil {
			return nil, err
		}
		r.Value = fromCents(value)
		r.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
