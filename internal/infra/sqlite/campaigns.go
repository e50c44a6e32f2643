package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// ─── Campaign Repository ────────────────────────────────────────────────────

// InsertCampaign creates a campaign.
func (s *Store) InsertCampaign(ctx context.Context, c domain.Campaign) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO campaigns (id, title, reward_cents, target_count, current_count, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, toCents(c.RewardPerResponse), c.TargetCount, c.CurrentCount,
		string(c.Status), c.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// GetCampaign retrieves a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	var c domain.Campaign
	var reward, createdAt int64
	var status string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, title, reward_cents, target_count, current_count, status, created_at
		 FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &reward, &c.TargetCount, &c.CurrentCount, &status, &createdAt)
	if err != nil {
		return nil, notFound(err, domain.ErrCampaignNotFound)
	}
	c.RewardPerResponse = fromCents(reward)
	c.Status = domain.CampaignStatus(status)
	c.CreatedAt = time.Unix(createdAt, 0)
	return &c, nil
}

// IncrementCampaignCount bumps current_count by one.
func (s *Store) IncrementCampaignCount(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE campaigns SET current_count = current_count + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// SetCampaignStatus moves a campaign through its lifecycle.
func (s *Store) SetCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	result, err := s.q.ExecContext(ctx, `UPDATE campaigns SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// ─── Questions ──────────────────────────────────────────────────────────────

// InsertQuestion adds a question to a campaign.
func (s *Store) InsertQuestion(ctx context.Context, q domain.Question) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO questions (id, campaign_id, text, kind, position) VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.CampaignID, q.Text, q.Kind, q.Position,
	)
	return err
}

// ListQuestions returns a campaign's questions in display order.
func (s *Store) ListQuestions(ctx context.Context, campaignID string) ([]domain.Question, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, campaign_id, text, kind, position FROM questions
		 WHERE campaign_id = ? ORDER BY position, id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var qs []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.CampaignID, &q.Text, &q.Kind, &q.Position); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}
