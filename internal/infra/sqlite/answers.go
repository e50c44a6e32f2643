package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// ─── Answer Repository ──────────────────────────────────────────────────────

// InsertAnswer persists one answer. A duplicate (user, campaign, question)
// surfaces as domain.ErrAlreadyAnswered.
func (s *Store) InsertAnswer(ctx context.Context, a domain.Answer) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO answers (id, user_id, campaign_id, question_id, response, validated, detailed, response_time, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.CampaignID, a.QuestionID, a.Response, a.Validated, a.Detailed,
		a.ResponseTime, a.AnsweredAt.Unix(),
	)
	if IsUniqueViolation(err) {
		return domain.ErrAlreadyAnswered.Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// HasAnswered reports whether the user already has any answer row for the
// campaign, accepted or not.
func (s *Store) HasAnswered(ctx context.Context, userID, campaignID string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE user_id = ? AND campaign_id = ?`,
		userID, campaignID,
	).Scan(&n)
	return n > 0, err
}

// HasValidatedCampaignOtherThan reports whether the user has an accepted
// answer in any campaign except campaignID.
func (s *Store) HasValidatedCampaignOtherThan(ctx context.Context, userID, campaignID string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers
		 WHERE user_id = ? AND campaign_id != ? AND validated = 1`,
		userID, campaignID,
	).Scan(&n)
	return n > 0, err
}

// GetAnswer retrieves an answer by id.
func (s *Store) GetAnswer(ctx context.Context, id string) (*domain.Answer, error) {
	var a domain.Answer
	var answeredAt int64
	err := s.q.QueryRowContext(ctx,
		`SELECT id, user_id, campaign_id, question_id, response, validated, detailed, response_time, answered_at
		 FROM answers WHERE id = ?`, id,
	).Scan(&a.ID, &a.UserID, &a.CampaignID, &a.QuestionID, &a.Response,
		&a.Validated, &a.Detailed, &a.ResponseTime, &answeredAt)
	if err != nil {
		return nil, notFound(err, domain.ErrAnswerNotFound)
	}
	a.AnsweredAt = time.Unix(answeredAt, 0)
	return &a, nil
}

// SetAnswerValidated overwrites the validated flag.
func (s *Store) SetAnswerValidated(ctx context.Context, id string, validated bool) error {
	result, err := s.q.ExecContext(ctx, `UPDATE answers SET validated = ? WHERE id = ?`, validated, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrAnswerNotFound
	}
	return nil
}

// ListAnswers returns a user's answers for one campaign.
func (s *Store) ListAnswers(ctx context.Context, userID, campaignID string) ([]domain.Answer, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, campaign_id, question_id, response, validated, detailed, response_time, answered_at
		 FROM answers WHERE user_id = ? AND campaign_id = ? ORDER BY answered_at, id`,
		userID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var a domain.Answer
		var answeredAt int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.CampaignID, &a.QuestionID, &a.Response,
			&a.Validated, &a.Detailed, &a.ResponseTime, &answeredAt); err != nil {
			return nil, err
		}
		a.AnsweredAt = time.Unix(answeredAt, 0)
		out = append(out, a)
	}
	return out, rows.Err()
}
