package sqlite

import (
	"context"
	"time"
)

// ─── Aggregate Queries ──────────────────────────────────────────────────────

// AnswerStats aggregates a user's answer history.
type AnswerStats struct {
	CampaignsCompleted int
	TotalAnswers       int
	AcceptedAnswers    int
	RejectedAnswers    int
	DetailedAnswers    int
	FastAnswers        int
}

// UserAnswerStats computes answer aggregates for one user. Detailed and
// fast counts only include accepted answers. Detailed answers are the ones
// flagged at insert time; fastSeconds is the fast-bonus threshold.
func (s *Store) UserAnswerStats(ctx context.Context, userID string, fastSeconds int) (AnswerStats, error) {
	var st AnswerStats
	err := s.q.QueryRowContext(ctx,
		`SELECT
			COUNT(DISTINCT CASE WHEN validated = 1 THEN campaign_id END),
			COUNT(*),
			COALESCE(SUM(CASE WHEN validated = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN validated = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN validated = 1 AND detailed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN validated = 1 AND response_time < ? THEN 1 ELSE 0 END), 0)
		 FROM answers WHERE user_id = ?`,
		fastSeconds, userID,
	).Scan(&st.CampaignsCompleted, &st.TotalAnswers, &st.AcceptedAnswers,
		&st.RejectedAnswers, &st.DetailedAnswers, &st.FastAnswers)
	return st, err
}

// ActiveDays returns the distinct UTC days on which the user answered,
// most recent first.
func (s *Store) ActiveDays(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT DISTINCT date(answered_at, 'unixepoch') AS d FROM answers
		 WHERE user_id = ? ORDER BY d DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return nil, err
		}
		days = append(days, t)
	}
	return days, rows.Err()
}
