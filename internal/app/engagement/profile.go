package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

// Statistics is the aggregate view shown on a reputation profile.
type Statistics struct {
	CampaignsCompleted   int             `json:"campaigns_completed"`
	TotalAnswers         int             `json:"total_answers"`
	AcceptedAnswers      int             `json:"accepted_answers"`
	RejectedAnswers      int             `json:"rejected_answers"`
	ApprovalRate         int             `json:"approval_rate"`
	DetailedAnswers      int             `json:"detailed_answers"`
	FastAnswers          int             `json:"fast_answers"`
	AcceptedInvites      int             `json:"accepted_invites"`
	SubstantiatedReports int             `json:"substantiated_reports"`
	StreakDays           int             `json:"streak_days"`
	Balance              decimal.Decimal `json:"balance"`
}

// Profile composes tier, progress, statistics and medals for one user.
type Profile struct {
	UserID     string         `json:"user_id"`
	Name       string         `json:"name"`
	Reputation int            `json:"reputation"`
	Tier       domain.Tier    `json:"tier"`
	Progress   Progress       `json:"progress"`
	Statistics Statistics     `json:"statistics"`
	Medals     []domain.Medal `json:"medals"`
}

// Period filters the ranking by recent activity.
type Period string

const (
	PeriodAll     Period = "geral"
	PeriodWeekly  Period = "semanal"
	PeriodMonthly Period = "mensal"
)

// Ranking limits.
const (
	DefaultRankingLimit = 50
	MaxRankingLimit     = 500
)

// streakWindow bounds how many active days are loaded to compute a streak.
const streakWindow = 400

// RankEntry is one row of the leaderboard.
type RankEntry struct {
	Position   int             `json:"position"`
	UserID     string          `json:"user_id"`
	Name       string          `json:"name"`
	Reputation int             `json:"reputation"`
	Tier       string          `json:"tier"`
	TierIcon   string          `json:"tier_icon"`
	Balance    decimal.Decimal `json:"balance"`
}

// Profiles serves the reputation read paths.
type Profiles struct {
	db  *sqlite.DB
	now func() time.Time
}

// NewProfiles creates the read service.
func NewProfiles(db *sqlite.DB) *Profiles {
	return &Profiles{db: db, now: time.Now}
}

// Profile returns the full reputation profile of a user.
func (p *Profiles) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := p.db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, medalStats, err := p.collect(ctx, user)
	if err != nil {
		return nil, err
	}

	medals := EvaluateMedals(medalStats)
	if medals == nil {
		medals = []domain.Medal{}
	}
	return &Profile{
		UserID:     user.ID,
		Name:       user.Name,
		Reputation: user.Reputation,
		Tier:       LevelOf(user.Reputation),
		Progress:   ProgressToNext(user.Reputation),
		Statistics: stats,
		Medals:     medals,
	}, nil
}

// Medals returns the whole catalog with the user's unlocked flags.
func (p *Profiles) Medals(ctx context.Context, userID string) ([]MedalStatus, error) {
	user, err := p.db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, medalStats, err := p.collect(ctx, user)
	if err != nil {
		return nil, err
	}
	return MedalCatalog(medalStats), nil
}

// Ranking returns active users ordered by reputation, then balance.
// limit is clamped to [1, MaxRankingLimit]; 0 means DefaultRankingLimit.
func (p *Profiles) Ranking(ctx context.Context, limit int, period Period) ([]RankEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultRankingLimit
	case limit > MaxRankingLimit:
		limit = MaxRankingLimit
	}

	var since time.Time
	switch period {
	case PeriodAll, "":
	case PeriodWeekly:
		since = p.now().Add(-7 * day)
	case PeriodMonthly:
		since = p.now().Add(-30 * day)
	default:
		return nil, domain.ErrValidationFailed.With(map[string]any{"period": string(period)}).
			Wrap(fmt.Errorf("unknown ranking period %q", period))
	}

	users, err := p.db.RankUsers(ctx, limit, since)
	if err != nil {
		return nil, fmt.Errorf("rank users: %w", err)
	}
	out := make([]RankEntry, len(users))
	for i, u := range users {
		tier := LevelOf(u.Reputation)
		out[i] = RankEntry{
			Position:   i + 1,
			UserID:     u.ID,
			Name:       u.Name,
			Reputation: u.Reputation,
			Tier:       tier.Name,
			TierIcon:   tier.Icon,
			Balance:    u.Balance,
		}
	}
	return out, nil
}

func (p *Profiles) collect(ctx context.Context, user *domain.User) (Statistics, domain.MedalStats, error) {
	as, err := p.db.UserAnswerStats(ctx, user.ID, FastResponseSeconds)
	if err != nil {
		return Statistics{}, domain.MedalStats{}, fmt.Errorf("answer stats: %w", err)
	}
	invites, err := p.db.CountReputationEvents(ctx, user.ID, domain.ActionInviteAccepted)
	if err != nil {
		return Statistics{}, domain.MedalStats{}, fmt.Errorf("count invites: %w", err)
	}
	reports, err := p.db.CountReputationEvents(ctx, user.ID, domain.ActionReportSubstantiated)
	if err != nil {
		return Statistics{}, domain.MedalStats{}, fmt.Errorf("count reports: %w", err)
	}
	days, err := p.db.ActiveDays(ctx, user.ID, streakWindow)
	if err != nil {
		return Statistics{}, domain.MedalStats{}, fmt.Errorf("active days: %w", err)
	}

	st := Statistics{
		CampaignsCompleted:   as.CampaignsCompleted,
		TotalAnswers:         as.TotalAnswers,
		AcceptedAnswers:      as.AcceptedAnswers,
		RejectedAnswers:      as.RejectedAnswers,
		ApprovalRate:         ApprovalRate(as.AcceptedAnswers, as.TotalAnswers),
		DetailedAnswers:      as.DetailedAnswers,
		FastAnswers:          as.FastAnswers,
		AcceptedInvites:      invites,
		SubstantiatedReports: reports,
		StreakDays:           StreakDays(days, p.now()),
		Balance:              user.Balance,
	}
	ms := domain.MedalStats{
		Seq:                  user.Seq,
		CampaignsCompleted:   st.CampaignsCompleted,
		DetailedAnswers:      st.DetailedAnswers,
		FastAnswers:          st.FastAnswers,
		AcceptedInvites:      st.AcceptedInvites,
		SubstantiatedReports: st.SubstantiatedReports,
		StreakDays:           st.StreakDays,
		ApprovalRate:         st.ApprovalRate,
	}
	return st, ms, nil
}

// ApprovalRate is the rounded percentage of accepted answers. A user with
// no answers has a perfect rate.
func ApprovalRate(accepted, total int) int {
	if total <= 0 {
		return 100
	}
	return int(decimal.NewFromInt(int64(accepted)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).IntPart())
}
