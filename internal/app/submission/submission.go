// Package submission coordinates a campaign submission end to end: quality
// validation of each answer, persistence, reward settlement and the
// reputation delta, all inside one store transaction.
package submission

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kudimu-insights/kudimu/internal/app/credit"
	"github.com/kudimu-insights/kudimu/internal/app/engagement"
	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/metrics"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

// Request is one user's batch of answers to one campaign.
type Request struct {
	UserID     string               `json:"user_id"`
	CampaignID string               `json:"campaign_id"`
	Answers    []domain.AnswerInput `json:"answers"`
}

// AnswerOutcome reports the verdict for one submitted answer.
type AnswerOutcome struct {
	AnswerID    string `json:"answer_id"`
	QuestionID  string `json:"question_id"`
	Accepted    bool   `json:"accepted"`
	Reason      string `json:"reason,omitempty"`
	BonusPoints int    `json:"bonus_points"`
}

// Result summarizes a submission.
type Result struct {
	RewardAmount     decimal.Decimal `json:"reward_amount"`
	BonusAmount      decimal.Decimal `json:"bonus_amount"`
	ReputationGained int             `json:"reputation_gained"`
	AcceptedCount    int             `json:"accepted_count"`
	RejectedCount    int             `json:"rejected_count"`
	FirstCampaign    bool            `json:"first_campaign"`
	Answers          []AnswerOutcome `json:"answers"`
}

// Service runs submissions and admin answer overrides.
type Service struct {
	db      *sqlite.DB
	rewards *credit.RewardEngine
	ledger  *engagement.Ledger
	log     *zap.Logger
	now     func() time.Time
}

// NewService creates the submission service.
func NewService(db *sqlite.DB, rewards *credit.RewardEngine, ledger *engagement.Ledger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, rewards: rewards, ledger: ledger, log: log, now: time.Now}
}

// Submit validates and persists every answer, then settles the reward and
// applies one reputation delta for the whole submission.
//
// When every answer is rejected the answers stay persisted (so a retry hits
// the duplicate check), nothing is paid, and Submit returns both the result
// and domain.ErrAllAnswersRejected carrying the rejected count.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := s.submit(ctx, req)
	metrics.SubmissionLatency.Observe(time.Since(start).Seconds())
	metrics.Submissions.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		s.log.Info("submission refused",
			zap.String("user_id", req.UserID),
			zap.String("campaign_id", req.CampaignID),
			zap.Error(err),
		)
		return res, err
	}
	s.log.Info("submission accepted",
		zap.String("user_id", req.UserID),
		zap.String("campaign_id", req.CampaignID),
		zap.Int("accepted", res.AcceptedCount),
		zap.Int("rejected", res.RejectedCount),
		zap.String("reward", res.RewardAmount.String()),
		zap.Int("reputation", res.ReputationGained),
	)
	return res, nil
}

func (s *Service) submit(ctx context.Context, req Request) (*Result, error) {
	if len(req.Answers) == 0 {
		return nil, domain.ErrNoAnswers
	}

	res := &Result{RewardAmount: decimal.Zero, BonusAmount: decimal.Zero}
	err := s.db.InTx(ctx, func(st *sqlite.Store) error {
		campaign, err := st.GetCampaign(ctx, req.CampaignID)
		if err != nil {
			return err
		}
		if campaign.Status != domain.CampaignActive {
			return domain.ErrCampaignInactive.With(map[string]any{"status": string(campaign.Status)})
		}
		if _, err := st.GetUser(ctx, req.UserID); err != nil {
			return err
		}
		answered, err := st.HasAnswered(ctx, req.UserID, req.CampaignID)
		if err != nil {
			return fmt.Errorf("duplicate check: %w", err)
		}
		if answered {
			return domain.ErrAlreadyAnswered
		}

		// RESPOSTA_VALIDADA is credited once per submission, not per
		// accepted answer. Per-answer bonuses accumulate on top.
		points := domain.ActionAnswerValidated.Points()
		now := s.now()

		for _, in := range req.Answers {
			seconds := in.Seconds()
			v := engagement.Validate(in.Value, seconds)
			a := domain.Answer{
				ID:           uuid.NewString(),
				UserID:       req.UserID,
				CampaignID:   req.CampaignID,
				QuestionID:   in.QuestionID,
				Response:     in.Value.Stored(),
				Validated:    v.Accepted,
				Detailed:     v.Detailed,
				ResponseTime: seconds,
				AnsweredAt:   now,
			}
			if err := st.InsertAnswer(ctx, a); err != nil {
				return err
			}
			res.Answers = append(res.Answers, AnswerOutcome{
				AnswerID:    a.ID,
				QuestionID:  a.QuestionID,
				Accepted:    v.Accepted,
				Reason:      v.Reason,
				BonusPoints: v.BonusPoints,
			})

			if !v.Accepted {
				res.RejectedCount++
				s.audit(ctx, st, domain.ActivityEntry{
					UserID: req.UserID,
					Action: domain.LogAnswerRejected,
					Details: map[string]any{
						"campanha_id": req.CampaignID,
						"pergunta_id": in.QuestionID,
						"motivo":      v.Reason,
					},
				})
				continue
			}
			res.AcceptedCount++
			points += v.BonusPoints
		}

		if res.AcceptedCount == 0 {
			return nil
		}

		settlement, err := s.rewards.SettleSubmission(ctx, st, req.UserID, req.CampaignID, res.AcceptedCount)
		if err != nil {
			return err
		}
		res.RewardAmount = settlement.RewardAmount
		res.BonusAmount = settlement.BonusAmount

		before, err := st.HasValidatedCampaignOtherThan(ctx, req.UserID, req.CampaignID)
		if err != nil {
			return fmt.Errorf("first campaign check: %w", err)
		}
		res.FirstCampaign = !before
		if res.FirstCampaign {
			points += domain.ActionFirstCampaign.Points()
			s.audit(ctx, st, domain.ActivityEntry{
				UserID:  req.UserID,
				Action:  domain.LogFirstCampaign,
				Details: map[string]any{"campanha_id": req.CampaignID},
			})
		} else {
			points += domain.ActionCampaignComplete.Points()
		}

		if _, err := s.ledger.WithStore(st).ApplyDelta(ctx, req.UserID, domain.ActionCampaignSubmission, points, map[string]any{
			"campanha_id":    req.CampaignID,
			"aceites":        res.AcceptedCount,
			"rejeitadas":     res.RejectedCount,
			"primeira":       res.FirstCampaign,
			"recompensa_id":  settlement.RewardID,
			"transaction_id": settlement.TransactionID,
		}); err != nil {
			return fmt.Errorf("apply reputation: %w", err)
		}
		res.ReputationGained = points

		if err := st.TouchUser(ctx, req.UserID, now); err != nil {
			return fmt.Errorf("touch user: %w", err)
		}
		s.audit(ctx, st, domain.ActivityEntry{
			UserID: req.UserID,
			Action: domain.LogSubmissionSent,
			Details: map[string]any{
				"campanha_id": req.CampaignID,
				"recompensa":  res.RewardAmount.String(),
				"bonus":       res.BonusAmount.String(),
				"reputacao":   points,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Answers.WithLabelValues("accepted").Add(float64(res.AcceptedCount))
	metrics.Answers.WithLabelValues("rejected").Add(float64(res.RejectedCount))

	if res.AcceptedCount == 0 {
		return res, domain.ErrAllAnswersRejected.With(map[string]any{
			"rejected_count": res.RejectedCount,
		})
	}
	return res, nil
}

// OverrideResult reports an admin verdict change on one answer.
type OverrideResult struct {
	Answer          domain.Answer `json:"answer"`
	Changed         bool          `json:"changed"`
	ReputationDelta int           `json:"reputation_delta"`
	Reputation      int           `json:"reputation"`
}

// OverrideValidation flips an answer's validated flag and applies the
// compensating reputation action: RESPOSTA_VALIDADA when accepting,
// RESPOSTA_REJEITADA when rejecting. Setting the current value is a no-op.
func (s *Service) OverrideValidation(ctx context.Context, adminID, answerID string, validated bool) (*OverrideResult, error) {
	var out OverrideResult
	err := s.db.InTx(ctx, func(st *sqlite.Store) error {
		a, err := st.GetAnswer(ctx, answerID)
		if err != nil {
			return err
		}
		if a.Validated == validated {
			user, err := st.GetUser(ctx, a.UserID)
			if err != nil {
				return err
			}
			out = OverrideResult{Answer: *a, Reputation: user.Reputation}
			return nil
		}

		if err := st.SetAnswerValidated(ctx, answerID, validated); err != nil {
			return err
		}
		action := domain.ActionAnswerRejected
		if validated {
			action = domain.ActionAnswerValidated
		}
		rep, err := s.ledger.WithStore(st).Apply(ctx, a.UserID, action, map[string]any{
			"resposta_id": answerID,
			"admin_id":    adminID,
		})
		if err != nil {
			return fmt.Errorf("apply reputation: %w", err)
		}
		s.audit(ctx, st, domain.ActivityEntry{
			UserID: a.UserID,
			Action: domain.LogAdminAnswer,
			Details: map[string]any{
				"resposta_id": answerID,
				"admin_id":    adminID,
				"validada":    validated,
			},
		})

		a.Validated = validated
		out = OverrideResult{Answer: *a, Changed: true, ReputationDelta: action.Points(), Reputation: rep}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Changed {
		s.log.Info("answer validation overridden",
			zap.String("answer_id", answerID),
			zap.String("admin_id", adminID),
			zap.Bool("validated", validated),
		)
	}
	return &out, nil
}

// minEligibleLength is the stored response length an answer must exceed to
// pass the reward pre-check.
const minEligibleLength = 10

// Eligibility is the reward pre-check for one stored answer.
type Eligibility struct {
	AnswerID   string          `json:"answer_id"`
	UserID     string          `json:"user_id"`
	Eligible   bool            `json:"eligible"`
	Checks     map[string]bool `json:"checks"`
	Reputation int             `json:"reputation"`
	Tier       string          `json:"tier"`
}

// CheckEligibility runs the reward pre-checks on a stored answer without
// changing anything: minimum response time, an active author with
// non-negative reputation, and a non-trivial response.
func (s *Service) CheckEligibility(ctx context.Context, answerID string) (*Eligibility, error) {
	a, err := s.db.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	user, err := s.db.GetUser(ctx, a.UserID)
	if err != nil {
		return nil, err
	}

	checks := map[string]bool{
		"min_time":    a.ResponseTime >= engagement.MinResponseSeconds,
		"user_active": user.Active && user.Reputation >= 0,
		"non_empty":   utf8.RuneCountInString(strings.TrimSpace(a.Response)) > minEligibleLength,
	}
	eligible := true
	for _, ok := range checks {
		eligible = eligible && ok
	}
	return &Eligibility{
		AnswerID:   a.ID,
		UserID:     a.UserID,
		Eligible:   eligible,
		Checks:     checks,
		Reputation: user.Reputation,
		Tier:       engagement.LevelOf(user.Reputation).Name,
	}, nil
}

func (s *Service) audit(ctx context.Context, st *sqlite.Store, e domain.ActivityEntry) {
	if err := st.AppendActivity(ctx, e); err != nil {
		s.log.Warn("activity append failed",
			zap.String("user_id", e.UserID),
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}

// outcome labels a submission result for metrics.
func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	switch domain.KindOf(err) {
	case domain.KindValidationFailed:
		return "rejected"
	case domain.KindConflict:
		return "conflict"
	case domain.KindNotFound:
		return "not_found"
	case domain.KindInvalidState:
		return "invalid_state"
	default:
		return "error"
	}
}
