// Package credit moves money: it settles campaign rewards into user
// balances and runs the reserve-then-finalize withdrawal flow. Every balance
// change is paired with a payment transaction so the balance can always be
// recomputed from the transaction log.
package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kudimu-insights/kudimu/internal/app/engagement"
	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/metrics"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

// Settlement is the money outcome of one accepted submission.
type Settlement struct {
	RewardID      string          `json:"reward_id"`
	TransactionID string          `json:"transaction_id"`
	RewardAmount  decimal.Decimal `json:"reward_amount"`
	BonusAmount   decimal.Decimal `json:"bonus_amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// RewardEngine credits campaign rewards and manual credits.
type RewardEngine struct {
	db  *sqlite.DB
	log *zap.Logger
}

// NewRewardEngine creates a reward engine.
func NewRewardEngine(db *sqlite.DB, log *zap.Logger) *RewardEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &RewardEngine{db: db, log: log}
}

// SettleSubmission pays the campaign reward, scaled by the user's tier, for
// one accepted submission. It runs on the caller's transaction: the reward
// row, the campaign count increment, the balance credit and the payment
// transaction all commit or roll back together.
func (e *RewardEngine) SettleSubmission(ctx context.Context, store *sqlite.Store, userID, campaignID string, acceptedCount int) (Settlement, error) {
	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return Settlement{}, err
	}
	campaign, err := store.GetCampaign(ctx, campaignID)
	if err != nil {
		return Settlement{}, err
	}

	base := campaign.RewardPerResponse
	final := engagement.ApplyBonus(base, user.Reputation)
	bonus := final.Sub(base)
	now := time.Now()

	reward := domain.Reward{
		ID:         uuid.NewString(),
		UserID:     userID,
		CampaignID: campaignID,
		Value:      final,
		Type:       domain.RewardTypePoints,
		Status:     domain.RewardStatusPaid,
		CreatedAt:  now,
	}
	if err := store.InsertReward(ctx, reward); err != nil {
		return Settlement{}, err
	}
	if err := store.IncrementCampaignCount(ctx, campaignID); err != nil {
		return Settlement{}, fmt.Errorf("increment campaign count: %w", err)
	}
	before, after, err := store.CreditBalance(ctx, userID, final)
	if err != nil {
		return Settlement{}, fmt.Errorf("credit balance: %w", err)
	}

	details, _ := json.Marshal(map[string]any{
		"reward_id":      reward.ID,
		"accepted_count": acceptedCount,
		"base":           base.String(),
		"bonus":          bonus.String(),
		"tier":           engagement.LevelOf(user.Reputation).Key,
	})
	tx := domain.PaymentTransaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          domain.TxReward,
		Amount:        final,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        domain.TxCompleted,
		CampaignID:    campaignID,
		Details:       details,
		CreatedAt:     now,
		ProcessedAt:   now,
	}
	if err := store.InsertTransaction(ctx, tx); err != nil {
		return Settlement{}, err
	}

	metrics.RewardsPaid.Add(final.InexactFloat64())
	e.log.Debug("reward settled",
		zap.String("user_id", userID),
		zap.String("campaign_id", campaignID),
		zap.String("amount", final.String()),
		zap.String("bonus", bonus.String()),
	)
	return Settlement{
		RewardID:      reward.ID,
		TransactionID: tx.ID,
		RewardAmount:  final,
		BonusAmount:   bonus,
		BalanceAfter:  after,
	}, nil
}

// CreditRequest is an operator-initiated balance credit.
type CreditRequest struct {
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	CampaignID string          `json:"campaign_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	AdminID    string          `json:"-"`
}

// Credit adds funds to a user's balance outside the submission flow.
func (e *RewardEngine) Credit(ctx context.Context, req CreditRequest) (*domain.PaymentTransaction, error) {
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}

	var tx domain.PaymentTransaction
	err := e.db.InTx(ctx, func(s *sqlite.Store) error {
		before, after, err := s.CreditBalance(ctx, req.UserID, req.Amount)
		if err != nil {
			return err
		}
		now := time.Now()
		details, _ := json.Marshal(map[string]any{"reason": req.Reason})
		tx = domain.PaymentTransaction{
			ID:            uuid.NewString(),
			UserID:        req.UserID,
			Type:          domain.TxReward,
			Method:        "manual",
			Amount:        req.Amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Status:        domain.TxCompleted,
			ProcessedBy:   req.AdminID,
			CampaignID:    req.CampaignID,
			Details:       details,
			CreatedAt:     now,
			ProcessedAt:   now,
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		audit(ctx, e.log, s, domain.ActivityEntry{
			UserID: req.UserID,
			Action: domain.LogRewardCredited,
			Details: map[string]any{
				"transaction_id": tx.ID,
				"valor":          req.Amount.String(),
				"admin_id":       req.AdminID,
				"motivo":         req.Reason,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RewardsPaid.Add(req.Amount.InexactFloat64())
	e.log.Info("manual credit",
		zap.String("user_id", req.UserID),
		zap.String("transaction_id", tx.ID),
		zap.String("amount", req.Amount.String()),
	)
	return &tx, nil
}

// History is a user's balance with recent money movements.
type History struct {
	Balance      decimal.Decimal             `json:"balance"`
	Transactions []domain.PaymentTransaction `json:"transactions"`
	Rewards      []domain.Reward             `json:"rewards"`
}

// History returns the current balance and the latest transactions and
// rewards, newest first.
func (e *RewardEngine) History(ctx context.Context, userID string, limit int) (*History, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	user, err := e.db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := e.db.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	rewards, err := e.db.ListRewards(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	if txs == nil {
		txs = []domain.PaymentTransaction{}
	}
	if rewards == nil {
		rewards = []domain.Reward{}
	}
	return &History{Balance: user.Balance, Transactions: txs, Rewards: rewards}, nil
}

// BalanceCheck compares the stored balance with the one implied by the
// transaction log.
type BalanceCheck struct {
	UserID     string          `json:"user_id"`
	Stored     decimal.Decimal `json:"stored"`
	FromLedger decimal.Decimal `json:"from_ledger"`
	Consistent bool            `json:"consistent"`
}

// VerifyBalance recomputes a user's balance from payment transactions:
// completed credits minus pending and completed withdrawals.
func (e *RewardEngine) VerifyBalance(ctx context.Context, userID string) (BalanceCheck, error) {
	user, err := e.db.GetUser(ctx, userID)
	if err != nil {
		return BalanceCheck{}, err
	}
	ledger, err := e.db.LedgerBalance(ctx, userID)
	if err != nil {
		return BalanceCheck{}, fmt.Errorf("ledger balance: %w", err)
	}
	check := BalanceCheck{
		UserID:     userID,
		Stored:     user.Balance,
		FromLedger: ledger,
		Consistent: user.Balance.Equal(ledger),
	}
	if !check.Consistent {
		e.log.Warn("balance drift detected",
			zap.String("user_id", userID),
			zap.String("stored", user.Balance.String()),
			zap.String("ledger", ledger.String()),
		)
	}
	return check, nil
}

// checkAmount accepts positive amounts that fit in whole cents.
func checkAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(2)) {
		return domain.ErrAmountPrecision.With(map[string]any{"amount": d.String()})
	}
	return nil
}

// audit appends an activity entry, logging failures instead of returning them.
func audit(ctx context.Context, log *zap.Logger, s *sqlite.Store, e domain.ActivityEntry) {
	if err := s.AppendActivity(ctx, e); err != nil {
		log.Warn("activity append failed",
			zap.String("user_id", e.UserID),
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}
