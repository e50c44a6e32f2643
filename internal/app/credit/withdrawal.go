package credit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/metrics"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

// WithdrawalRequest asks to move funds out of the platform.
type WithdrawalRequest struct {
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Operator    string          `json:"operator,omitempty"`
	Destination string          `json:"destination,omitempty"`
}

// Confirmation is an operator's verdict on a pending withdrawal.
type Confirmation struct {
	TransactionID string          `json:"transaction_id"`
	Status        domain.TxStatus `json:"status"`
	ExternalRef   string          `json:"external_ref,omitempty"`
	ErrorReason   string          `json:"error_reason,omitempty"`
	AdminID       string          `json:"-"`
}

// WithdrawalReceipt is returned to the user after a successful request.
type WithdrawalReceipt struct {
	Transaction     domain.PaymentTransaction `json:"transaction"`
	ProcessingHours int                       `json:"processing_hours"`
}

// PendingQueue lists withdrawals awaiting an operator with their totals.
type PendingQueue struct {
	Transactions []domain.PaymentTransaction `json:"transactions"`
	Count        int                         `json:"count"`
	Total        decimal.Decimal             `json:"total"`
}

// WithdrawalProcessor reserves funds at request time and finalizes or
// reverses the reservation when an operator confirms.
type WithdrawalProcessor struct {
	db  *sqlite.DB
	log *zap.Logger
	now func() time.Time
}

// NewWithdrawalProcessor creates a withdrawal processor.
func NewWithdrawalProcessor(db *sqlite.DB, log *zap.Logger) *WithdrawalProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &WithdrawalProcessor{db: db, log: log, now: time.Now}
}

// Request validates a withdrawal against the configured minimum, the
// balance and the frequency window, then debits the balance and records a
// pending transaction.
func (p *WithdrawalProcessor) Request(ctx context.Context, req WithdrawalRequest) (*WithdrawalReceipt, error) {
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Method) == "" {
		return nil, domain.ErrMissingMethod
	}

	var receipt WithdrawalReceipt
	err := p.db.InTx(ctx, func(s *sqlite.Store) error {
		settings, err := s.GetWithdrawalSettings(ctx)
		if err != nil {
			return fmt.Errorf("load withdrawal settings: %w", err)
		}
		if req.Amount.LessThan(settings.MinAmount) {
			return domain.ErrBelowMinimum.With(map[string]any{
				"minimum": settings.MinAmount.String(),
			})
		}

		user, err := s.GetUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		if user.Balance.LessThan(req.Amount) {
			return domain.ErrInsufficientBalance.With(map[string]any{
				"balance":   user.Balance.String(),
				"requested": req.Amount.String(),
			})
		}

		now := p.now()
		if settings.MinDaysBetween > 0 {
			last, err := s.LastWithdrawalAt(ctx, req.UserID)
			if err != nil {
				return fmt.Errorf("last withdrawal: %w", err)
			}
			window := time.Duration(settings.MinDaysBetween) * 24 * time.Hour
			if !last.IsZero() && now.Sub(last) < window {
				return domain.ErrWithdrawalTooSoon.With(map[string]any{
					"min_days_between": settings.MinDaysBetween,
					"next_allowed_at":  last.Add(window).UTC().Format(time.RFC3339),
				})
			}
		}

		before, after, err := s.DebitBalance(ctx, req.UserID, req.Amount)
		if err != nil {
			return err
		}
		tx := domain.PaymentTransaction{
			ID:            uuid.NewString(),
			UserID:        req.UserID,
			Type:          domain.TxWithdrawal,
			Method:        req.Method,
			Operator:      req.Operator,
			Destination:   req.Destination,
			Amount:        req.Amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Status:        domain.TxPending,
			CreatedAt:     now,
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		audit(ctx, p.log, s, domain.ActivityEntry{
			UserID: req.UserID,
			Action: domain.LogWithdrawalRequest,
			Details: map[string]any{
				"transaction_id": tx.ID,
				"valor":          req.Amount.String(),
				"metodo":         req.Method,
				"operadora":      req.Operator,
			},
		})
		receipt = WithdrawalReceipt{Transaction: tx, ProcessingHours: settings.ProcessingHours}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Withdrawals.WithLabelValues(string(domain.TxPending)).Inc()
	p.log.Info("withdrawal requested",
		zap.String("user_id", req.UserID),
		zap.String("transaction_id", receipt.Transaction.ID),
		zap.String("amount", req.Amount.String()),
		zap.String("method", req.Method),
	)
	return &receipt, nil
}

// Confirm finalizes a pending withdrawal. Completed keeps the funds
// debited; error and cancelled credit the full amount back. Only pending
// transactions can be confirmed.
func (p *WithdrawalProcessor) Confirm(ctx context.Context, c Confirmation) (*domain.PaymentTransaction, error) {
	if !c.Status.Final() {
		return nil, domain.ErrInvalidConfirmStatus
	}

	var out *domain.PaymentTransaction
	err := p.db.InTx(ctx, func(s *sqlite.Store) error {
		tx, err := s.GetTransaction(ctx, c.TransactionID)
		if err != nil {
			return err
		}
		if tx.Type != domain.TxWithdrawal {
			return domain.ErrNotWithdrawal
		}
		if tx.Status != domain.TxPending {
			return domain.ErrTransactionProcessed.With(map[string]any{"status": string(tx.Status)})
		}

		now := p.now()
		if err := s.FinalizeTransaction(ctx, tx.ID, sqlite.Finalization{
			Status:      c.Status,
			ExternalRef: c.ExternalRef,
			ErrorReason: c.ErrorReason,
			ProcessedBy: c.AdminID,
			ProcessedAt: now,
		}); err != nil {
			return err
		}
		if c.Status == domain.TxError || c.Status == domain.TxCancelled {
			if _, _, err := s.CreditBalance(ctx, tx.UserID, tx.Amount); err != nil {
				return fmt.Errorf("reverse withdrawal: %w", err)
			}
		}
		audit(ctx, p.log, s, domain.ActivityEntry{
			UserID: tx.UserID,
			Action: domain.LogAdminWithdrawal,
			Details: map[string]any{
				"transaction_id": tx.ID,
				"status":         string(c.Status),
				"admin_id":       c.AdminID,
				"referencia":     c.ExternalRef,
				"motivo_erro":    c.ErrorReason,
			},
		})

		tx.Status = c.Status
		tx.ExternalRef = c.ExternalRef
		tx.ErrorReason = c.ErrorReason
		tx.ProcessedBy = c.AdminID
		tx.ProcessedAt = now
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Withdrawals.WithLabelValues(string(c.Status)).Inc()
	p.log.Info("withdrawal confirmed",
		zap.String("transaction_id", out.ID),
		zap.String("user_id", out.UserID),
		zap.String("status", string(c.Status)),
		zap.String("admin_id", c.AdminID),
	)
	return out, nil
}

// Pending lists withdrawals in status (pendente when empty) with the
// count and summed amount of that status.
func (p *WithdrawalProcessor) Pending(ctx context.Context, status domain.TxStatus, limit int) (*PendingQueue, error) {
	if status == "" {
		status = domain.TxPending
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	txs, err := p.db.ListWithdrawalsByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	n, total, err := p.db.WithdrawalTotals(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("withdrawal totals: %w", err)
	}
	if status == domain.TxPending {
		metrics.PendingWithdrawals.Set(float64(n))
	}
	if txs == nil {
		txs = []domain.PaymentTransaction{}
	}
	return &PendingQueue{Transactions: txs, Count: n, Total: total}, nil
}

// Settings returns the active withdrawal settings.
func (p *WithdrawalProcessor) Settings(ctx context.Context) (domain.WithdrawalSettings, error) {
	return p.db.GetWithdrawalSettings(ctx)
}

// UpdateSettings replaces the withdrawal settings.
func (p *WithdrawalProcessor) UpdateSettings(ctx context.Context, ws domain.WithdrawalSettings) error {
	if ws.MinAmount.IsNegative() || ws.MinDaysBetween < 0 || ws.ProcessingHours < 0 {
		return domain.ErrInvalidSettings
	}
	if err := p.db.PutWithdrawalSettings(ctx, ws); err != nil {
		return fmt.Errorf("save withdrawal settings: %w", err)
	}
	p.log.Info("withdrawal settings updated",
		zap.String("min_amount", ws.MinAmount.String()),
		zap.Int("min_days_between", ws.MinDaysBetween),
		zap.Int("processing_hours", ws.ProcessingHours),
	)
	return nil
}
