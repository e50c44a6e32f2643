// Package domain holds the Kudimu entities, the fixed reputation registries
// and the typed errors shared by every layer. It has no infrastructure
// dependency.
package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Users ──────────────────────────────────────────────────────────────────

// User is the identity plus mutable gamification state.
// Reputation is only mutated by the reputation ledger, Balance by the
// reward engine and the withdrawal processor.
type User struct {
	Seq          int64           `json:"seq"`
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Reputation   int             `json:"reputation"`
	Balance      decimal.Decimal `json:"balance"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActiveAt time.Time       `json:"last_active_at,omitempty"`
}

// ─── Campaigns ──────────────────────────────────────────────────────────────

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "pendente"
	CampaignActive    CampaignStatus = "ativa"
	CampaignEnded     CampaignStatus = "encerrada"
	CampaignCancelled CampaignStatus = "cancelada"
)

// Valid reports whether s is a known lifecycle state.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignPending, CampaignActive, CampaignEnded, CampaignCancelled:
		return true
	}
	return false
}

// Campaign offers a fixed reward per accepted submission.
type Campaign struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	RewardPerResponse decimal.Decimal `json:"reward_per_response"`
	TargetCount       int             `json:"target_count"`
	CurrentCount      int             `json:"current_count"`
	Status            CampaignStatus  `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Question belongs to one campaign.
type Question struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Text       string `json:"text"`
	Kind       string `json:"kind"`
	Position   int    `json:"position"`
}

// ─── Answers ────────────────────────────────────────────────────────────────

// Response is a raw answer payload: either free text or a structured JSON
// value (choice lists, scales, coordinates).
type Response struct {
	Text   string
	Raw    json.RawMessage
	IsText bool
}

// TextResponse wraps a free-text answer.
func TextResponse(s string) Response {
	return Response{Text: s, IsText: true}
}

// StructuredResponse wraps a non-text JSON answer.
func StructuredResponse(raw json.RawMessage) Response {
	return Response{Raw: raw}
}

// Stored returns the representation persisted in answers.response.
func (r Response) Stored() string {
	if r.IsText {
		return r.Text
	}
	return string(r.Raw)
}

// UnmarshalJSON treats a JSON string as text and anything else as structured.
func (r *Response) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = TextResponse(s)
		return nil
	}
	*r = StructuredResponse(append(json.RawMessage(nil), trimmed...))
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.IsText {
		return json.Marshal(r.Text)
	}
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// Answer is one persisted response to one question.
// Only Validated changes after insert (admin override).
type Answer struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CampaignID   string    `json:"campaign_id"`
	QuestionID   string    `json:"question_id"`
	Response     string    `json:"response"`
	Validated    bool      `json:"validated"`
	Detailed     bool      `json:"detailed"`
	ResponseTime int       `json:"response_time"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// AnswerInput is one submitted answer before validation.
// A nil ResponseTime defaults to DefaultResponseTime.
type AnswerInput struct {
	QuestionID   string   `json:"question_id"`
	Value        Response `json:"value"`
	ResponseTime *int     `json:"response_time_seconds,omitempty"`
}

// DefaultResponseTime is assumed when a client omits the timing.
const DefaultResponseTime = 60

// Seconds returns the response time, applying the default.
func (a AnswerInput) Seconds() int {
	if a.ResponseTime == nil {
		return DefaultResponseTime
	}
	return *a.ResponseTime
}

// ─── Rewards & payments ─────────────────────────────────────────────────────

const (
	RewardTypePoints = "pontos"
	RewardStatusPaid = "pago"
)

// Reward is the append-only record of one settled submission.
type Reward struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	CampaignID string          `json:"campaign_id"`
	Value      decimal.Decimal `json:"value"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TxType categorizes a payment transaction.
type TxType string

const (
	TxReward     TxType = "recompensa"
	TxWithdrawal TxType = "saque"
)

// TxStatus is the state of a payment transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pendente"
	TxCompleted TxStatus = "concluido"
	TxError     TxStatus = "erro"
	TxCancelled TxStatus = "cancelado"
)

// Final reports whether s is a valid confirmation outcome.
func (s TxStatus) Final() bool {
	return s == TxCompleted || s == TxError || s == TxCancelled
}

// PaymentTransaction is a money-movement ledger entry.
// BalanceAfter = BalanceBefore ± Amount at the time of insert.
type PaymentTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Type          TxType          `json:"type"`
	Method        string          `json:"method,omitempty"`
	Operator      string          `json:"operator,omitempty"`
	Destination   string          `json:"destination,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Status        TxStatus        `json:"status"`
	ExternalRef   string          `json:"external_ref,omitempty"`
	ErrorReason   string          `json:"error_reason,omitempty"`
	ProcessedBy   string          `json:"processed_by,omitempty"`
	CampaignID    string          `json:"campaign_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   time.Time       `json:"processed_at,omitempty"`
}

// WithdrawalSettings is the single configuration row read by the
// withdrawal processor.
type WithdrawalSettings struct {
	MinAmount       decimal.Decimal `json:"min_amount"`
	MinDaysBetween  int             `json:"min_days_between"`
	ProcessingHours int             `json:"processing_hours"`
}

// ─── Activity log ───────────────────────────────────────────────────────────

// Activity log action names.
const (
	LogReputationChanged = "reputacao_alterada"
	LogAnswerRejected    = "resposta_rejeitada"
	LogSubmissionSent    = "resposta_enviada"
	LogFirstCampaign     = "primeira_campanha_completa"
	LogRewardCredited    = "recompensa_creditada"
	LogWithdrawalRequest = "saque_solicitado"
	LogAdminWithdrawal   = "admin_processar_saque"
	LogAdminAnswer       = "admin_validar_resposta"
)

// ActivityEntry is one append-only audit record. Display only; never the
// source of truth for balances.
type ActivityEntry struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
