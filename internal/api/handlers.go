package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kudimu-insights/kudimu/internal/app/credit"
	"github.com/kudimu-insights/kudimu/internal/app/engagement"
	"github.com/kudimu-insights/kudimu/internal/app/submission"
	"github.com/kudimu-insights/kudimu/internal/domain"
)

// ─── Submissions ────────────────────────────────────────────────────────────

type submitRequest struct {
	CampaignID string               `json:"campaign_id"`
	Answers    []domain.AnswerInput `json:"answers"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CampaignID == "" {
		writeError(w, http.StatusBadRequest, "campaign_id is required")
		return
	}

	res, err := s.svc.Submissions.Submit(r.Context(), submission.Request{
		UserID:     userID,
		CampaignID: req.CampaignID,
		Answers:    req.Answers,
	})
	if errors.Is(err, domain.ErrAllAnswersRejected) && res != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": map[string]interface{}{
				"message": err.Error(),
				"type":    string(domain.KindValidationFailed),
			},
			"result": res,
		})
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ─── Reputation ─────────────────────────────────────────────────────────────

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Profiles.Profile(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMedals(w http.ResponseWriter, r *http.Request) {
	medals, err := s.svc.Profiles.Medals(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	unlocked := 0
	for _, m := range medals {
		if m.Unlocked {
			unlocked++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"medals":   medals,
		"unlocked": unlocked,
		"total":    len(medals),
	})
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	period := engagement.Period(r.URL.Query().Get("period"))
	ranking, err := s.svc.Profiles.Ranking(r.Context(), limit, period)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if period == "" {
		period = engagement.PeriodAll
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":  period,
		"ranking": ranking,
	})
}

// ─── Rewards and withdrawals ────────────────────────────────────────────────

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	h, err := s.svc.Rewards.History(r.Context(), chi.URLParam(r, "user"), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

type withdrawRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Operator    string          `json:"operator,omitempty"`
	Destination string          `json:"destination,omitempty"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !decode(w, r, &req) {
		return
	}
	receipt, err := s.svc.Withdrawals.Request(r.Context(), credit.WithdrawalRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Method:      req.Method,
		Operator:    req.Operator,
		Destination: req.Destination,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

type validateRequest struct {
	AnswerID string `json:"answer_id"`
}

func (s *Server) handleValidateReward(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AnswerID == "" {
		writeError(w, http.StatusBadRequest, "answer_id is required")
		return
	}
	e, err := s.svc.Submissions.CheckEligibility(r.Context(), req.AnswerID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ─── Admin ──────────────────────────────────────────────────────────────────

func (s *Server) handlePendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	status := domain.TxStatus(r.URL.Query().Get("status"))
	q, err := s.svc.Withdrawals.Pending(r.Context(), status, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type confirmRequest struct {
	Status      domain.TxStatus `json:"status"`
	ExternalRef string          `json:"external_ref,omitempty"`
	ErrorReason string          `json:"error_reason,omitempty"`
}

func (s *Server) handleConfirmWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if !decode(w, r, &req) {
		return
	}
	tx, err := s.svc.Withdrawals.Confirm(r.Context(), credit.Confirmation{
		TransactionID: chi.URLParam(r, "id"),
		Status:        req.Status,
		ExternalRef:   req.ExternalRef,
		ErrorReason:   req.ErrorReason,
		AdminID:       adminID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req credit.CreditRequest
	if !decode(w, r, &req) {
		return
	}
	req.AdminID = adminID
	tx, err := s.svc.Rewards.Credit(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

type overrideRequest struct {
	Validated *bool `json:"validated"`
}

func (s *Server) handleOverrideAnswer(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Validated == nil {
		writeError(w, http.StatusBadRequest, "validated is required")
		return
	}
	res, err := s.svc.Submissions.OverrideValidation(r.Context(), adminID, chi.URLParam(r, "id"), *req.Validated)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type applyActionRequest struct {
	Action   domain.Action  `json:"action"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	adminID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req applyActionRequest
	if !decode(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "user")
	meta := map[string]any{"admin_id": adminID}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	rep, err := s.svc.Ledger.Apply(r.Context(), userID, req.Action, meta)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	def, _ := req.Action.Def()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    userID,
		"action":     req.Action,
		"points":     def.Points,
		"reputation": rep,
	})
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}
