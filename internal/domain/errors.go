package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. The HTTP layer maps kinds to status codes.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindValidationFailed Kind = "validation_failed"
	KindInvalidState     Kind = "invalid_state"
	KindInternal         Kind = "internal"
)

// Error is a typed failure carrying a human-readable reason and an optional
// structured payload (e.g. the rejected answer count).
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind. A target without a message
// (the kind sentinels below) matches every error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// With returns a copy of e carrying details.
func (e *Error) With(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy of e wrapping cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// ─── Kind sentinels ─────────────────────────────────────────────────────────

var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrValidationFailed = &Error{Kind: KindValidationFailed}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
)

// ─── Specific failures ──────────────────────────────────────────────────────

var (
	ErrUserNotFound        = &Error{Kind: KindNotFound, Message: "user not found"}
	ErrCampaignNotFound    = &Error{Kind: KindNotFound, Message: "campaign not found"}
	ErrAnswerNotFound      = &Error{Kind: KindNotFound, Message: "answer not found"}
	ErrTransactionNotFound = &Error{Kind: KindNotFound, Message: "transaction not found"}

	ErrCampaignInactive = &Error{Kind: KindInvalidState, Message: "campaign is not active"}
	ErrNotWithdrawal    = &Error{Kind: KindInvalidState, Message: "transaction is not a withdrawal"}

	ErrAlreadyAnswered      = &Error{Kind: KindConflict, Message: "campaign already answered"}
	ErrTransactionProcessed = &Error{Kind: KindConflict, Message: "transaction already processed"}

	ErrNoAnswers            = &Error{Kind: KindValidationFailed, Message: "submission has no answers"}
	ErrAllAnswersRejected   = &Error{Kind: KindValidationFailed, Message: "every answer failed quality validation"}
	ErrBelowMinimum         = &Error{Kind: KindValidationFailed, Message: "amount below minimum withdrawal"}
	ErrInsufficientBalance  = &Error{Kind: KindValidationFailed, Message: "insufficient balance"}
	ErrWithdrawalTooSoon    = &Error{Kind: KindValidationFailed, Message: "withdrawal frequency limit reached"}
	ErrInvalidAmount        = &Error{Kind: KindValidationFailed, Message: "amount must be positive"}
	ErrAmountPrecision      = &Error{Kind: KindValidationFailed, Message: "amount must not have more than two decimal places"}
	ErrInvalidConfirmStatus = &Error{Kind: KindValidationFailed, Message: "confirmation status must be concluido, erro or cancelado"}
	ErrMissingMethod        = &Error{Kind: KindValidationFailed, Message: "payment method is required"}
	ErrInvalidSettings      = &Error{Kind: KindValidationFailed, Message: "withdrawal settings must not be negative"}
	ErrUnknownAction        = &Error{Kind: KindValidationFailed, Message: "unknown reputation action"}
	ErrBadCampaignStatus    = &Error{Kind: KindValidationFailed, Message: "campaign status must be pendente, ativa, encerrada or cancelada"}
)
