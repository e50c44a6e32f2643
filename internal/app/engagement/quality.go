// Package engagement implements the Kudimu reputation engine: the answer
// quality gate, reputation tiers, medals, the reputation ledger and the
// profile/ranking read paths.
package engagement

import (
	"strings"
	"unicode/utf8"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// Quality gate thresholds.
const (
	MinResponseSeconds  = 5
	MinTextLength       = 3
	FastResponseSeconds = 120
	DetailedTextLength  = 100
)

// Rejection reasons.
const (
	ReasonTooFast  = "too fast / suspected spam"
	ReasonTooShort = "too short/empty"
	ReasonSpam     = "spam pattern detected"
)

var spamPatterns = []string{"asdfgh", "123456", "aaaaaa", "test", "teste"}

// Verdict is the outcome of the quality gate for one answer.
type Verdict struct {
	Accepted    bool   `json:"accepted"`
	Reason      string `json:"reason,omitempty"`
	BonusPoints int    `json:"bonus_points"`
	Detailed    bool   `json:"detailed"`
}

// Validate judges one answer. Rules run in order and the first rejection
// wins; accepted answers may earn the fast and detailed bonuses.
func Validate(value domain.Response, seconds int) Verdict {
	if seconds < MinResponseSeconds {
		return Verdict{Reason: ReasonTooFast}
	}

	textLen := 0
	if value.IsText {
		trimmed := strings.TrimSpace(value.Text)
		textLen = utf8.RuneCountInString(trimmed)
		if textLen < MinTextLength {
			return Verdict{Reason: ReasonTooShort}
		}
		lower := strings.ToLower(trimmed)
		for _, p := range spamPatterns {
			if strings.Contains(lower, p) {
				return Verdict{Reason: ReasonSpam}
			}
		}
	}

	v := Verdict{Accepted: true}
	if seconds < FastResponseSeconds {
		v.BonusPoints += domain.ActionFastAnswer.Points()
	}
	if textLen > DetailedTextLength {
		v.Detailed = true
		v.BonusPoints += domain.ActionDetailedAnswer.Points()
	}
	return v
}
