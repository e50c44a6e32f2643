// Package metrics provides Prometheus metrics for Kudimu: submissions,
// answer verdicts, rewards, reputation and withdrawals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Submissions ────────────────────────────────────────────────────────────

// Submissions counts submission attempts by terminal outcome
// (accepted, rejected, conflict, not_found, invalid_state, error).
var Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kudimu",
	Name:      "submissions_total",
	Help:      "Campaign submissions by outcome.",
}, []string{"outcome"})

// SubmissionLatency tracks end-to-end submission handling in seconds.
var SubmissionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "kudimu",
	Name:      "submission_latency_seconds",
	Help:      "Submission processing duration in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
})

// Answers counts answers by quality verdict.
var Answers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kudimu",
	Name:      "answers_total",
	Help:      "Answers judged by the quality gate.",
}, []string{"verdict"})

// ─── Rewards & reputation ───────────────────────────────────────────────────

// RewardsPaid sums reward value credited to users.
var RewardsPaid = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "kudimu",
	Name:      "rewards_paid_total",
	Help:      "Total reward value credited.",
})

// ReputationPoints sums reputation points applied per action. Negative
// actions are tracked separately so the counter stays monotonic.
var ReputationPoints = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kudimu",
	Name:      "reputation_points_total",
	Help:      "Reputation points applied, by action and sign.",
}, []string{"action", "sign"})

// ─── Withdrawals ────────────────────────────────────────────────────────────

// Withdrawals counts withdrawal lifecycle events by status.
var Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kudimu",
	Name:      "withdrawals_total",
	Help:      "Withdrawals requested and finalized, by status.",
}, []string{"status"})

// PendingWithdrawals is the last observed size of the operator queue.
var PendingWithdrawals = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "kudimu",
	Name:      "withdrawals_pending",
	Help:      "Number of withdrawals awaiting confirmation.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus reports each health check as 1 (healthy) or 0.
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "kudimu",
	Name:      "health_check_status",
	Help:      "Health check result (1=healthy, 0=unhealthy).",
}, []string{"check"})

// ObserveReputation records a reputation delta under its action label.
func ObserveReputation(action string, points int) {
	switch {
	case points > 0:
		ReputationPoints.WithLabelValues(action, "positive").Add(float64(points))
	case points < 0:
		ReputationPoints.WithLabelValues(action, "negative").Add(float64(-points))
	}
}
