// Package health runs periodic checks against the database and data
// directory and exposes the latest results.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/metrics"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 60 * time.Second

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      *zap.Logger
}

// NewChecker creates a checker with the standard checks: database
// reachability, data directory presence and the withdrawal settings row.
func NewChecker(db *sqlite.DB, dataDir string, interval time.Duration, log *zap.Logger) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{
		interval: interval,
		log:      log,
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return db.PingContext(ctx)
				},
			},
			{
				Name: "data_dir",
				CheckFn: func(ctx context.Context) error {
					return checkDataDir(dataDir)
				},
			},
			{
				Name: "withdrawal_settings",
				CheckFn: func(ctx context.Context) error {
					ws, err := db.GetWithdrawalSettings(ctx)
					if err != nil {
						return err
					}
					return checkSettings(ws)
				},
			},
		},
	}
}

// Run starts the health check loop and blocks until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now().UTC(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			c.log.Warn("health check failed", zap.String("check", check.Name), zap.Error(err))
			if check.RecoverFn != nil {
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.log.Error("health recovery failed", zap.String("check", check.Name), zap.Error(rerr))
				}
			}
		} else {
			s.Healthy = true
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(boolGauge(s.Healthy))
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// RunOnce executes every check immediately.
func (c *Checker) RunOnce(ctx context.Context) {
	c.runAll(ctx)
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func checkSettings(ws domain.WithdrawalSettings) error {
	if ws.MinAmount.IsNegative() || ws.MinDaysBetween < 0 || ws.ProcessingHours < 0 {
		return fmt.Errorf("withdrawal settings out of range: min=%s days=%d hours=%d",
			ws.MinAmount, ws.MinDaysBetween, ws.ProcessingHours)
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
