package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/metrics"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

func newTestDB(t *testing.T) (*sqlite.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, dir
}

func statusOf(t *testing.T, c *Checker, name string) Status {
	t.Helper()
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("check %q not found", name)
	return Status{}
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	db, dir := newTestDB(t)

	c := NewChecker(db, dir, 0, nil)
	require.NotNil(t, c)
	assert.Len(t, c.checks, 3)
	assert.Equal(t, DefaultInterval, c.interval)
}

func TestChecker_RunAllHealthy(t *testing.T) {
	db, dir := newTestDB(t)

	c := NewChecker(db, dir, time.Second, nil)
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	require.Len(t, statuses, 3)
	for _, s := range statuses {
		assert.True(t, s.Healthy, "check %q: %s", s.Name, s.Error)
	}
	assert.True(t, c.IsHealthy())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HealthCheckStatus.WithLabelValues("sqlite")))
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	db, dir := newTestDB(t)

	c := NewChecker(db, dir, 0, nil)
	assert.True(t, c.IsHealthy(), "no statuses yet")
}

func TestChecker_DataDirMissing(t *testing.T) {
	db, _ := newTestDB(t)
	missing := filepath.Join(t.TempDir(), "gone")

	c := NewChecker(db, missing, 0, nil)
	c.RunOnce(context.Background())

	assert.False(t, statusOf(t, c, "data_dir").Healthy)
	assert.True(t, statusOf(t, c, "sqlite").Healthy)
	assert.False(t, c.IsHealthy())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.HealthCheckStatus.WithLabelValues("data_dir")))
}

func TestChecker_DataDirIsFile(t *testing.T) {
	db, _ := newTestDB(t)
	file := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(file, []byte("not a dir"), 0644))

	c := NewChecker(db, file, 0, nil)
	c.RunOnce(context.Background())

	s := statusOf(t, c, "data_dir")
	assert.False(t, s.Healthy)
	assert.Contains(t, s.Error, "not a directory")
}

func TestChecker_ClosedDatabase(t *testing.T) {
	db, dir := newTestDB(t)
	require.NoError(t, db.Close())

	c := NewChecker(db, dir, 0, nil)
	c.RunOnce(context.Background())

	assert.False(t, statusOf(t, c, "sqlite").Healthy)
}

func TestCheckSettings(t *testing.T) {
	assert.NoError(t, checkSettings(domain.WithdrawalSettings{MinAmount: decimal.NewFromInt(1000), MinDaysBetween: 7}))
	assert.Error(t, checkSettings(domain.WithdrawalSettings{MinAmount: decimal.NewFromInt(-1)}))
	assert.Error(t, checkSettings(domain.WithdrawalSettings{MinDaysBetween: -2}))
}

func TestChecker_RecoverCalledOnFailure(t *testing.T) {
	recovered := false
	c := &Checker{
		log: zap.NewNop(),
		checks: []Check{
			{
				Name:      "always_fail",
				CheckFn:   func(ctx context.Context) error { return os.ErrPermission },
				RecoverFn: func(ctx context.Context) error { recovered = true; return nil },
			},
		},
	}

	c.runAll(context.Background())

	statuses := c.Statuses()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Healthy)
	assert.NotEmpty(t, statuses[0].Error)
	assert.True(t, recovered)
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	db, dir := newTestDB(t)
	c := NewChecker(db, dir, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(c.Statuses()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
