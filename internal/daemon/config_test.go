package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("KUDIMU_HOME", t.TempDir())
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, 8787, cfg.API.Port)
	assert.Equal(t, Home(), cfg.Database.Dir)
	assert.Equal(t, 7, cfg.Withdrawal.MinDaysBetween)
	assert.True(t, cfg.Telemetry.Prometheus)

	ws, err := cfg.Withdrawal.WithdrawalSettings()
	require.NoError(t, err)
	assert.True(t, ws.MinAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 48, ws.ProcessingHours)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("KUDIMU_HOME", home)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, filepath.Join(home, "config.toml"), ConfigPath())
}

func TestSaveLoadConfig(t *testing.T) {
	t.Setenv("KUDIMU_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 9090
	cfg.Withdrawal.MinAmount = "2500.50"
	cfg.Logging.Format = "json"
	require.NoError(t, SaveConfig(cfg))

	got, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadConfig_PartialFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("KUDIMU_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"),
		[]byte("[api]\nport = 7000\n\n[withdrawal]\nmin_days_between = 3\n"), 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.API.Port)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, 3, cfg.Withdrawal.MinDaysBetween)
	assert.Equal(t, "1000", cfg.Withdrawal.MinAmount)
}

func TestLoadConfig_Invalid(t *testing.T) {
	home := t.TempDir()
	t.Setenv("KUDIMU_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[api\nport="), 0600))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestWithdrawalSettings_BadAmount(t *testing.T) {
	_, err := WithdrawalConfig{MinAmount: "mil"}.WithdrawalSettings()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"", "console", "json"} {
		log, err := NewLogger(LoggingConfig{Level: "debug", Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, log)
	}

	_, err := NewLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
}

func TestNewWithConfig_SeedsSettings(t *testing.T) {
	t.Setenv("KUDIMU_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Withdrawal.MinAmount = "750"

	d, err := NewWithConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	ws, err := d.Withdrawals.Settings(context.Background())
	require.NoError(t, err)
	assert.True(t, ws.MinAmount.Equal(decimal.NewFromInt(750)))

	d.Health.RunOnce(context.Background())
	assert.True(t, d.Health.IsHealthy())
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Setenv("KUDIMU_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.API.Port = 0

	d, err := NewWithConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
