package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kudimu-insights/kudimu/internal/api"
	"github.com/kudimu-insights/kudimu/internal/app/credit"
	"github.com/kudimu-insights/kudimu/internal/app/engagement"
	"github.com/kudimu-insights/kudimu/internal/app/submission"
	"github.com/kudimu-insights/kudimu/internal/health"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

const shutdownTimeout = 15 * time.Second

// Daemon is the long-running Kudimu process.
type Daemon struct {
	Config Config
	Log    *zap.Logger
	DB     *sqlite.DB

	Ledger      *engagement.Ledger
	Profiles    *engagement.Profiles
	Rewards     *credit.RewardEngine
	Withdrawals *credit.WithdrawalProcessor
	Submissions *submission.Service
	Health      *health.Checker
	Server      *api.Server
}

// New creates a daemon from the config file under the Kudimu home.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, log)
}

// NewWithConfig opens the database, seeds the withdrawal settings and wires
// every service.
func NewWithConfig(cfg Config, log *zap.Logger) (*Daemon, error) {
	if log == nil {
		log = zap.NewNop()
	}
	seed, err := cfg.Withdrawal.WithdrawalSettings()
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Database.Dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.SeedWithdrawalSettings(context.Background(), seed); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed withdrawal settings: %w", err)
	}

	d := &Daemon{Config: cfg, Log: log, DB: db}
	d.Ledger = engagement.NewLedger(db, log.Named("ledger"))
	d.Profiles = engagement.NewProfiles(db)
	d.Rewards = credit.NewRewardEngine(db, log.Named("rewards"))
	d.Withdrawals = credit.NewWithdrawalProcessor(db, log.Named("withdrawals"))
	d.Submissions = submission.NewService(db, d.Rewards, d.Ledger, log.Named("submissions"))
	d.Health = health.NewChecker(db, cfg.Database.Dir,
		parseDuration(cfg.Health.Interval, health.DefaultInterval), log.Named("health"))

	d.Server = api.NewServer(api.Services{
		Submissions: d.Submissions,
		Profiles:    d.Profiles,
		Ledger:      d.Ledger,
		Rewards:     d.Rewards,
		Withdrawals: d.Withdrawals,
		Health:      d.Health,
	}, api.Options{
		CORSOrigins:    cfg.API.CORSOrigins,
		RequestTimeout: parseDuration(cfg.API.RequestTimeout, 30*time.Second),
		Metrics:        cfg.Telemetry.Prometheus,
	}, log.Named("api"))

	return d, nil
}

// Addr is the listen address from the [api] section.
func (d *Daemon) Addr() string {
	return fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
}

// Serve runs the HTTP server and the health loop until ctx is cancelled or
// the process receives SIGINT/SIGTERM, then shuts both down.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:         d.Addr(),
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	g.Go(func() error {
		d.Log.Info("kudimu serving",
			zap.String("addr", "http://"+httpServer.Addr),
			zap.Bool("metrics", d.Config.Telemetry.Prometheus),
			zap.String("data_dir", d.Config.Database.Dir),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		d.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the database and flushes the logger.
func (d *Daemon) Close() {
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Log.Warn("close database", zap.Error(err))
		}
	}
	_ = d.Log.Sync()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
