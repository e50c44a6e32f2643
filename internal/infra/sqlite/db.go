// Package sqlite provides SQLite-based persistent storage for Kudimu.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store runs queries against either the database or one open transaction.
// Every repository method lives on Store so the same code serves both.
type Store struct {
	q querier
}

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	*Store
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/kudimu.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "kudimu.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{Store: &Store{q: db}, db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// PingContext checks database connectivity within ctx.
func (d *DB) PingContext(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// InTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise. fn must only use the Store it is
// given: the pool holds a single connection.
func (d *DB) InTx(ctx context.Context, fn func(*Store) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Users: seq is the public sequential id, id the opaque identifier.
		`CREATE TABLE IF NOT EXISTS users (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT NOT NULL UNIQUE,
			name           TEXT NOT NULL DEFAULT '',
			email          TEXT NOT NULL DEFAULT '',
			reputation     INTEGER NOT NULL DEFAULT 0,
			balance_cents  INTEGER NOT NULL DEFAULT 0,
			active         BOOLEAN NOT NULL DEFAULT 1,
			created_at     INTEGER NOT NULL,
			last_active_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_ranking ON users(reputation DESC, balance_cents DESC)`,

		// Campaigns and their questions
		`CREATE TABLE IF NOT EXISTS campaigns (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			reward_cents  INTEGER NOT NULL,
			target_count  INTEGER NOT NULL DEFAULT 0,
			current_count INTEGER NOT NULL DEFAULT 0,
			status        TEXT NOT NULL DEFAULT 'pendente',
			created_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id          TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL REFERENCES campaigns(id),
			text        TEXT NOT NULL,
			kind        TEXT NOT NULL DEFAULT 'texto',
			position    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_campaign ON questions(campaign_id, position)`,

		// Answers: one row per (user, campaign, question)
		`CREATE TABLE IF NOT EXISTS answers (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			campaign_id   TEXT NOT NULL REFERENCES campaigns(id),
			question_id   TEXT NOT NULL,
			response      TEXT NOT NULL,
			validated     BOOLEAN NOT NULL,
			detailed      BOOLEAN NOT NULL DEFAULT 0,
			response_time INTEGER NOT NULL,
			answered_at   INTEGER NOT NULL,
			UNIQUE(user_id, campaign_id, question_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_user ON answers(user_id, validated)`,

		// Rewards: one per accepted submission
		`CREATE TABLE IF NOT EXISTS rewards (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			campaign_id TEXT NOT NULL REFERENCES campaigns(id),
			value_cents INTEGER NOT NULL,
			type        TEXT NOT NULL,
			status      TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			UNIQUE(user_id, campaign_id)
		)`,

		// Payment transactions: credits and withdrawals
		`CREATE TABLE IF NOT EXISTS payment_transactions (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL REFERENCES users(id),
			type                 TEXT NOT NULL,
			method               TEXT NOT NULL DEFAULT '',
			operator             TEXT NOT NULL DEFAULT '',
			destination          TEXT NOT NULL DEFAULT '',
			amount_cents         INTEGER NOT NULL,
			balance_before_cents INTEGER NOT NULL,
			balance_after_cents  INTEGER NOT NULL,
			status               TEXT NOT NULL,
			external_ref         TEXT NOT NULL DEFAULT '',
			error_reason         TEXT NOT NULL DEFAULT '',
			processed_by         TEXT NOT NULL DEFAULT '',
			campaign_id          TEXT NOT NULL DEFAULT '',
			details              TEXT,
			created_at           INTEGER NOT NULL,
			processed_at         INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user ON payment_transactions(user_id, type, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_status ON payment_transactions(type, status)`,

		// Append-only audit trail
		`CREATE TABLE IF NOT EXISTS activity_logs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			action     TEXT NOT NULL,
			details    TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_user ON activity_logs(user_id, action)`,

		// Single configuration row
		`CREATE TABLE IF NOT EXISTS withdrawal_settings (
			id               INTEGER PRIMARY KEY CHECK (id = 1),
			min_amount_cents INTEGER NOT NULL,
			min_days_between INTEGER NOT NULL,
			processing_hours INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullableUnix(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0)
}

// toCents converts a currency amount to integer cents, truncating
// sub-cent precision.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// fromCents is the inverse of toCents.
func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// IsUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	msg := se.Error()
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "PRIMARY KEY")
}

// notFound maps sql.ErrNoRows to the given domain error.
func notFound(err error, nf *domain.Error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nf
	}
	return err
}
