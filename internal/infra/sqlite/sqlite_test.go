package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, rep int, balance string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:         uuid.NewString(),
		Name:       "Ana",
		Reputation: rep,
		Balance:    decimal.RequireFromString(balance),
		Active:     true,
	}
	require.NoError(t, db.InsertUser(context.Background(), u))
	return u
}

func seedCampaign(t *testing.T, db *DB, reward string, status domain.CampaignStatus) *domain.Campaign {
	t.Helper()
	c := &domain.Campaign{
		ID:                uuid.NewString(),
		Title:             "Mobilidade urbana",
		RewardPerResponse: decimal.RequireFromString(reward),
		TargetCount:       100,
		Status:            status,
	}
	require.NoError(t, db.InsertCampaign(context.Background(), *c))
	return c
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Join(dir, "kudimu.db"))
	assert.NoError(t, err, "kudimu.db should exist")
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping())
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	u := &domain.User{ID: "u-1", Active: true}
	require.NoError(t, db.InsertUser(context.Background(), u))
	require.NoError(t, db.Close())

	db2, err := Open(dir)
	require.NoError(t, err)
	defer db2.Close()
	got, err := db2.GetUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seq)
}

// ─── Users ──────────────────────────────────────────────────────────────────

func TestUsers_SequentialIDs(t *testing.T) {
	db := newTestDB(t)
	a := seedUser(t, db, 0, "0")
	b := seedUser(t, db, 0, "0")
	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
}

func TestUsers_GetMissing(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUsers_AddReputationUnclamped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 3, "0")

	rep, err := db.AddReputation(ctx, u.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, -2, rep)

	_, err = db.AddReputation(ctx, "nobody", 10)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUsers_CreditAndDebit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "10.50")

	before, after, err := db.CreditBalance(ctx, u.ID, decimal.RequireFromString("4.25"))
	require.NoError(t, err)
	assert.True(t, before.Equal(decimal.RequireFromString("10.50")))
	assert.True(t, after.Equal(decimal.RequireFromString("14.75")))

	before, after, err = db.DebitBalance(ctx, u.ID, decimal.RequireFromString("14.75"))
	require.NoError(t, err)
	assert.True(t, before.Equal(decimal.RequireFromString("14.75")))
	assert.True(t, after.IsZero())

	_, _, err = db.DebitBalance(ctx, u.ID, decimal.RequireFromString("0.01"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, _, err = db.DebitBalance(ctx, "nobody", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUsers_RankUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	low := seedUser(t, db, 10, "0")
	high := seedUser(t, db, 400, "0")
	tieRich := seedUser(t, db, 150, "90")
	tiePoor := seedUser(t, db, 150, "5")
	inactive := seedUser(t, db, 999, "0")
	require.NoError(t, db.SetUserActive(ctx, inactive.ID, false))

	users, err := db.RankUsers(ctx, 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, users, 4)
	assert.Equal(t, []string{high.ID, tieRich.ID, tiePoor.ID, low.ID},
		[]string{users[0].ID, users[1].ID, users[2].ID, users[3].ID})

	now := time.Now()
	require.NoError(t, db.TouchUser(ctx, low.ID, now))
	recent, err := db.RankUsers(ctx, 10, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, low.ID, recent[0].ID)
}

// ─── Answers & Rewards ──────────────────────────────────────────────────────

func TestAnswers_DuplicateIsConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")
	c := seedCampaign(t, db, "100", domain.CampaignActive)

	a := domain.Answer{ID: "a1", UserID: u.ID, CampaignID: c.ID, QuestionID: "q1", Response: "sim", Validated: true, ResponseTime: 30}
	require.NoError(t, db.InsertAnswer(ctx, a))

	a.ID = "a2"
	err := db.InsertAnswer(ctx, a)
	assert.ErrorIs(t, err, domain.ErrAlreadyAnswered)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	done, err := db.HasAnswered(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestAnswers_ValidatedElsewhere(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")
	c1 := seedCampaign(t, db, "100", domain.CampaignActive)
	c2 := seedCampaign(t, db, "100", domain.CampaignActive)

	require.NoError(t, db.InsertAnswer(ctx, domain.Answer{ID: "a1", UserID: u.ID, CampaignID: c1.ID, QuestionID: "q1", Response: "sim", Validated: true, ResponseTime: 30}))

	other, err := db.HasValidatedCampaignOtherThan(ctx, u.ID, c1.ID)
	require.NoError(t, err)
	assert.False(t, other)

	other, err = db.HasValidatedCampaignOtherThan(ctx, u.ID, c2.ID)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestRewards_OnePerCampaign(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")
	c := seedCampaign(t, db, "100", domain.CampaignActive)

	r := domain.Reward{ID: "r1", UserID: u.ID, CampaignID: c.ID, Value: decimal.NewFromInt(105),
		Type: domain.RewardTypePoints, Status: domain.RewardStatusPaid}
	require.NoError(t, db.InsertReward(ctx, r))
	r.ID = "r2"
	assert.ErrorIs(t, db.InsertReward(ctx, r), domain.ErrConflict)

	list, err := db.ListRewards(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Value.Equal(decimal.NewFromInt(105)))
}

// ─── Transactions ───────────────────────────────────────────────────────────

func TestTransactions_FinalizeOnlyPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")

	tx := domain.PaymentTransaction{
		ID: "t1", UserID: u.ID, Type: domain.TxWithdrawal, Method: "mobile_money",
		Amount: decimal.NewFromInt(2000), BalanceBefore: decimal.NewFromInt(5000),
		BalanceAfter: decimal.NewFromInt(3000), Status: domain.TxPending,
	}
	require.NoError(t, db.InsertTransaction(ctx, tx))

	fin := Finalization{Status: domain.TxCompleted, ExternalRef: "ref-1", ProcessedBy: "admin", ProcessedAt: time.Now()}
	require.NoError(t, db.FinalizeTransaction(ctx, "t1", fin))
	assert.ErrorIs(t, db.FinalizeTransaction(ctx, "t1", fin), domain.ErrTransactionProcessed)
	assert.ErrorIs(t, db.FinalizeTransaction(ctx, "missing", fin), domain.ErrTransactionNotFound)

	got, err := db.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TxCompleted, got.Status)
	assert.Equal(t, "ref-1", got.ExternalRef)
	assert.False(t, got.ProcessedAt.IsZero())
}

func TestTransactions_LastWithdrawalSkipsCancelled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")

	at, err := db.LastWithdrawalAt(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	old := time.Now().Add(-72 * time.Hour).Truncate(time.Second)
	require.NoError(t, db.InsertTransaction(ctx, domain.PaymentTransaction{
		ID: "t-old", UserID: u.ID, Type: domain.TxWithdrawal, Amount: decimal.NewFromInt(1),
		Status: domain.TxError, CreatedAt: old,
	}))
	require.NoError(t, db.InsertTransaction(ctx, domain.PaymentTransaction{
		ID: "t-new", UserID: u.ID, Type: domain.TxWithdrawal, Amount: decimal.NewFromInt(1),
		Status: domain.TxCancelled, CreatedAt: time.Now(),
	}))

	at, err = db.LastWithdrawalAt(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, at.Equal(old), "got %v want %v", at, old)
}

func TestTransactions_LedgerBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")

	insert := func(id string, typ domain.TxType, status domain.TxStatus, amount int64) {
		require.NoError(t, db.InsertTransaction(ctx, domain.PaymentTransaction{
			ID: id, UserID: u.ID, Type: typ, Status: status, Amount: decimal.NewFromInt(amount),
		}))
	}
	insert("c1", domain.TxReward, domain.TxCompleted, 500)
	insert("w1", domain.TxWithdrawal, domain.TxPending, 100)
	insert("w2", domain.TxWithdrawal, domain.TxCompleted, 50)
	insert("w3", domain.TxWithdrawal, domain.TxCancelled, 300)

	bal, err := db.LedgerBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(350)), "got %s", bal)

	n, sum, err := db.WithdrawalTotals(ctx, domain.TxPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, sum.Equal(decimal.NewFromInt(100)))
}

// ─── Activity, Settings, Stats ──────────────────────────────────────────────

func TestActivity_AppendAndCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AppendActivity(ctx, domain.ActivityEntry{
		UserID: "u1", Action: domain.LogReputationChanged,
		Details: map[string]any{"acao": string(domain.ActionInviteAccepted), "pontos": 25},
	}))
	require.NoError(t, db.AppendActivity(ctx, domain.ActivityEntry{
		UserID: "u1", Action: domain.LogSubmissionSent,
	}))

	n, err := db.CountReputationEvents(ctx, "u1", domain.ActionInviteAccepted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := db.ListActivity(ctx, "u1", domain.LogReputationChanged, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.ActionInviteAccepted), entries[0].Details["acao"])
}

func TestSettings_SeedDoesNotOverwrite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ws, err := db.GetWithdrawalSettings(ctx)
	require.NoError(t, err)
	assert.True(t, ws.MinAmount.IsZero())

	require.NoError(t, db.SeedWithdrawalSettings(ctx, domain.WithdrawalSettings{MinAmount: decimal.NewFromInt(500), MinDaysBetween: 7, ProcessingHours: 48}))
	require.NoError(t, db.SeedWithdrawalSettings(ctx, domain.WithdrawalSettings{MinAmount: decimal.NewFromInt(1), MinDaysBetween: 1, ProcessingHours: 1}))

	ws, err = db.GetWithdrawalSettings(ctx)
	require.NoError(t, err)
	assert.True(t, ws.MinAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 7, ws.MinDaysBetween)

	require.NoError(t, db.PutWithdrawalSettings(ctx, domain.WithdrawalSettings{MinAmount: decimal.NewFromInt(100), MinDaysBetween: 3, ProcessingHours: 24}))
	ws, err = db.GetWithdrawalSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ws.MinDaysBetween)
	assert.Equal(t, 24, ws.ProcessingHours)
}

func TestStats_UserAnswerStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")
	c1 := seedCampaign(t, db, "100", domain.CampaignActive)
	c2 := seedCampaign(t, db, "100", domain.CampaignActive)

	long := "Uso o autocarro todos os dias para ir ao trabalho e a viagem demora quase duas horas por causa do trânsito na cidade."
	rows := []domain.Answer{
		{ID: "a1", UserID: u.ID, CampaignID: c1.ID, QuestionID: "q1", Response: long, Validated: true, Detailed: true, ResponseTime: 300},
		{ID: "a2", UserID: u.ID, CampaignID: c1.ID, QuestionID: "q2", Response: "sim", Validated: true, ResponseTime: 30},
		{ID: "a3", UserID: u.ID, CampaignID: c2.ID, QuestionID: "q1", Response: "ok", Validated: false, ResponseTime: 10},
	}
	for _, a := range rows {
		require.NoError(t, db.InsertAnswer(ctx, a))
	}

	st, err := db.UserAnswerStats(ctx, u.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, AnswerStats{
		CampaignsCompleted: 1,
		TotalAnswers:       3,
		AcceptedAnswers:    2,
		RejectedAnswers:    1,
		DetailedAnswers:    1,
		FastAnswers:        1,
	}, st)

	days, err := db.ActiveDays(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Len(t, days, 1)
}

func TestStats_DetailedCountsOnlyFlaggedAnswers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")
	c := seedCampaign(t, db, "100", domain.CampaignActive)

	padded := "\n\t" + strings.Repeat("Viana ", 10) + strings.Repeat("\t\n", 40)
	structured := `{"opcoes":["taxi","autocarro","candongueiro","comboio","mota"],"comentario":"depende muito do dia e da hora"}`
	require.Greater(t, len(padded), 100)
	require.Greater(t, len(structured), 100)

	for _, a := range []domain.Answer{
		{ID: "p1", UserID: u.ID, CampaignID: c.ID, QuestionID: "q1", Response: padded, Validated: true, ResponseTime: 300},
		{ID: "s1", UserID: u.ID, CampaignID: c.ID, QuestionID: "q2", Response: structured, Validated: true, ResponseTime: 300},
	} {
		require.NoError(t, db.InsertAnswer(ctx, a))
	}

	st, err := db.UserAnswerStats(ctx, u.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, 2, st.AcceptedAnswers)
	assert.Equal(t, 0, st.DetailedAnswers)

	got, err := db.GetAnswer(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, got.Detailed)
}

// ─── Transactions scope ─────────────────────────────────────────────────────

func TestInTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, 0, "0")
	boom := errors.New("boom")

	err := db.InTx(ctx, func(s *Store) error {
		if _, err := s.AddReputation(ctx, u.ID, 50); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Reputation)

	require.NoError(t, db.InTx(ctx, func(s *Store) error {
		_, err := s.AddReputation(ctx, u.ID, 50)
		return err
	}))
	got, err = db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Reputation)
}
