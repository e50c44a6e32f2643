package credit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newUser(t *testing.T, db *sqlite.DB, rep int) string {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Name: "Nzinga", Reputation: rep, Active: true}
	require.NoError(t, db.InsertUser(context.Background(), u))
	return u.ID
}

func fund(t *testing.T, db *sqlite.DB, userID, amount string) {
	t.Helper()
	_, err := NewRewardEngine(db, zap.NewNop()).Credit(context.Background(), CreditRequest{
		UserID: userID, Amount: dec(amount), AdminID: "admin", Reason: "test funding",
	})
	require.NoError(t, err)
}

func setSettings(t *testing.T, db *sqlite.DB, min string, days int) {
	t.Helper()
	require.NoError(t, db.PutWithdrawalSettings(context.Background(), domain.WithdrawalSettings{
		MinAmount: dec(min), MinDaysBetween: days, ProcessingHours: 48,
	}))
}

func balanceOf(t *testing.T, db *sqlite.DB, userID string) decimal.Decimal {
	t.Helper()
	u, err := db.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

func assertConsistent(t *testing.T, db *sqlite.DB, userID string) {
	t.Helper()
	check, err := NewRewardEngine(db, zap.NewNop()).VerifyBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, check.Consistent, "stored %s ledger %s", check.Stored, check.FromLedger)
}

// ─── RewardEngine ───────────────────────────────────────────────────────────

func TestRewardEngine_SettleSubmission(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 150)
	camp := domain.Campaign{ID: "c1", Title: "Transporte", RewardPerResponse: dec("100"), TargetCount: 10, Status: domain.CampaignActive}
	require.NoError(t, db.InsertCampaign(ctx, camp))

	engine := NewRewardEngine(db, zap.NewNop())
	var st Settlement
	err := db.InTx(ctx, func(s *sqlite.Store) error {
		var err error
		st, err = engine.SettleSubmission(ctx, s, userID, "c1", 3)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "105", st.RewardAmount.String())
	assert.Equal(t, "5", st.BonusAmount.String())
	assert.True(t, balanceOf(t, db, userID).Equal(dec("105")))

	c, err := db.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.CurrentCount)

	rewards, err := db.ListRewards(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, domain.RewardStatusPaid, rewards[0].Status)
	assertConsistent(t, db, userID)
}

func TestRewardEngine_SettleRollsBackTogether(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	require.NoError(t, db.InsertCampaign(ctx, domain.Campaign{ID: "c1", Title: "x", RewardPerResponse: dec("50"), Status: domain.CampaignActive}))

	engine := NewRewardEngine(db, zap.NewNop())
	err := db.InTx(ctx, func(s *sqlite.Store) error {
		if _, err := engine.SettleSubmission(ctx, s, userID, "c1", 1); err != nil {
			return err
		}
		// second settlement for the same campaign violates the reward uniqueness
		_, err := engine.SettleSubmission(ctx, s, userID, "c1", 1)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.True(t, balanceOf(t, db, userID).IsZero())
	c, err := db.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, c.CurrentCount)
}

func TestRewardEngine_Credit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	engine := NewRewardEngine(db, zap.NewNop())

	tx, err := engine.Credit(ctx, CreditRequest{UserID: userID, Amount: dec("250.75"), AdminID: "adm-1", Reason: "bónus"})
	require.NoError(t, err)
	assert.Equal(t, domain.TxReward, tx.Type)
	assert.Equal(t, domain.TxCompleted, tx.Status)
	assert.True(t, tx.BalanceBefore.IsZero())
	assert.True(t, tx.BalanceAfter.Equal(dec("250.75")))

	_, err = engine.Credit(ctx, CreditRequest{UserID: userID, Amount: dec("0")})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = engine.Credit(ctx, CreditRequest{UserID: "ghost", Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	h, err := engine.History(ctx, userID, 10)
	require.NoError(t, err)
	assert.True(t, h.Balance.Equal(dec("250.75")))
	assert.Len(t, h.Transactions, 1)
	assert.Empty(t, h.Rewards)

	entries, err := db.ListActivity(ctx, userID, domain.LogRewardCredited, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assertConsistent(t, db, userID)
}

func TestRewardEngine_CreditRejectsSubCent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	engine := NewRewardEngine(db, zap.NewNop())

	_, err := engine.Credit(ctx, CreditRequest{UserID: userID, Amount: dec("0.009")})
	assert.ErrorIs(t, err, domain.ErrAmountPrecision)
	assert.Equal(t, domain.KindValidationFailed, domain.KindOf(err))

	h, err := engine.History(ctx, userID, 10)
	require.NoError(t, err)
	assert.True(t, h.Balance.IsZero())
	assert.Empty(t, h.Transactions)

	// trailing zeros are still whole cents
	_, err = engine.Credit(ctx, CreditRequest{UserID: userID, Amount: dec("12.500")})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, db, userID).Equal(dec("12.5")))
}

// ─── WithdrawalProcessor ────────────────────────────────────────────────────

func TestWithdrawal_BelowMinimumLeavesBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	fund(t, db, userID, "5000")
	setSettings(t, db, "1000", 7)

	_, err := NewWithdrawalProcessor(db, zap.NewNop()).Request(ctx, WithdrawalRequest{
		UserID: userID, Amount: dec("999.99"), Method: "mobile_money",
	})
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
	assert.Equal(t, domain.KindValidationFailed, domain.KindOf(err))
	assert.True(t, balanceOf(t, db, userID).Equal(dec("5000")))
}

func TestWithdrawal_InsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	fund(t, db, userID, "500")
	setSettings(t, db, "100", 0)

	_, err := NewWithdrawalProcessor(db, zap.NewNop()).Request(ctx, WithdrawalRequest{
		UserID: userID, Amount: dec("501"), Method: "bank",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, balanceOf(t, db, userID).Equal(dec("500")))
}

func TestWithdrawal_RejectsBadInput(t *testing.T) {
	db := newTestDB(t)
	p := NewWithdrawalProcessor(db, zap.NewNop())

	_, err := p.Request(context.Background(), WithdrawalRequest{UserID: "u", Amount: dec("-1"), Method: "bank"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = p.Request(context.Background(), WithdrawalRequest{UserID: "u", Amount: dec("10"), Method: " "})
	assert.ErrorIs(t, err, domain.ErrMissingMethod)
	_, err = p.Request(context.Background(), WithdrawalRequest{UserID: "ghost", Amount: dec("10"), Method: "bank"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestWithdrawal_RejectsSubCent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	fund(t, db, userID, "5000")
	setSettings(t, db, "0", 7)
	p := NewWithdrawalProcessor(db, zap.NewNop())

	_, err := p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("0.001"), Method: "bank"})
	assert.ErrorIs(t, err, domain.ErrAmountPrecision)
	_, err = p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("1000.005"), Method: "bank"})
	assert.ErrorIs(t, err, domain.ErrAmountPrecision)

	q, err := p.Pending(ctx, domain.TxPending, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Count)

	// a refused request must not open the frequency window
	receipt, err := p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("1000.50"), Method: "bank"})
	require.NoError(t, err)
	stored, err := db.GetTransaction(ctx, receipt.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(receipt.Transaction.Amount), "stored %s receipt %s", stored.Amount, receipt.Transaction.Amount)
	assertConsistent(t, db, userID)
}

func TestWithdrawal_CancelRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	fund(t, db, userID, "3000")
	setSettings(t, db, "1000", 7)
	p := NewWithdrawalProcessor(db, zap.NewNop())

	before := balanceOf(t, db, userID)
	receipt, err := p.Request(ctx, WithdrawalRequest{
		UserID: userID, Amount: dec("2000"), Method: "dados_moveis", Operator: "Unitel", Destination: "923000000",
	})
	require.NoError(t, err)
	assert.Equal(t, 48, receipt.ProcessingHours)
	assert.Equal(t, domain.TxPending, receipt.Transaction.Status)
	assert.True(t, balanceOf(t, db, userID).Equal(dec("1000")))
	assertConsistent(t, db, userID)

	tx, err := p.Confirm(ctx, Confirmation{TransactionID: receipt.Transaction.ID, Status: domain.TxCancelled, AdminID: "adm"})
	require.NoError(t, err)
	assert.Equal(t, domain.TxCancelled, tx.Status)
	assert.True(t, balanceOf(t, db, userID).Equal(before), "balance must return exactly")
	assertConsistent(t, db, userID)

	_, err = p.Confirm(ctx, Confirmation{TransactionID: receipt.Transaction.ID, Status: domain.TxCompleted})
	assert.ErrorIs(t, err, domain.ErrTransactionProcessed)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	// a cancelled withdrawal does not start the frequency window
	_, err = p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("1000"), Method: "bank"})
	assert.NoError(t, err)
}

func TestWithdrawal_FrequencyWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	fund(t, db, userID, "10000")
	setSettings(t, db, "1000", 7)
	p := NewWithdrawalProcessor(db, zap.NewNop())

	first, err := p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("1000"), Method: "bank"})
	require.NoError(t, err)

	_, err = p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("1000"), Method: "bank"})
	assert.ErrorIs(t, err, domain.ErrWithdrawalTooSoon)

	// errored withdrawals still count toward the window
	_, err = p.Confirm(ctx, Confirmation{TransactionID: first.Transaction.ID, Status: domain.TxError, ErrorReason: "número inválido"})
	require.NoError(t, err)
	_, err = p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("1000"), Method: "bank"})
	assert.ErrorIs(t, err, domain.ErrWithdrawalTooSoon)

	p.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("1000"), Method: "bank"})
	assert.NoError(t, err)
	assertConsistent(t, db, userID)
}

func TestWithdrawal_ConfirmCompletedKeepsDebit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	fund(t, db, userID, "1500")
	setSettings(t, db, "500", 0)
	p := NewWithdrawalProcessor(db, zap.NewNop())

	r, err := p.Request(ctx, WithdrawalRequest{UserID: userID, Amount: dec("600"), Method: "bank"})
	require.NoError(t, err)

	q, err := p.Pending(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Count)
	assert.True(t, q.Total.Equal(dec("600")))

	tx, err := p.Confirm(ctx, Confirmation{TransactionID: r.Transaction.ID, Status: domain.TxCompleted, ExternalRef: "EMIS-77", AdminID: "adm"})
	require.NoError(t, err)
	assert.Equal(t, "EMIS-77", tx.ExternalRef)
	assert.True(t, balanceOf(t, db, userID).Equal(dec("900")))
	assertConsistent(t, db, userID)

	q, err = p.Pending(ctx, domain.TxPending, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Count)
	assert.Empty(t, q.Transactions)
}

func TestWithdrawal_ConfirmGuards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := newUser(t, db, 0)
	fund(t, db, userID, "100")
	p := NewWithdrawalProcessor(db, zap.NewNop())

	_, err := p.Confirm(ctx, Confirmation{TransactionID: "x", Status: domain.TxPending})
	assert.ErrorIs(t, err, domain.ErrInvalidConfirmStatus)

	_, err = p.Confirm(ctx, Confirmation{TransactionID: "missing", Status: domain.TxCompleted})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	h, err := NewRewardEngine(db, zap.NewNop()).History(ctx, userID, 1)
	require.NoError(t, err)
	require.Len(t, h.Transactions, 1)
	_, err = p.Confirm(ctx, Confirmation{TransactionID: h.Transactions[0].ID, Status: domain.TxCompleted})
	assert.ErrorIs(t, err, domain.ErrNotWithdrawal)
}

func TestWithdrawal_Settings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := NewWithdrawalProcessor(db, zap.NewNop())

	require.NoError(t, p.UpdateSettings(ctx, domain.WithdrawalSettings{MinAmount: dec("2000"), MinDaysBetween: 14, ProcessingHours: 72}))
	ws, err := p.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, ws.MinAmount.Equal(dec("2000")))
	assert.Equal(t, 14, ws.MinDaysBetween)

	assert.ErrorIs(t, p.UpdateSettings(ctx, domain.WithdrawalSettings{MinDaysBetween: -1}), domain.ErrInvalidSettings)
}
