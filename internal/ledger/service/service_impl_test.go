package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	auditrepo "github.com/smallbiznis/tryon/internal/audit/repository"
	auditservice "github.com/smallbiznis/tryon/internal/audit/service"
	authdomain "github.com/smallbiznis/tryon/internal/auth/domain"
	"github.com/smallbiznis/tryon/internal/clock"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	"github.com/smallbiznis/tryon/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   ledgerdomain.Service
	node  *snowflake.Node
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest(
		&authdomain.Account{},
		&ledgerdomain.UsageEvent{},
		&ledgerdomain.CreditPurchase{},
		&auditdomain.AuditLog{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
		Clock: clk,
	})

	svc := NewService(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		AuditSvc: audit,
	})
	return &fixture{db: conn, svc: svc, node: node, clock: clk}
}

func (f *fixture) account(t *testing.T, initial int64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := f.clock.Now()
	require.NoError(t, f.db.Create(&authdomain.Account{
		ID:             id,
		Email:          fmt.Sprintf("%s@example.com", id),
		Username:       "user" + id.String(),
		PasswordHash:   "x",
		Role:           authdomain.RoleOwner,
		InitialCredits: initial,
		Credits:        initial,
		CreatedAt:      now,
		UpdatedAt:      now,
	}).Error)
	return id
}

func (f *fixture) countEvents(t *testing.T, accountID snowflake.ID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&ledgerdomain.UsageEvent{}).Where("account_id = ?", accountID).Count(&n).Error)
	return n
}

func TestDebitAppendsEventAndReducesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 10)

	res, err := f.svc.Debit(ctx, ledgerdomain.DebitRequest{
		AccountID: accountID,
		Credits:   3,
		Action:    ledgerdomain.ActionGenerateImage,
		Reference: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Balance)
	assert.Equal(t, int64(3), res.Event.CreditsUsed)
	assert.Equal(t, "req-1", res.Event.Reference)
	assert.Equal(t, f.clock.Now(), res.Event.CreatedAt)

	balance, err := f.svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance)
	assert.Equal(t, int64(1), f.countEvents(t, accountID))
}

func TestDebitInsufficientCreditsLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 3)

	_, err := f.svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: accountID, Credits: 5, Action: ledgerdomain.ActionGenerateImage})
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientCredits)

	balance, err := f.svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
	assert.Zero(t, f.countEvents(t, accountID))
}

func TestDebitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 3)

	_, err := f.svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: accountID, Credits: 0, Action: "x"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidCredits)
	_, err = f.svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: accountID, Credits: 1, Action: "  "})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAction)
	_, err = f.svc.Debit(ctx, ledgerdomain.DebitRequest{Credits: 1, Action: "x"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAccount)
	_, err = f.svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: f.node.Generate(), Credits: 1, Action: "x"})
	assert.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)
}

func TestCreditIsIdempotentPerPaymentRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 0)

	req := ledgerdomain.CreditRequest{
		AccountID:  accountID,
		Provider:   ledgerdomain.ProviderStripe,
		PaymentRef: "cs_test_123",
		ChargeRef:  "pi_123",
		Amount:     decimal.RequireFromString("10.00"),
		Currency:   "USD",
		Credits:    100,
	}
	res, err := f.svc.Credit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Balance)
	assert.Equal(t, "usd", res.Purchase.Currency)
	assert.Equal(t, "Purchase of 100 credits", res.Purchase.Description)
	assert.NotEmpty(t, res.Purchase.ReceiptNumber)

	_, err = f.svc.Credit(ctx, req)
	require.ErrorIs(t, err, ledgerdomain.ErrPaymentAlreadyApplied)

	balance, err := f.svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	var purchases int64
	require.NoError(t, f.db.Model(&ledgerdomain.CreditPurchase{}).Count(&purchases).Error)
	assert.Equal(t, int64(1), purchases)
}

func TestCreditUnknownAccountRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Credit(context.Background(), ledgerdomain.CreditRequest{
		AccountID:  f.node.Generate(),
		PaymentRef: "cs_orphan",
		Amount:     decimal.NewFromInt(5),
		Credits:    50,
	})
	require.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)

	var purchases int64
	require.NoError(t, f.db.Model(&ledgerdomain.CreditPurchase{}).Count(&purchases).Error)
	assert.Zero(t, purchases)
}

func TestCreditValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 0)

	_, err := f.svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: accountID, Credits: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidPaymentRef)
	_, err = f.svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: accountID, PaymentRef: "p", Credits: 0})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidCredits)
	_, err = f.svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: accountID, PaymentRef: "p", Credits: 1, Amount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
	_, err = f.svc.Credit(ctx, ledgerdomain.CreditRequest{AccountID: accountID, PaymentRef: "p", Credits: 1, Currency: "dollars"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidCurrency)
}

func TestLedgerIdentityHoldsOverRandomSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 20)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		f.clock.Advance(time.Minute)
		if rng.Intn(3) == 0 {
			_, err := f.svc.Credit(ctx, ledgerdomain.CreditRequest{
				AccountID:  accountID,
				PaymentRef: fmt.Sprintf("pay_%d", i),
				Amount:     decimal.NewFromInt(int64(rng.Intn(50))),
				Credits:    int64(rng.Intn(20) + 1),
			})
			require.NoError(t, err)
			continue
		}
		_, err := f.svc.Debit(ctx, ledgerdomain.DebitRequest{
			AccountID: accountID,
			Credits:   int64(rng.Intn(8) + 1),
			Action:    ledgerdomain.ActionGenerateImage,
		})
		if err != nil {
			require.ErrorIs(t, err, ledgerdomain.ErrInsufficientCredits)
		}
	}

	rec, err := f.svc.Verify(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
	assert.Equal(t, rec.Initial+rec.Purchased-rec.Used, rec.Stored)
	assert.GreaterOrEqual(t, rec.Stored, int64(0))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: accountID, Credits: 1, Action: ledgerdomain.ActionGenerateImage})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientCredits)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	balance, err := f.svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Zero(t, balance)
	assert.Equal(t, int64(10), f.countEvents(t, accountID))
}

func TestVerifyReportsDriftWithoutRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 10)
	other := f.account(t, 4)

	_, err := f.svc.Debit(ctx, ledgerdomain.DebitRequest{AccountID: accountID, Credits: 2, Action: ledgerdomain.ActionGenerateImage})
	require.NoError(t, err)
	require.NoError(t, f.db.Exec("UPDATE accounts SET credits = credits + 7 WHERE id = ?", accountID).Error)

	rec, err := f.svc.Verify(ctx, accountID)
	require.ErrorIs(t, err, ledgerdomain.ErrLedgerInconsistency)
	require.NotNil(t, rec)
	assert.Equal(t, int64(8), rec.Derived)
	assert.Equal(t, int64(15), rec.Stored)
	assert.Equal(t, int64(7), rec.Drift())

	balance, err := f.svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)

	results, err := f.svc.VerifyAll(ctx)
	require.ErrorIs(t, err, ledgerdomain.ErrLedgerInconsistency)
	require.Len(t, results, 2)
	for _, r := range results {
		if r.AccountID == other {
			assert.True(t, r.Consistent())
		}
	}
}

func TestGrantWritesAuditLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 0)

	res, err := f.svc.Grant(ctx, ledgerdomain.GrantRequest{AccountID: accountID, Credits: 25, Note: "goodwill", ActorID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Balance)
	assert.Equal(t, ledgerdomain.ProviderManual, res.Purchase.Provider)
	assert.True(t, res.Purchase.Amount.IsZero())

	var logs []auditdomain.AuditLog
	require.NoError(t, f.db.Where("account_id = ?", accountID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "ledger.credits_granted", logs[0].Action)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, "admin-1", *logs[0].ActorID)

	rec, err := f.svc.Verify(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), rec.Purchased)
}

func TestListAndGetPurchases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accountID := f.account(t, 0)
	other := f.account(t, 0)

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Hour)
		_, err := f.svc.Credit(ctx, ledgerdomain.CreditRequest{
			AccountID:  accountID,
			PaymentRef: fmt.Sprintf("cs_%d", i),
			Amount:     decimal.NewFromInt(int64(i + 1)),
			Credits:    int64(10 * (i + 1)),
		})
		require.NoError(t, err)
	}

	purchases, err := f.svc.ListPurchases(ctx, accountID, 2)
	require.NoError(t, err)
	require.Len(t, purchases, 2)
	assert.Equal(t, "cs_2", purchases[0].PaymentRef)
	assert.Equal(t, "cs_1", purchases[1].PaymentRef)

	got, err := f.svc.GetPurchase(ctx, accountID, purchases[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Credits)

	_, err = f.svc.GetPurchase(ctx, other, purchases[0].ID)
	assert.ErrorIs(t, err, ledgerdomain.ErrPurchaseNotFound)
}
