package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/tryon/internal/auth/domain"
	"github.com/smallbiznis/tryon/internal/config"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	"github.com/smallbiznis/tryon/internal/receipt/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLedger struct {
	ledgerdomain.Service
	purchase *ledgerdomain.CreditPurchase
}

func (l stubLedger) GetPurchase(_ context.Context, accountID, purchaseID snowflake.ID) (*ledgerdomain.CreditPurchase, error) {
	if l.purchase == nil || l.purchase.AccountID != accountID || l.purchase.ID != purchaseID {
		return nil, ledgerdomain.ErrPurchaseNotFound
	}
	return l.purchase, nil
}

type stubAccounts struct {
	authdomain.Service
}

func (stubAccounts) GetAccount(_ context.Context, id snowflake.ID) (*authdomain.Account, error) {
	return &authdomain.Account{ID: id, Username: "alice", Email: "alice@example.com"}, nil
}

type captureRenderer struct {
	got domain.Data
}

func (r *captureRenderer) Render(_ context.Context, data domain.Data) ([]byte, error) {
	r.got = data
	return []byte("%PDF-1.3"), nil
}

func TestReceiptRendersPurchase(t *testing.T) {
	renderer := &captureRenderer{}
	svc := NewService(Params{
		Log: zap.NewNop(),
		Cfg: config.Config{AppName: "tryon", PublicBaseURL: "https://app.example.com"},
		Ledger: stubLedger{purchase: &ledgerdomain.CreditPurchase{
			ID:            5,
			AccountID:     1,
			Provider:      ledgerdomain.ProviderStripe,
			PaymentRef:    "cs_1",
			Amount:        decimal.RequireFromString("12.50"),
			Currency:      "usd",
			Credits:       100,
			Description:   "Purchase of 100 credits",
			ReceiptNumber: "01HRZ8J3T2ZP4C5WQ2M0X9V7KD",
			CreatedAt:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		}},
		Accounts: stubAccounts{},
		Renderer: renderer,
	})

	doc, err := svc.Receipt(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "receipt-01HRZ8J3T2ZP4C5WQ2M0X9V7KD.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "alice@example.com", renderer.got.BillToEmail)
	assert.Equal(t, int64(100), renderer.got.Credits)

	_, err = svc.Receipt(context.Background(), 2, 5)
	assert.ErrorIs(t, err, ledgerdomain.ErrPurchaseNotFound)
}
