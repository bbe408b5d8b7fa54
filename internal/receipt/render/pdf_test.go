package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tryon/internal/receipt/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFRendererProducesDocument(t *testing.T) {
	out, err := NewPDFRenderer().Render(context.Background(), domain.Data{
		ReceiptNumber: "01HRZ8J3T2ZP4C5WQ2M0X9V7KD",
		PaidAt:        time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		BillToName:    "alice",
		BillToEmail:   "alice@example.com",
		Description:   "Purchase of 100 credits",
		Credits:       100,
		Amount:        decimal.RequireFromString("12.50"),
		Currency:      "usd",
		Provider:      "stripe",
		PaymentRef:    "cs_test_123",
		IssuerName:    "tryon",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$12.50", formatMoney(decimal.RequireFromString("12.5"), "usd"))
	assert.Equal(t, "IDR 15000.00", formatMoney(decimal.NewFromInt(15000), "idr"))
	assert.Equal(t, "$0.13", formatMoney(decimal.RequireFromString("0.125"), ""))
}
