package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Data is everything printed on a credit purchase receipt.
type Data struct {
	ReceiptNumber string
	PaidAt        time.Time
	BillToName    string
	BillToEmail   string
	Description   string
	Credits       int64
	Amount        decimal.Decimal
	Currency      string
	Provider      string
	PaymentRef    string
	IssuerName    string
	IssuerURL     string
}

type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Renderer interface {
	Render(ctx context.Context, data Data) ([]byte, error)
}

type Service interface {
	Receipt(ctx context.Context, accountID, purchaseID snowflake.ID) (*Document, error)
}

var ErrRenderFailed = errors.New("receipt_render_failed")
