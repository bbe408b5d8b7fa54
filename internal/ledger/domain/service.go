package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	// Debit removes credits and appends one UsageEvent atomically.
	Debit(ctx context.Context, req DebitRequest) (*DebitResult, error)
	// Credit applies a confirmed payment exactly once per PaymentRef.
	Credit(ctx context.Context, req CreditRequest) (*CreditResult, error)
	// Grant adds credits outside of a payment provider.
	Grant(ctx context.Context, req GrantRequest) (*CreditResult, error)
	Balance(ctx context.Context, accountID snowflake.ID) (int64, error)
	Verify(ctx context.Context, accountID snowflake.ID) (*Reconciliation, error)
	VerifyAll(ctx context.Context) ([]Reconciliation, error)
	ListPurchases(ctx context.Context, accountID snowflake.ID, limit int) ([]CreditPurchase, error)
	GetPurchase(ctx context.Context, accountID, purchaseID snowflake.ID) (*CreditPurchase, error)
}

type DebitRequest struct {
	AccountID snowflake.ID
	Credits   int64
	Action    string
	Reference string
}

type DebitResult struct {
	Event   UsageEvent
	Balance int64
}

type CreditRequest struct {
	AccountID   snowflake.ID
	Provider    string
	PaymentRef  string
	ChargeRef   string
	Amount      decimal.Decimal
	Currency    string
	Credits     int64
	Description string
}

type GrantRequest struct {
	AccountID snowflake.ID
	Credits   int64
	Note      string
	// ActorID identifies the operator for the audit trail.
	ActorID string
}

type CreditResult struct {
	Purchase CreditPurchase
	Balance  int64
}
