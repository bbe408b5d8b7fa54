package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	ActionGenerateImage    = "generate_image"
	ActionManualAdjustment = "manual_adjustment"

	ProviderStripe = "stripe"
	ProviderManual = "manual"

	PurchaseStatusSucceeded = "succeeded"
)

// UsageEvent records one debit against an account balance. Rows are
// append-only.
type UsageEvent struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID   snowflake.ID `gorm:"column:account_id;not null;index:ix_usage_events_account_time,priority:1" json:"accountId"`
	CreditsUsed int64        `gorm:"column:credits_used;not null" json:"creditsUsed"`
	Action      string       `gorm:"type:text;not null" json:"action"`
	Reference   string       `gorm:"type:text" json:"reference,omitempty"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null;index:ix_usage_events_account_time,priority:2" json:"timestamp"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }

// CreditPurchase records credits added to an account. PaymentRef is unique
// so a confirmation can be applied at most once.
type CreditPurchase struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	AccountID     snowflake.ID    `gorm:"column:account_id;not null;index:ix_credit_purchases_account_time,priority:1" json:"accountId"`
	Provider      string          `gorm:"type:text;not null" json:"provider"`
	PaymentRef    string          `gorm:"column:payment_ref;type:text;not null;uniqueIndex" json:"paymentRef"`
	ChargeRef     string          `gorm:"column:charge_ref;type:text" json:"chargeRef,omitempty"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"amount"`
	Currency      string          `gorm:"type:text;not null" json:"currency"`
	Credits       int64           `gorm:"not null" json:"credits"`
	Status        string          `gorm:"type:text;not null" json:"status"`
	Description   string          `gorm:"type:text" json:"description"`
	ReceiptNumber string          `gorm:"column:receipt_number;type:text;not null;uniqueIndex" json:"receiptNumber"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null;index:ix_credit_purchases_account_time,priority:2" json:"timestamp"`
}

// TableName sets the database table name.
func (CreditPurchase) TableName() string { return "credit_purchases" }

// Reconciliation compares the stored balance with the one derived from the
// event log.
type Reconciliation struct {
	AccountID snowflake.ID `json:"accountId"`
	Initial   int64        `json:"initial"`
	Purchased int64        `json:"purchased"`
	Used      int64        `json:"used"`
	Derived   int64        `json:"derived"`
	Stored    int64        `json:"stored"`
}

// Consistent reports whether the stored balance matches the event log.
func (r Reconciliation) Consistent() bool {
	return r.Stored == r.Derived
}

// Drift is stored minus derived.
func (r Reconciliation) Drift() int64 {
	return r.Stored - r.Derived
}
