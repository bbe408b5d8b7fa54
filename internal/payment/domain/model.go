package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRecord is the audit trail of a verified webhook delivery.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:1"`
	ProviderEventID string         `json:"provider_event_id" gorm:"column:provider_event_id;type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:2"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	AccountID       *snowflake.ID  `json:"account_id" gorm:"index"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:json;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted = "checkout_completed"
)

const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// PaymentEvent is the canonical confirmation parsed by adapters.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	AccountID       snowflake.ID
	// Username is used to resolve the account when AccountID is not set.
	Username   string
	PaymentRef string
	ChargeRef  string
	Amount     decimal.Decimal
	Currency   string
	Credits    int64
	OccurredAt time.Time
	RawPayload []byte
}

type AdapterConfig struct {
	Provider string
	Config   map[string]any
}

type PaymentAdapter interface {
	// Verify authenticates the delivery before anything is parsed.
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

type Service interface {
	// IngestWebhook returns the outcome label. Errors that should not be
	// acknowledged are returned; duplicates and ignored events are not errors.
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (string, error)
}

type Repository interface {
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	// InsertEvent reports false when the delivery was already stored.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
