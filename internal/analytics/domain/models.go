package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event types emitted by the embeddable widget.
const (
	EventTryOnSuccess  = "tryon_generation_success"
	EventError         = "error_event"
	EventWidgetOpened  = "widget_opened"
	EventPhotoUploaded = "photo_uploaded"
	EventPhotoCaptured = "photo_captured"
	EventProductViewed = "product_viewed"
)

const TopProductsLimit = 5

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

var (
	ErrInvalidPeriod    = errors.New("invalid_period")
	ErrInvalidDateRange = errors.New("invalid_date_range")
	ErrInvalidAccount   = errors.New("invalid_account")
	ErrInvalidEvent     = errors.New("invalid_event")
)

// ParsePeriod defaults to daily when raw is blank.
func ParsePeriod(raw string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PeriodDaily:
		return PeriodDaily, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	case PeriodMonthly:
		return PeriodMonthly, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// WidgetEvent is one analytics beacon sent by the widget.
type WidgetEvent struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID  snowflake.ID      `gorm:"column:account_id;not null;index:ix_widget_events_account_time,priority:1" json:"-"`
	Event      string            `gorm:"type:text;not null" json:"event"`
	ProductID  *string           `gorm:"column:product_id;type:text" json:"productId,omitempty"`
	VisitorID  *string           `gorm:"column:visitor_id;type:text" json:"visitorId,omitempty"`
	SessionID  *string           `gorm:"column:session_id;type:text" json:"sessionVisitorId,omitempty"`
	EventData  datatypes.JSONMap `gorm:"column:event_data;type:json" json:"eventData,omitempty"`
	OccurredAt time.Time         `gorm:"column:occurred_at;not null;index:ix_widget_events_account_time,priority:2" json:"timestamp"`
	CreatedAt  time.Time         `gorm:"not null" json:"createdAt"`
}

func (WidgetEvent) TableName() string { return "widget_events" }

type Counts struct {
	TotalEvents    int64 `gorm:"column:total_events" json:"totalEvents"`
	TotalTryOns    int64 `gorm:"column:total_try_ons" json:"totalTryOns"`
	TotalErrors    int64 `gorm:"column:total_errors" json:"totalErrors"`
	WidgetOpens    int64 `gorm:"column:widget_opens" json:"widgetOpens"`
	UniqueVisitors int64 `gorm:"column:unique_visitors" json:"uniqueVisitors"`
	UniqueSessions int64 `gorm:"column:unique_sessions" json:"uniqueSessions"`
	PhotoUploads   int64 `gorm:"column:photo_uploads" json:"photoUploads"`
}

type KPIs struct {
	Counts
	Prev      Counts `json:"prev"`
	Start     string `json:"start"`
	End       string `json:"end"`
	PrevStart string `json:"prevStart"`
	PrevEnd   string `json:"prevEnd"`
}

type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Trends struct {
	TryOns []TrendPoint `json:"tryOns"`
}

type TopProduct struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Image     *string `json:"image"`
	Count     int64   `json:"count"`
}

type Summary struct {
	KPIs        KPIs         `json:"kpis"`
	Trends      Trends       `json:"trends"`
	TopProducts []TopProduct `json:"topProducts"`
	Period      Period       `json:"period"`
}

type ProductCount struct {
	ProductID string `gorm:"column:product_id"`
	Count     int64  `gorm:"column:count"`
}

type SummaryRequest struct {
	AccountID snowflake.ID
	Period    string
	Start     *time.Time
	End       *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *WidgetEvent) error
	Counts(ctx context.Context, db *gorm.DB, accountID snowflake.ID, start, end time.Time) (Counts, error)
	EventTimes(ctx context.Context, db *gorm.DB, accountID snowflake.ID, event string, start, end time.Time) ([]time.Time, error)
	TopProducts(ctx context.Context, db *gorm.DB, accountID snowflake.ID, start, end time.Time, limit int) ([]ProductCount, error)
}

type Service interface {
	// Ingest stores a raw widget beacon for the account the api key resolved to.
	Ingest(ctx context.Context, accountID snowflake.ID, payload map[string]any) (*WidgetEvent, error)
	Summary(ctx context.Context, req SummaryRequest) (*Summary, error)
}
