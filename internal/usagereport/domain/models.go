package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

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
	ErrAccountNotFound  = errors.New("account_not_found")
)

// ParsePeriod defaults to monthly when raw is blank.
func ParsePeriod(raw string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PeriodMonthly:
		return PeriodMonthly, nil
	case PeriodDaily:
		return PeriodDaily, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	default:
		return "", ErrInvalidPeriod
	}
}

type UsageDelta struct {
	Timestamp time.Time
	Credits   int64
}

type PurchaseDelta struct {
	Timestamp time.Time
	Credits   int64
	Amount    decimal.Decimal
}

// Input is everything Build needs; it performs no I/O.
type Input struct {
	Period Period
	Start  time.Time
	End    time.Time
	// OpeningBalance is the cumulative balance at Start.
	OpeningBalance int64
	CurrentBalance int64
	Usage          []UsageDelta
	Purchases      []PurchaseDelta
}

type UsagePoint struct {
	Date    string `json:"date"`
	Credits int64  `json:"credits"`
}

type BalancePoint struct {
	Date    string `json:"date"`
	Balance int64  `json:"balance"`
}

type Report struct {
	CurrentCredits        int64          `json:"currentCredits"`
	TotalCredits          int64          `json:"totalCredits"`
	UsedThisPeriod        int64          `json:"usedThisPeriod"`
	Period                Period         `json:"period"`
	UsageHistory          []UsagePoint   `json:"usageHistory"`
	BalanceHistory        []BalancePoint `json:"balanceHistory"`
	Start                 time.Time      `json:"start"`
	End                   time.Time      `json:"end"`
	Average               int64          `json:"average"`
	TotalMoney            float64        `json:"totalMoney"`
	TotalCreditsPurchased int64          `json:"totalCreditsPurchased"`
	CostPerCredit         float64        `json:"costPerCredit"`

	// ProjectedBalance is the replayed balance of the last bucket before it
	// is replaced by CurrentBalance.
	ProjectedBalance int64 `json:"-"`
}

type Request struct {
	AccountID snowflake.ID
	Period    string
	Start     *time.Time
	End       *time.Time
}

type Balance struct {
	InitialCredits int64
	Credits        int64
}

type Repository interface {
	LoadBalance(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*Balance, error)
	// SumBefore returns purchased and used credits strictly before t.
	SumBefore(ctx context.Context, db *gorm.DB, accountID snowflake.ID, t time.Time) (int64, int64, error)
	ListUsage(ctx context.Context, db *gorm.DB, accountID snowflake.ID, start, end time.Time) ([]UsageDelta, error)
	ListPurchases(ctx context.Context, db *gorm.DB, accountID snowflake.ID, start, end time.Time) ([]PurchaseDelta, error)
}

type Service interface {
	Report(ctx context.Context, req Request) (*Report, error)
}
