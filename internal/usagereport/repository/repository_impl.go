package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tryon/internal/usagereport/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) LoadBalance(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*domain.Balance, error) {
	var rows []domain.Balance
	if err := db.WithContext(ctx).Raw(
		`SELECT initial_credits, credits FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) SumBefore(ctx context.Context, db *gorm.DB, accountID snowflake.ID, t time.Time) (int64, int64, error) {
	var purchased, used int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(credits), 0) FROM credit_purchases
		WHERE account_id = ? AND created_at < ?`,
		accountID, t,
	).Row().Scan(&purchased); err != nil {
		return 0, 0, err
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(credits_used), 0) FROM usage_events
		WHERE account_id = ? AND created_at < ?`,
		accountID, t,
	).Row().Scan(&used); err != nil {
		return 0, 0, err
	}
	return purchased, used, nil
}

type usageRow struct {
	CreatedAt   time.Time
	CreditsUsed int64
}

func (r *repo) ListUsage(ctx context.Context, db *gorm.DB, accountID snowflake.ID, start, end time.Time) ([]domain.UsageDelta, error) {
	var rows []usageRow
	if err := db.WithContext(ctx).
		Table("usage_events").
		Select("created_at, credits_used").
		Where("account_id = ? AND created_at >= ? AND created_at <= ?", accountID, start, end).
		Order("created_at asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.UsageDelta, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.UsageDelta{Timestamp: row.CreatedAt, Credits: row.CreditsUsed})
	}
	return out, nil
}

type purchaseRow struct {
	CreatedAt time.Time
	Credits   int64
	Amount    decimal.Decimal
}

func (r *repo) ListPurchases(ctx context.Context, db *gorm.DB, accountID snowflake.ID, start, end time.Time) ([]domain.PurchaseDelta, error) {
	var rows []purchaseRow
	if err := db.WithContext(ctx).
		Table("credit_purchases").
		Select("created_at, credits, amount").
		Where("account_id = ? AND created_at >= ? AND created_at <= ?", accountID, start, end).
		Order("created_at asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.PurchaseDelta, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PurchaseDelta{Timestamp: row.CreatedAt, Credits: row.Credits, Amount: row.Amount})
	}
	return out, nil
}
