package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tryon/internal/analytics/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.WidgetEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) Counts(ctx context.Context, db *gorm.DB, accountID snowflake.ID, start, end time.Time) (domain.Counts, error) {
	var counts domain.Counts
	err := db.WithContext(ctx).Raw(
		`SELECT
			COUNT(*) AS total_events,
			COALESCE(SUM(CASE WHEN event = ? THEN 1 ELSE 0 END), 0) AS total_try_ons,
			COALESCE(SUM(CASE WHEN event = ? THEN 1 ELSE 0 END), 0) AS total_errors,
			COALESCE(SUM(CASE WHEN event = ? THEN 1 ELSE 0 END), 0) AS widget_opens,
			COUNT(DISTINCT visitor_id) AS unique_visitors,
			COUNT(DISTINCT session_id) AS unique_sessions,
			COALESCE(SUM(CASE WHEN event IN (?, ?) THEN 1 ELSE 0 END), 0) AS photo_uploads
		 FROM widget_events
		 WHERE account_id = ? AND occurred_at >= ? AND occurred_at < ?`,
		domain.EventTryOnSuccess,
		domain.EventError,
		domain.EventWidgetOpened,
		domain.EventPhotoUploaded,
		domain.EventPhotoCaptured,
		accountID,
		start,
		end,
	).Scan(&counts).Error
	return counts, err
}

func (r *repo) EventTimes(ctx context.Context, db *gorm.DB, accountID snowflake.ID, event string, start, end time.Time) ([]time.Time, error) {
	var times []time.Time
	err := db.WithContext(ctx).
		Model(&domain.WidgetEvent{}).
		Where("account_id = ? AND event = ? AND occurred_at >= ? AND occurred_at < ?", accountID, event, start, end).
		Order("occurred_at ASC").
		Pluck("occurred_at", &times).Error
	return times, err
}

func (r *repo) TopProducts(ctx context.Context, db *gorm.DB, accountID snowflake.ID, start, end time.Time, limit int) ([]domain.ProductCount, error) {
	var rows []domain.ProductCount
	err := db.WithContext(ctx).Raw(
		`SELECT product_id, COUNT(*) AS count
		 FROM widget_events
		 WHERE account_id = ? AND product_id IS NOT NULL AND product_id <> ''
		   AND occurred_at >= ? AND occurred_at < ?
		 GROUP BY product_id
		 ORDER BY COUNT(*) DESC, product_id ASC
		 LIMIT ?`,
		accountID,
		start,
		end,
		limit,
	).Scan(&rows).Error
	return rows, err
}
