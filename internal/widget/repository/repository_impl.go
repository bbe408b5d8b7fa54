package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	widgetdomain "github.com/smallbiznis/tryon/internal/widget/domain"
	"gorm.io/gorm"
)

const selectColumns = `SELECT id, account_id, api_key, config, allowed_origins, created_at, updated_at FROM widget_configs`

type repo struct{}

func Provide() widgetdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cfg *widgetdomain.WidgetConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO widget_configs (id, account_id, api_key, config, allowed_origins, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID,
		cfg.AccountID,
		cfg.APIKey,
		cfg.Config,
		cfg.AllowedOrigins,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, cfg *widgetdomain.WidgetConfig) error {
	return db.WithContext(ctx).Exec(
		`UPDATE widget_configs
		 SET api_key = ?, config = ?, allowed_origins = ?, updated_at = ?
		 WHERE id = ? AND account_id = ?`,
		cfg.APIKey,
		cfg.Config,
		cfg.AllowedOrigins,
		cfg.UpdatedAt,
		cfg.ID,
		cfg.AccountID,
	).Error
}

func (r *repo) FindByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*widgetdomain.WidgetConfig, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE account_id = ?`, accountID)
}

func (r *repo) FindByAPIKey(ctx context.Context, db *gorm.DB, apiKey string) (*widgetdomain.WidgetConfig, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, selectColumns+` WHERE api_key = ?`, apiKey)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*widgetdomain.WidgetConfig, error) {
	var cfg widgetdomain.WidgetConfig
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&cfg).Error; err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}
