package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cfg *WidgetConfig) error
	Update(ctx context.Context, db *gorm.DB, cfg *WidgetConfig) error
	FindByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*WidgetConfig, error)
	FindByAPIKey(ctx context.Context, db *gorm.DB, apiKey string) (*WidgetConfig, error)
}

type Service interface {
	// Ensure returns the account's widget, creating it with a fresh key.
	Ensure(ctx context.Context, accountID snowflake.ID) (*WidgetConfig, error)
	Save(ctx context.Context, accountID snowflake.ID, req SaveRequest) (*WidgetConfig, error)
	RotateAPIKey(ctx context.Context, accountID snowflake.ID) (*WidgetConfig, error)
	ResolveAPIKey(ctx context.Context, apiKey string) (*Resolved, error)
	PublicConfig(ctx context.Context, apiKey string) (*PublicConfigResponse, error)
	EmbedCode(ctx context.Context, accountID snowflake.ID) (*EmbedCodeResponse, error)
}

type SaveRequest struct {
	Config map[string]any
	// AllowedOrigins replaces the allow list when non-nil.
	AllowedOrigins []string
}

type PublicConfigResponse struct {
	Config map[string]any `json:"config"`
	APIKey string         `json:"api_key"`
}

type EmbedCodeResponse struct {
	EmbedCode string `json:"embed_code"`
	APIKey    string `json:"api_key"`
}

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidAPIKey  = errors.New("invalid_api_key")
	ErrInvalidOrigin  = errors.New("invalid_origin")
	ErrInvalidConfig  = errors.New("invalid_config")
	ErrNotFound       = errors.New("widget_not_found")
	ErrOriginDenied   = errors.New("origin_not_allowed")
)
