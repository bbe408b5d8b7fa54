package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// WidgetConfig is the per-account widget appearance plus its public API key.
// The key is a publishable credential and is stored as issued so the
// dashboard can show it in embed snippets.
type WidgetConfig struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID      snowflake.ID      `gorm:"column:account_id;not null;uniqueIndex" json:"accountId"`
	APIKey         string            `gorm:"column:api_key;type:text;not null;uniqueIndex" json:"apiKey"`
	Config         datatypes.JSONMap `gorm:"column:config;type:json" json:"config"`
	AllowedOrigins pq.StringArray    `gorm:"column:allowed_origins;type:text[]" json:"allowedOrigins"`
	CreatedAt      time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time         `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (WidgetConfig) TableName() string { return "widget_configs" }

// DefaultConfig is served to the widget when the account never customised it.
func DefaultConfig() map[string]any {
	return map[string]any{
		"primaryColor":     "#667eea",
		"secondaryColor":   "#ff6b6b",
		"backgroundColor":  "#ffffff",
		"textColor":        "#333333",
		"fontFamily":       "Inter",
		"fontSize":         "16px",
		"fontWeight":       "500",
		"buttonStyle":      "rounded",
		"buttonSize":       "medium",
		"buttonText":       "Take a Photo",
		"widgetSize":       "medium",
		"position":         "bottom-right",
		"title":            "Virtual Try-On",
		"subtitle":         "See how it looks on you",
		"callToAction":     "Start your virtual fitting",
		"showBranding":     true,
		"enableAR":         true,
		"enableSharing":    false,
		"animationType":    "fade",
		"animationSpeed":   "normal",
		"uploadButtonText": "Upload a Photo",
	}
}

// Resolved is what a public API key maps to.
type Resolved struct {
	WidgetID       snowflake.ID
	AccountID      snowflake.ID
	AllowedOrigins []string
}

// OriginAllowed reports whether a browser origin may use the key. An empty
// allow list or a missing Origin header (server-to-server) is accepted.
func (r Resolved) OriginAllowed(origin string) bool {
	if len(r.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	origin = NormalizeOrigin(origin)
	for _, allowed := range r.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
