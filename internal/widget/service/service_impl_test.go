package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	auditrepo "github.com/smallbiznis/tryon/internal/audit/repository"
	auditservice "github.com/smallbiznis/tryon/internal/audit/service"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/config"
	widgetdomain "github.com/smallbiznis/tryon/internal/widget/domain"
	"github.com/smallbiznis/tryon/internal/widget/repository"
	"github.com/smallbiznis/tryon/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (widgetdomain.Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest(&widgetdomain.WidgetConfig{}, &auditdomain.AuditLog{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	audit := auditservice.NewService(auditservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide(), Clock: clk,
	})

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
		Cfg: config.Config{Widget: config.WidgetConfig{
			ScriptBaseURL: "https://cdn.example.com",
			KeyCacheSize:  16,
			KeyCacheTTL:   time.Minute,
		}},
		AuditSvc: audit,
	})
	return svc, conn
}

func TestEnsureIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Ensure(ctx, 42)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.APIKey, apiKeyPrefix))

	second, err := svc.Ensure(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.APIKey, second.APIKey)

	_, err = svc.Ensure(ctx, 0)
	assert.ErrorIs(t, err, widgetdomain.ErrInvalidAccount)
}

func TestPublicConfigFallsBackToDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Ensure(ctx, 7)
	require.NoError(t, err)

	public, err := svc.PublicConfig(ctx, cfg.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "#667eea", public.Config["primaryColor"])
	assert.Equal(t, cfg.APIKey, public.APIKey)

	_, err = svc.Save(ctx, 7, widgetdomain.SaveRequest{Config: map[string]any{"primaryColor": "#000000"}})
	require.NoError(t, err)

	public, err = svc.PublicConfig(ctx, cfg.APIKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"primaryColor": "#000000"}, public.Config)

	_, err = svc.PublicConfig(ctx, "vto_live_missing")
	assert.ErrorIs(t, err, widgetdomain.ErrNotFound)
}

func TestSaveValidatesOrigins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, 7, widgetdomain.SaveRequest{
		Config:         map[string]any{},
		AllowedOrigins: []string{"not a url"},
	})
	assert.ErrorIs(t, err, widgetdomain.ErrInvalidOrigin)

	saved, err := svc.Save(ctx, 7, widgetdomain.SaveRequest{
		Config:         map[string]any{"title": "Try it"},
		AllowedOrigins: []string{"https://Shop.Example.com/products", "https://shop.example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example.com"}, []string(saved.AllowedOrigins))

	resolved, err := svc.ResolveAPIKey(ctx, saved.APIKey)
	require.NoError(t, err)
	assert.True(t, resolved.OriginAllowed("https://shop.example.com"))
	assert.True(t, resolved.OriginAllowed(""))
	assert.False(t, resolved.OriginAllowed("https://evil.example.com"))

	_, err = svc.Save(ctx, 7, widgetdomain.SaveRequest{})
	assert.ErrorIs(t, err, widgetdomain.ErrInvalidConfig)
}

func TestRotateInvalidatesOldKey(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Ensure(ctx, 9)
	require.NoError(t, err)
	oldKey := cfg.APIKey

	resolved, err := svc.ResolveAPIKey(ctx, oldKey)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(9), resolved.AccountID)

	rotated, err := svc.RotateAPIKey(ctx, 9)
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, rotated.APIKey)

	_, err = svc.ResolveAPIKey(ctx, oldKey)
	assert.ErrorIs(t, err, widgetdomain.ErrInvalidAPIKey)

	resolved, err = svc.ResolveAPIKey(ctx, rotated.APIKey)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, resolved.WidgetID)

	var logs []auditdomain.AuditLog
	require.NoError(t, conn.Where("action = ?", "widget.api_key_rotated").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.NotEqual(t, oldKey, logs[0].Metadata["old_api_key"], "keys are masked in the audit trail")

	_, err = svc.RotateAPIKey(ctx, 1234)
	assert.ErrorIs(t, err, widgetdomain.ErrNotFound)
}

func TestEmbedCodeContainsKey(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.EmbedCode(context.Background(), 11)
	require.NoError(t, err)
	assert.Contains(t, resp.EmbedCode, "https://cdn.example.com/virtual-tryon-widget.min.js")
	assert.Contains(t, resp.EmbedCode, "apiKey: '"+resp.APIKey+"'")
}
