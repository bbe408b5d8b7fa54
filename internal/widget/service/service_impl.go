package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	"github.com/smallbiznis/tryon/internal/cache"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/config"
	widgetdomain "github.com/smallbiznis/tryon/internal/widget/domain"
	"github.com/smallbiznis/tryon/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix      = "vto_live_"
	apiKeySecretBytes = 16
	scriptName        = "virtual-tryon-widget.min.js"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     widgetdomain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      widgetdomain.Repository
	auditSvc  auditdomain.Service
	keys      cache.Cache[string, widgetdomain.Resolved]
	scriptURL string
}

func NewService(p Params) widgetdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("widget.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		auditSvc:  p.AuditSvc,
		keys:      cache.NewLRU[string, widgetdomain.Resolved](p.Cfg.Widget.KeyCacheSize, p.Cfg.Widget.KeyCacheTTL),
		scriptURL: p.Cfg.Widget.ScriptBaseURL + "/" + scriptName,
	}
}

func (s *Service) Ensure(ctx context.Context, accountID snowflake.ID) (*widgetdomain.WidgetConfig, error) {
	if accountID == 0 {
		return nil, widgetdomain.ErrInvalidAccount
	}

	current, err := s.repo.FindByAccount(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return current, nil
	}

	now := s.clock.Now()
	id := s.genID.Generate()
	apiKey, err := generateAPIKey(id)
	if err != nil {
		return nil, err
	}
	cfg := &widgetdomain.WidgetConfig{
		ID:        id,
		AccountID: accountID,
		APIKey:    apiKey,
		Config:    datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, cfg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a race with a concurrent Ensure for the same account.
			return s.repo.FindByAccount(ctx, s.db, accountID)
		}
		return nil, err
	}

	s.log.Info("widget created", zap.String("account_id", accountID.String()), zap.String("widget_id", id.String()))
	return cfg, nil
}

func (s *Service) Save(ctx context.Context, accountID snowflake.ID, req widgetdomain.SaveRequest) (*widgetdomain.WidgetConfig, error) {
	if req.Config == nil {
		return nil, widgetdomain.ErrInvalidConfig
	}

	var origins []string
	if req.AllowedOrigins != nil {
		normalized, err := widgetdomain.NormalizeOrigins(req.AllowedOrigins)
		if err != nil {
			return nil, err
		}
		origins = normalized
	}

	cfg, err := s.Ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}

	cfg.Config = datatypes.JSONMap(req.Config)
	if req.AllowedOrigins != nil {
		cfg.AllowedOrigins = origins
	}
	cfg.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, cfg); err != nil {
		return nil, err
	}

	s.keys.Remove(cfg.APIKey)
	return cfg, nil
}

func (s *Service) RotateAPIKey(ctx context.Context, accountID snowflake.ID) (*widgetdomain.WidgetConfig, error) {
	if accountID == 0 {
		return nil, widgetdomain.ErrInvalidAccount
	}

	var (
		result *widgetdomain.WidgetConfig
		oldKey string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if current == nil {
			return widgetdomain.ErrNotFound
		}

		next, err := generateAPIKey(current.ID)
		if err != nil {
			return err
		}
		oldKey = current.APIKey
		current.APIKey = next
		current.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, current); err != nil {
			return err
		}

		if s.auditSvc != nil {
			if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				AccountID:  &accountID,
				Action:     "widget.api_key_rotated",
				TargetType: "widget_config",
				TargetID:   current.ID.String(),
				Metadata: map[string]any{
					"old_api_key": oldKey,
					"new_api_key": next,
				},
			}); err != nil {
				return err
			}
		}

		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.keys.Remove(oldKey)
	s.log.Info("widget api key rotated", zap.String("account_id", accountID.String()))
	return result, nil
}

func (s *Service) ResolveAPIKey(ctx context.Context, apiKey string) (*widgetdomain.Resolved, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, widgetdomain.ErrInvalidAPIKey
	}
	if cached, ok := s.keys.Get(apiKey); ok {
		return &cached, nil
	}

	cfg, err := s.repo.FindByAPIKey(ctx, s.db, apiKey)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, widgetdomain.ErrInvalidAPIKey
	}

	resolved := widgetdomain.Resolved{
		WidgetID:       cfg.ID,
		AccountID:      cfg.AccountID,
		AllowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
	}
	s.keys.Set(apiKey, resolved)
	return &resolved, nil
}

func (s *Service) PublicConfig(ctx context.Context, apiKey string) (*widgetdomain.PublicConfigResponse, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, widgetdomain.ErrInvalidAPIKey
	}
	cfg, err := s.repo.FindByAPIKey(ctx, s.db, apiKey)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, widgetdomain.ErrNotFound
	}

	body := map[string]any(cfg.Config)
	if len(body) == 0 {
		body = widgetdomain.DefaultConfig()
	}
	return &widgetdomain.PublicConfigResponse{Config: body, APIKey: cfg.APIKey}, nil
}

func (s *Service) EmbedCode(ctx context.Context, accountID snowflake.ID) (*widgetdomain.EmbedCodeResponse, error) {
	cfg, err := s.Ensure(ctx, accountID)
	if err != nil {
		return nil, err
	}

	code := fmt.Sprintf(`<script src="%s"></script>
<script>
  VirtualTryOnWidget.init({
    apiKey: '%s',
    productId: 'YOUR_PRODUCT_ID'
  });
</script>`, s.scriptURL, cfg.APIKey)

	return &widgetdomain.EmbedCodeResponse{EmbedCode: code, APIKey: cfg.APIKey}, nil
}

func generateAPIKey(id snowflake.ID) (string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return apiKeyPrefix + strings.ToLower(strconv.FormatInt(int64(id), 36)) + "_" + hex.EncodeToString(secret), nil
}
