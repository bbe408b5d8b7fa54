package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/config"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/tryon/internal/observability/metrics"
	"github.com/smallbiznis/tryon/internal/payment/adapters"
	"github.com/smallbiznis/tryon/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/tryon/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	GenID      *snowflake.Node
	Clock      clock.Clock
	Adapters   *adapters.Registry
	Repo       paymentdomain.Repository
	Ledger     ledgerdomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	adapters   *adapters.Registry
	repo       paymentdomain.Repository
	ledger     ledgerdomain.Service
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
	configs    map[string]map[string]any
}

func NewService(p Params) paymentdomain.Service {
	configs := map[string]map[string]any{}
	if secret := strings.TrimSpace(p.Cfg.Stripe.WebhookSecret); secret != "" {
		configs[stripe.ProviderName] = map[string]any{"webhook_secret": secret}
	}

	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		clock:      p.Clock,
		adapters:   p.Adapters,
		repo:       p.Repo,
		ledger:     p.Ledger,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
		configs:    configs,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.OutcomeRejected, paymentdomain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.OutcomeRejected, paymentdomain.ErrProviderNotFound
	}
	cfg, ok := s.configs[provider]
	if !ok {
		s.log.Warn("webhook received for unconfigured provider", zap.String("provider", provider))
		return paymentdomain.OutcomeRejected, paymentdomain.ErrProviderNotFound
	}

	adapter, err := s.adapters.NewAdapter(provider, paymentdomain.AdapterConfig{Provider: provider, Config: cfg})
	if err != nil {
		return paymentdomain.OutcomeRejected, err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return s.reject(ctx, provider, "unknown", err)
	}
	if !json.Valid(payload) {
		return s.reject(ctx, provider, "unknown", paymentdomain.ErrInvalidPayload)
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.obsMetrics.RecordPaymentEvent(ctx, provider, "unhandled", paymentdomain.OutcomeIgnored)
			return paymentdomain.OutcomeIgnored, nil
		}
		return s.reject(ctx, provider, "unknown", err)
	}

	if event.AccountID == 0 {
		accountID, err := s.resolveUsername(ctx, event.Username)
		if err != nil {
			return s.reject(ctx, provider, event.Type, err)
		}
		event.AccountID = accountID
	}

	outcome, err := s.apply(ctx, event)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrAccountNotFound) {
			return s.reject(ctx, provider, event.Type, paymentdomain.ErrInvalidAccount)
		}
		s.log.Error("failed to apply payment",
			zap.String("provider", provider),
			zap.String("event_id", event.ProviderEventID),
			zap.Error(err),
		)
		s.obsMetrics.RecordPaymentEvent(ctx, provider, event.Type, paymentdomain.OutcomeFailed)
		return paymentdomain.OutcomeFailed, err
	}

	s.obsMetrics.RecordPaymentEvent(ctx, provider, event.Type, outcome)
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, event *paymentdomain.PaymentEvent) (string, error) {
	accountID := event.AccountID
	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		AccountID:       &accountID,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      s.clock.Now(),
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return "", fmt.Errorf("record payment event: %w", err)
	}
	if !inserted {
		existing, err := s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return "", err
		}
		if existing != nil && existing.ProcessedAt != nil {
			s.log.Info("payment event already processed",
				zap.String("provider", event.Provider),
				zap.String("event_id", event.ProviderEventID),
			)
			return paymentdomain.OutcomeDuplicate, nil
		}
		if existing != nil {
			record = existing
		}
	}

	outcome := paymentdomain.OutcomeApplied
	result, err := s.ledger.Credit(ctx, ledgerdomain.CreditRequest{
		AccountID:   event.AccountID,
		Provider:    event.Provider,
		PaymentRef:  event.PaymentRef,
		ChargeRef:   event.ChargeRef,
		Amount:      event.Amount,
		Currency:    event.Currency,
		Credits:     event.Credits,
		Description: fmt.Sprintf("Purchase of %d credits", event.Credits),
	})
	switch {
	case errors.Is(err, ledgerdomain.ErrPaymentAlreadyApplied):
		outcome = paymentdomain.OutcomeDuplicate
	case err != nil:
		return "", err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now()); err != nil {
		return "", err
	}

	if result != nil {
		s.log.Info("payment applied",
			zap.String("account_id", event.AccountID.String()),
			zap.String("payment_ref", event.PaymentRef),
			zap.Int64("credits", event.Credits),
			zap.Int64("balance", result.Balance),
		)
		s.audit(ctx, event, result.Purchase.ID)
	}
	return outcome, nil
}

func (s *Service) audit(ctx context.Context, event *paymentdomain.PaymentEvent, purchaseID snowflake.ID) {
	if s.auditSvc == nil {
		return
	}
	accountID := event.AccountID
	err := s.auditSvc.Record(ctx, nil, auditdomain.Entry{
		AccountID:  &accountID,
		ActorType:  auditdomain.ActorTypeWebhook,
		ActorID:    event.Provider,
		Action:     "payment.credits_purchased",
		TargetType: "credit_purchase",
		TargetID:   purchaseID.String(),
		Metadata: map[string]any{
			"event_id":    event.ProviderEventID,
			"payment_ref": event.PaymentRef,
			"credits":     event.Credits,
			"amount":      event.Amount.String(),
			"currency":    event.Currency,
		},
	})
	if err != nil {
		s.log.Warn("failed to write payment audit log", zap.Error(err))
	}
}

func (s *Service) resolveUsername(ctx context.Context, username string) (snowflake.ID, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return 0, paymentdomain.ErrInvalidAccount
	}
	var ids []int64
	if err := s.db.WithContext(ctx).
		Table("accounts").
		Where("username = ?", username).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, paymentdomain.ErrInvalidAccount
	}
	return snowflake.ID(ids[0]), nil
}

func (s *Service) reject(ctx context.Context, provider, eventType string, err error) (string, error) {
	s.log.Warn("payment webhook rejected",
		zap.String("provider", provider),
		zap.String("event_type", eventType),
		zap.Error(err),
	)
	s.obsMetrics.RecordPaymentEvent(ctx, provider, eventType, paymentdomain.OutcomeRejected)
	return paymentdomain.OutcomeRejected, err
}
