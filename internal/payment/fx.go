package payment

import (
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/config"
	"github.com/smallbiznis/tryon/internal/payment/adapters"
	"github.com/smallbiznis/tryon/internal/payment/adapters/stripe"
	"github.com/smallbiznis/tryon/internal/payment/repository"
	"github.com/smallbiznis/tryon/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config, clk clock.Clock) *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(clk, cfg.Stripe.WebhookTolerance),
		)
	}),
	fx.Provide(webhook.NewService),
)
