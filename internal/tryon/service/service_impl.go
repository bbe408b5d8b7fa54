package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/tryon/internal/config"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	"github.com/smallbiznis/tryon/internal/observability/logger"
	"github.com/smallbiznis/tryon/internal/tryon/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Ledger    ledgerdomain.Service
	Credits   *config.CreditsConfigHolder
	Generator domain.Generator
}

type Service struct {
	log       *zap.Logger
	ledger    ledgerdomain.Service
	credits   *config.CreditsConfigHolder
	generator domain.Generator
}

func NewService(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("tryon.service"),
		ledger:    p.Ledger,
		credits:   p.Credits,
		generator: p.Generator,
	}
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	if req.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if strings.TrimSpace(req.Photo) == "" {
		return nil, domain.ErrInvalidPhoto
	}

	debit, err := s.ledger.Debit(ctx, ledgerdomain.DebitRequest{
		AccountID: req.AccountID,
		Credits:   s.credits.Get().PerImage,
		Action:    ledgerdomain.ActionGenerateImage,
		Reference: req.RequestID,
	})
	if err != nil {
		return nil, err
	}

	image, err := s.generator.Generate(ctx, domain.GenerationInput{Photo: req.Photo, ProductID: req.ProductID})
	if err != nil {
		// Credits stay debited; support refunds through a manual grant.
		logger.WithContext(ctx, s.log).Error("generation failed after debit",
			zap.String("account_id", req.AccountID.String()),
			zap.String("usage_event_id", debit.Event.ID.String()),
			zap.Int64("credits", debit.Event.CreditsUsed),
			zap.Error(err),
		)
		return nil, fmt.Errorf("generate image: %w", err)
	}

	return &domain.GenerateResult{
		ResultImage:  image,
		CreditsLeft:  debit.Balance,
		UsageEventID: debit.Event.ID,
	}, nil
}
