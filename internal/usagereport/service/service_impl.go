package service

import (
	"context"
	"time"

	"github.com/smallbiznis/tryon/internal/clock"
	obsmetrics "github.com/smallbiznis/tryon/internal/observability/metrics"
	"github.com/smallbiznis/tryon/internal/usagereport/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("usagereport.service"),
		repo:       p.Repo,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Report(ctx context.Context, req domain.Request) (*domain.Report, error) {
	if req.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	start, end, err := domain.ResolveWindow(period, req.Start, req.End, s.clock.Now())
	if err != nil {
		return nil, err
	}

	began := time.Now()
	input := domain.Input{Period: period, Start: start, End: end}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.repo.LoadBalance(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		if balance == nil {
			return domain.ErrAccountNotFound
		}
		purchasedBefore, usedBefore, err := s.repo.SumBefore(ctx, tx, req.AccountID, start)
		if err != nil {
			return err
		}
		input.CurrentBalance = balance.Credits
		input.OpeningBalance = balance.InitialCredits + purchasedBefore - usedBefore

		if input.Usage, err = s.repo.ListUsage(ctx, tx, req.AccountID, start, end); err != nil {
			return err
		}
		input.Purchases, err = s.repo.ListPurchases(ctx, tx, req.AccountID, start, end)
		return err
	})
	if err != nil {
		return nil, err
	}

	report := domain.Build(input)
	if report.ProjectedBalance != report.CurrentCredits && !end.Before(s.clock.Now()) {
		s.log.Warn("report balance diverges from live balance",
			zap.String("account_id", req.AccountID.String()),
			zap.Int64("projected", report.ProjectedBalance),
			zap.Int64("current", report.CurrentCredits),
		)
	}
	s.obsMetrics.ObserveReportDuration(ctx, string(period), time.Since(began))
	return &report, nil
}
