package main

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tryon/internal/audit"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/config"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/tryon/internal/ledger/service"
	"github.com/smallbiznis/tryon/internal/migration"
	"github.com/smallbiznis/tryon/internal/observability"
	"github.com/smallbiznis/tryon/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const startTimeout = 30 * time.Second

// app is what the commands operate on.
type app struct {
	ledger  ledgerdomain.Service
	migrate func() error
	close   func() error
}

// wireApp builds the ledger stack without the HTTP server or background jobs.
func wireApp() (*app, error) {
	var (
		cfg    config.Config
		conn   *gorm.DB
		log    *zap.Logger
		ledger ledgerdomain.Service
	)

	fxApp := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func() (*snowflake.Node, error) { return snowflake.NewNode(2) }),
		db.Module,
		clock.Module,
		audit.Module,
		fx.Provide(ledgerservice.NewService),
		fx.Populate(&cfg, &conn, &log, &ledger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := fxApp.Start(ctx); err != nil {
		return nil, err
	}

	return &app{
		ledger: ledger,
		migrate: func() error {
			if err := migration.Apply(conn, cfg.DBType); err != nil {
				return err
			}
			log.Info("schema up to date", zap.String("db_type", cfg.DBType))
			return nil
		},
		close: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
			defer cancel()
			return fxApp.Stop(ctx)
		},
	}, nil
}
