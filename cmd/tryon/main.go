package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tryon/internal/analytics"
	"github.com/smallbiznis/tryon/internal/audit"
	"github.com/smallbiznis/tryon/internal/auth"
	"github.com/smallbiznis/tryon/internal/authorization"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/config"
	"github.com/smallbiznis/tryon/internal/ledger"
	"github.com/smallbiznis/tryon/internal/migration"
	"github.com/smallbiznis/tryon/internal/observability"
	"github.com/smallbiznis/tryon/internal/payment"
	"github.com/smallbiznis/tryon/internal/product"
	"github.com/smallbiznis/tryon/internal/ratelimit"
	"github.com/smallbiznis/tryon/internal/receipt"
	"github.com/smallbiznis/tryon/internal/server"
	"github.com/smallbiznis/tryon/internal/tryon"
	"github.com/smallbiznis/tryon/internal/usagereport"
	"github.com/smallbiznis/tryon/internal/widget"
	"github.com/smallbiznis/tryon/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Functional Domains
		audit.Module,
		authorization.Module,
		auth.Module,
		ledger.Module,
		usagereport.Module,
		payment.Module,
		widget.Module,
		product.Module,
		analytics.Module,
		tryon.Module,
		receipt.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
