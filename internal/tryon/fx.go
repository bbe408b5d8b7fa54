package tryon

import (
	"github.com/smallbiznis/tryon/internal/tryon/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tryon.service",
	fx.Provide(service.NewEchoGenerator),
	fx.Provide(service.NewService),
)
