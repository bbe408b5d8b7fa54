package usagereport

import (
	"github.com/smallbiznis/tryon/internal/usagereport/repository"
	"github.com/smallbiznis/tryon/internal/usagereport/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usagereport.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
