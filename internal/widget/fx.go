package widget

import (
	"github.com/smallbiznis/tryon/internal/widget/repository"
	"github.com/smallbiznis/tryon/internal/widget/service"
	"go.uber.org/fx"
)

var Module = fx.Module("widget.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
