package receipt

import (
	"github.com/smallbiznis/tryon/internal/receipt/render"
	"github.com/smallbiznis/tryon/internal/receipt/service"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt.service",
	fx.Provide(render.NewPDFRenderer),
	fx.Provide(service.NewService),
)
