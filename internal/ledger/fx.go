package ledger

import (
	"github.com/smallbiznis/tryon/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
	fx.Provide(NewReconciler),
	fx.Invoke(func(*Reconciler) {}),
)
