package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/tryon/internal/config"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	"github.com/smallbiznis/tryon/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const reconcileLockKey = "tryon:ledger:reconcile"

type ReconcilerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	Log       *zap.Logger
	Ledger    ledgerdomain.Service
	Locker    *ratelimit.Locker `optional:"true"`
}

// Reconciler periodically verifies every account balance against its
// event log. Drift is reported, never repaired.
type Reconciler struct {
	interval time.Duration
	log      *zap.Logger
	ledger   ledgerdomain.Service
	locker   *ratelimit.Locker

	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(p ReconcilerParams) *Reconciler {
	r := &Reconciler{
		interval: p.Cfg.Ledger.ReconcileInterval,
		log:      p.Log.Named("ledger.reconciler"),
		ledger:   p.Ledger,
		locker:   p.Locker,
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return r.Stop(ctx)
		},
	})
	return r
}

func (r *Reconciler) Start() {
	if r.interval <= 0 {
		r.log.Info("ledger reconciler disabled")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
	r.log.Info("ledger reconciler started", zap.Duration("interval", r.interval))
}

func (r *Reconciler) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) {
	err := r.locker.WithLock(ctx, reconcileLockKey, r.interval, func(ctx context.Context) error {
		results, err := r.ledger.VerifyAll(ctx)
		if err != nil {
			return err
		}
		r.log.Info("ledger reconciled", zap.Int("accounts", len(results)))
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ratelimit.ErrLockHeld):
		r.log.Debug("reconcile skipped, another replica holds the lock")
	case errors.Is(err, ledgerdomain.ErrLedgerInconsistency):
		r.log.Error("ledger reconcile found drift", zap.Error(err))
	case errors.Is(err, context.Canceled):
	default:
		r.log.Warn("ledger reconcile failed", zap.Error(err))
	}
}
