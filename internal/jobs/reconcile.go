package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Recomputer rebuilds derived wallet aggregates.
type Recomputer interface {
	RecomputeWalletStats(ctx context.Context) (int, error)
}

const reconcileTimeout = 5 * time.Minute

// ScheduleWalletReconcile rebuilds wallet aggregates from the transaction
// log on schedule. The cron stops when ctx is done.
func ScheduleWalletReconcile(ctx context.Context, schedule string, r Recomputer, logger zerolog.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { ReconcileWallets(ctx, r, logger) }); err != nil {
		return nil, err
	}
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c, nil
}

// ReconcileWallets runs one reconciliation pass.
func ReconcileWallets(ctx context.Context, r Recomputer, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	start := time.Now()
	n, err := r.RecomputeWalletStats(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("wallet stats reconcile failed")
		return
	}
	logger.Info().Int("wallets", n).Dur("elapsed", time.Since(start)).Msg("wallet stats reconciled")
}
