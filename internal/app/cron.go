package app

import (
	"context"
	"fmt"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/config"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/revocation"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/session"
	pkgcron "github.com/HayasMoustapha/event-planner-auth/internal/pkg/cron"
	"go.uber.org/zap"
)

// registerCronJobs registers the background housekeeping jobs.
func registerCronJobs(sched *pkgcron.Scheduler, cfg *config.AppConfig, sessions *session.Manager, registry *revocation.Registry, logger *zap.Logger) {
	sched.Register(pkgcron.Job{
		Name:        "cleanup_sessions",
		Description: "drop session rows past their expiry grace window",
		Interval:    cfg.Session.CleanupInterval.Std(),
		Fn: func(ctx context.Context) error {
			deleted, err := sessions.CleanupExpired(ctx, cfg.Session.InactiveGrace.Std())
			if err != nil {
				logger.Warn("session cleanup failed", zap.Error(err))
				return err
			}
			logger.Info(fmt.Sprintf("session cleanup done, %d rows removed", deleted))
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "prune_revocation_audit",
		Description: "delete revocation audit rows for expired tokens",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			pruned, err := registry.PruneAudit(ctx)
			if err != nil {
				logger.Warn("revocation audit prune failed", zap.Error(err))
				return err
			}
			logger.Info(fmt.Sprintf("revocation audit prune done, %d rows removed", pruned))
			return nil
		},
	})
}
