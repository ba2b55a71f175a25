package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/agrovista-erp/agrovista-erp/internal/approvals"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskApprovalsExpireSweep marks stale pending approval requests expired.
	TaskApprovalsExpireSweep = "approvals:expire_sweep"
)

// NewApprovalsExpireSweepTask constructs the sweep task. The sweep takes no
// payload, its cutoff is derived from the clock at execution time.
func NewApprovalsExpireSweepTask() *asynq.Task {
	return asynq.NewTask(TaskApprovalsExpireSweep, nil)
}

// NewApprovalsExpireSweepHandler binds the sweep to the approvals service.
func NewApprovalsExpireSweepHandler(svc *approvals.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		expired, err := svc.ExpireStale(ctx)
		if err != nil {
			return err
		}
		if logger != nil && expired > 0 {
			logger.Info("expired stale approval requests", slog.Int64("count", expired))
		}
		return nil
	}
}
