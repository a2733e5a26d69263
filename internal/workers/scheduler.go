// internal/workers/scheduler.go
package workers

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Registrar is the part of asynq.Scheduler used to register periodic tasks
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

var _ Registrar = (*asynq.Scheduler)(nil)

// ScheduleConfig holds the cron specs of periodic work; an empty spec disables it
type ScheduleConfig struct {
	ResyncCron  string
	ArchiveCron string
	MaxRetry    int
}

// RegisterPeriodicTasks registers the resync and archive schedules
func RegisterPeriodicTasks(scheduler Registrar, cfg ScheduleConfig, logger *slog.Logger) error {
	opts := JobOptions(cfg.MaxRetry)
	if cfg.ResyncCron != "" {
		task, err := NewResyncTask(ResyncPayload{})
		if err != nil {
			return err
		}
		id, err := scheduler.Register(cfg.ResyncCron, task, opts...)
		if err != nil {
			return fmt.Errorf("failed to register resync schedule: %w", err)
		}
		logger.Info("periodic task registered",
			slog.String("type", TypeResync),
			slog.String("cron", cfg.ResyncCron),
			slog.String("entry_id", id))
	}

	if cfg.ArchiveCron != "" {
		task, err := NewArchiveTask(ArchivePayload{})
		if err != nil {
			return err
		}
		id, err := scheduler.Register(cfg.ArchiveCron, task, opts...)
		if err != nil {
			return fmt.Errorf("failed to register archive schedule: %w", err)
		}
		logger.Info("periodic task registered",
			slog.String("type", TypeArchiveAudit),
			slog.String("cron", cfg.ArchiveCron),
			slog.String("entry_id", id))
	}
	return nil
}
