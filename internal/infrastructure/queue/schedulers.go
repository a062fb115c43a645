package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"grimoire-backend/internal/config"
	"grimoire-backend/internal/shared"
	"grimoire-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(opt asynq.RedisClientOpt, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		opt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

// RegisterMaintenanceJobs registers every periodic task.
func (s *Scheduler) RegisterMaintenanceJobs() error {
	return s.registerSweepOrphanImagesJob()
}

// registerSweepOrphanImagesJob removes stored covers no book references.
func (s *Scheduler) registerSweepOrphanImagesJob() error {
	task := asynq.NewTask(shared.TypeSweepOrphanImages, nil)

	entryID, err := s.scheduler.Register(
		s.jobConfig.OrphanSweepCron,
		task,
		asynq.Queue(shared.QueueMaintenance),
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Minute),
		asynq.Unique(time.Hour),
	)
	if err != nil {
		logger.Error("Failed to register SweepOrphanImages job", err)
		return fmt.Errorf("register %s: %w", shared.TypeSweepOrphanImages, err)
	}

	logger.Info("Registered scheduled job", map[string]interface{}{
		"task":     shared.TypeSweepOrphanImages,
		"cron":     s.jobConfig.OrphanSweepCron,
		"entry_id": entryID,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
