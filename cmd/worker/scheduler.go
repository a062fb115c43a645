package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"grimoire-backend/internal/infrastructure/queue"
	"grimoire-backend/pkg/container"
)

// asynqScheduler wraps queue.Scheduler with additional functionality
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler registers the cron jobs and starts the scheduler
func setupScheduler(c *container.Container) (*asynqScheduler, error) {
	scheduler := queue.NewScheduler(c.RedisClientOpt(), c.Config.Jobs)

	if err := scheduler.RegisterMaintenanceJobs(); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	go func() {
		log.Info().Msg("[Scheduler] Starting...")
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("[Scheduler] Failed")
		}
	}()

	return &asynqScheduler{Scheduler: scheduler}, nil
}

// Shutdown gracefully shuts down the scheduler
func (s *asynqScheduler) Shutdown() {
	log.Info().Msg("[Scheduler] Shutting down...")
	s.Scheduler.Shutdown()
	log.Info().Msg("[Scheduler] Stopped")
}
