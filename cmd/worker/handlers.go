package main

import (
	"github.com/hibiken/asynq"

	bookJob "grimoire-backend/internal/domains/book/job"
	"grimoire-backend/internal/shared"
	"grimoire-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	deleteBookImage   *bookJob.DeleteImageHandler
	sweepOrphanImages *bookJob.SweepOrphansHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		deleteBookImage:   bookJob.NewDeleteImageHandler(c.ImageService),
		sweepOrphanImages: bookJob.NewSweepOrphansHandler(c.ImageService, c.Config.Jobs.OrphanGracePeriod),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeDeleteBookImage, h.deleteBookImage.ProcessTask)
	mux.HandleFunc(shared.TypeSweepOrphanImages, h.sweepOrphanImages.ProcessTask)
}
