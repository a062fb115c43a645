package job

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	bookService "grimoire-backend/internal/domains/book/service"
)

// SweepOrphansHandler runs the periodic orphan image cleanup
type SweepOrphansHandler struct {
	imageService bookService.ImageService
	grace        time.Duration
}

func NewSweepOrphansHandler(imageService bookService.ImageService, grace time.Duration) *SweepOrphansHandler {
	return &SweepOrphansHandler{
		imageService: imageService,
		grace:        grace,
	}
}

func (h *SweepOrphansHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if _, err := h.imageService.SweepOrphans(ctx, h.grace); err != nil {
		return fmt.Errorf("sweep orphan images: %w", err)
	}
	return nil
}
