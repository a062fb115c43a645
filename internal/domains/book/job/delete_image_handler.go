package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	bookService "grimoire-backend/internal/domains/book/service"
	"grimoire-backend/internal/shared"
)

// DeleteImageHandler removes a cover file that is no longer referenced
type DeleteImageHandler struct {
	imageService bookService.ImageService
}

func NewDeleteImageHandler(imageService bookService.ImageService) *DeleteImageHandler {
	return &DeleteImageHandler{
		imageService: imageService,
	}
}

func (h *DeleteImageHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.DeleteImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal DeleteImage payload")
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Filename == "" {
		return fmt.Errorf("empty filename: %w", asynq.SkipRetry)
	}

	if err := h.imageService.DeleteImage(ctx, payload.Filename); err != nil {
		log.Error().
			Err(err).
			Str("filename", payload.Filename).
			Msg("Failed to delete book image")
		return err
	}

	log.Info().
		Str("filename", payload.Filename).
		Msg("Book image deleted")

	return nil
}
