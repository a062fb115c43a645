package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"grimoire-backend/internal/shared"
)

// Client enqueues background tasks for the worker.
type Client struct {
	client *asynq.Client
}

func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

// EnqueueDeleteImage schedules removal of a stored cover image.
func (c *Client) EnqueueDeleteImage(ctx context.Context, filename string) error {
	payload, err := json.Marshal(shared.DeleteImagePayload{Filename: filename})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(shared.TypeDeleteBookImage, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", shared.TypeDeleteBookImage, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
