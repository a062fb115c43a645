package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimoire-backend/internal/shared"
)

type stubImageService struct {
	deleted   []string
	deleteErr error
	grace     time.Duration
	sweepErr  error
}

func (s *stubImageService) ScheduleDeletion(ctx context.Context, imageURL string) {}

func (s *stubImageService) DeleteImage(ctx context.Context, filename string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, filename)
	return nil
}

func (s *stubImageService) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	s.grace = grace
	return 0, s.sweepErr
}

func (s *stubImageService) Wait() {}

func deleteTask(t *testing.T, filename string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(shared.DeleteImagePayload{Filename: filename})
	require.NoError(t, err)
	return asynq.NewTask(shared.TypeDeleteBookImage, payload)
}

func TestDeleteImageHandler(t *testing.T) {
	images := &stubImageService{}
	h := NewDeleteImageHandler(images)

	require.NoError(t, h.ProcessTask(context.Background(), deleteTask(t, "dune.jpg")))
	assert.Equal(t, []string{"dune.jpg"}, images.deleted)
}

func TestDeleteImageHandler_BadPayloadSkipsRetry(t *testing.T) {
	h := NewDeleteImageHandler(&stubImageService{})

	err := h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeDeleteBookImage, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), deleteTask(t, ""))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDeleteImageHandler_StorageErrorIsRetried(t *testing.T) {
	h := NewDeleteImageHandler(&stubImageService{deleteErr: errors.New("timeout")})

	err := h.ProcessTask(context.Background(), deleteTask(t, "dune.jpg"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSweepOrphansHandler(t *testing.T) {
	images := &stubImageService{}
	h := NewSweepOrphansHandler(images, 90*time.Minute)

	task := asynq.NewTask(shared.TypeSweepOrphanImages, nil)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, 90*time.Minute, images.grace)

	images.sweepErr = errors.New("list failed")
	assert.Error(t, h.ProcessTask(context.Background(), task))
}
