package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"grimoire-backend/internal/domains/book/model"
)

// BookService is the catalog use case layer. Book ids arrive as raw path
// strings; malformed ids behave like unknown ones.
type BookService interface {
	CreateBook(ctx context.Context, ownerID uuid.UUID, req model.CreateBookRequest, imageURL string) (*model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id string) (*model.Book, error)
	TopRated(ctx context.Context, limit int) ([]model.Book, error)
	UpdateBook(ctx context.Context, id string, requesterID uuid.UUID, req model.UpdateBookRequest, newImageURL string) (*model.Book, error)
	DeleteBook(ctx context.Context, id string, requesterID uuid.UUID) error
	AddRating(ctx context.Context, bookID string, userID uuid.UUID, grade int) (*model.Book, error)
}

// ImageService owns the lifecycle of stored cover files.
type ImageService interface {
	// ScheduleDeletion removes the file behind imageURL in the background.
	// It never blocks on storage and never reports failure.
	ScheduleDeletion(ctx context.Context, imageURL string)
	// DeleteImage removes a stored file now; a missing file is not an error.
	DeleteImage(ctx context.Context, filename string) error
	// SweepOrphans deletes stored files no book references and that are
	// older than grace. It returns how many were removed.
	SweepOrphans(ctx context.Context, grace time.Duration) (int, error)
	// Wait blocks until in-process deletions have finished.
	Wait()
}

// TaskEnqueuer hands image deletions to the background worker.
type TaskEnqueuer interface {
	EnqueueDeleteImage(ctx context.Context, filename string) error
}
