package repository

import (
	"context"

	"github.com/google/uuid"

	"grimoire-backend/internal/domains/book/model"
)

// BookRepository persists books and their ratings.
type BookRepository interface {
	// Create assigns ID and timestamps, then stores the book with its ratings.
	Create(ctx context.Context, book *model.Book) error
	List(ctx context.Context) ([]model.Book, error)
	// GetByID returns model.ErrBookNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error)
	// TopRated orders by average rating, oldest first on ties.
	TopRated(ctx context.Context, limit int) ([]model.Book, error)
	// Update writes metadata and image URL; ratings are not touched.
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id uuid.UUID) error
	// AddRating appends one rating and the new average atomically.
	AddRating(ctx context.Context, bookID, userID uuid.UUID, grade int) (*model.Book, error)
	// ImageURLs lists every image URL still referenced by a book.
	ImageURLs(ctx context.Context) ([]string, error)
}
