package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"grimoire-backend/internal/domains/book/model"
	"grimoire-backend/internal/domains/book/repository"
	"grimoire-backend/pkg/cache"
)

const (
	bookCacheTTL     = 10 * time.Minute
	topRatedCacheTTL = 2 * time.Minute
	// outlives any read that started before the write committed
	bookWriteMarkTTL = 30 * time.Second

	topRatedCachePattern = "books:top:*"
)

func bookCacheKey(id uuid.UUID) string {
	return "book:" + id.String()
}

func bookWriteMarkKey(id uuid.UUID) string {
	return "book:written:" + id.String()
}

func topRatedCacheKey(limit int) string {
	return fmt.Sprintf("books:top:%d", limit)
}

type bookService struct {
	repo   repository.BookRepository
	images ImageService
	cache  cache.Cache // nil disables caching
}

func NewBookService(repo repository.BookRepository, images ImageService, c cache.Cache) BookService {
	return &bookService{
		repo:   repo,
		images: images,
		cache:  c,
	}
}

func (s *bookService) CreateBook(ctx context.Context, ownerID uuid.UUID, req model.CreateBookRequest, imageURL string) (*model.Book, error) {
	if imageURL == "" {
		return nil, model.ErrImageRequired
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		s.images.ScheduleDeletion(ctx, imageURL)
		return nil, err
	}

	book := req.NewBook(ownerID, imageURL)
	if err := s.repo.Create(ctx, book); err != nil {
		s.images.ScheduleDeletion(ctx, imageURL)
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.invalidateTopRated(ctx)

	log.Info().
		Str("book_id", book.ID.String()).
		Str("user_id", ownerID.String()).
		Msg("Book created")

	return book, nil
}

func (s *bookService) ListBooks(ctx context.Context) ([]model.Book, error) {
	books, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *bookService) GetBook(ctx context.Context, id string) (*model.Book, error) {
	bookID, err := uuid.Parse(id)
	if err != nil {
		return nil, model.ErrBookNotFound
	}

	key := bookCacheKey(bookID)
	var cached model.Book
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	book, err := s.repo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, book, bookCacheTTL)
	// the row may have been read before a concurrent write committed
	if s.recentlyWritten(ctx, bookID) {
		s.cacheDelete(ctx, key)
	}
	return book, nil
}

func (s *bookService) TopRated(ctx context.Context, limit int) ([]model.Book, error) {
	limit = model.ClampTopRatedLimit(limit)

	key := topRatedCacheKey(limit)
	var cached []model.Book
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	books, err := s.repo.TopRated(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top rated books: %w", err)
	}

	s.cacheSet(ctx, key, books, topRatedCacheTTL)
	return books, nil
}

func (s *bookService) UpdateBook(ctx context.Context, id string, requesterID uuid.UUID, req model.UpdateBookRequest, newImageURL string) (book *model.Book, err error) {
	// a freshly uploaded file must not outlive a failed update
	defer func() {
		if err != nil && newImageURL != "" {
			s.images.ScheduleDeletion(ctx, newImageURL)
		}
	}()

	bookID, err := uuid.Parse(id)
	if err != nil {
		return nil, model.ErrBookNotFound
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	book, err = s.repo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !book.IsOwnedBy(requesterID) {
		return nil, model.ErrNotOwner
	}

	oldImageURL := book.ImageURL
	req.Apply(book)
	if newImageURL != "" {
		book.ImageURL = newImageURL
	}

	if err := s.repo.Update(ctx, book); err != nil {
		if errors.Is(err, model.ErrBookNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	if newImageURL != "" && oldImageURL != newImageURL {
		s.images.ScheduleDeletion(ctx, oldImageURL)
	}
	s.invalidate(ctx, book.ID)

	log.Info().
		Str("book_id", book.ID.String()).
		Bool("image_replaced", newImageURL != "").
		Msg("Book updated")

	return book, nil
}

func (s *bookService) DeleteBook(ctx context.Context, id string, requesterID uuid.UUID) error {
	bookID, err := uuid.Parse(id)
	if err != nil {
		return model.ErrBookNotFound
	}

	book, err := s.repo.GetByID(ctx, bookID)
	if err != nil {
		return err
	}
	if !book.IsOwnedBy(requesterID) {
		return model.ErrNotOwner
	}

	if err := s.repo.Delete(ctx, bookID); err != nil {
		if errors.Is(err, model.ErrBookNotFound) {
			return err
		}
		return fmt.Errorf("delete book: %w", err)
	}

	// the record is gone first so imageUrl never points at a missing file
	s.images.ScheduleDeletion(ctx, book.ImageURL)
	s.invalidate(ctx, bookID)

	log.Info().
		Str("book_id", bookID.String()).
		Msg("Book deleted")

	return nil
}

func (s *bookService) AddRating(ctx context.Context, bookID string, userID uuid.UUID, grade int) (*model.Book, error) {
	if !model.ValidGrade(grade) {
		return nil, model.ErrInvalidGrade
	}

	id, err := uuid.Parse(bookID)
	if err != nil {
		return nil, model.ErrBookNotFound
	}

	book, err := s.repo.AddRating(ctx, id, userID, grade)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBookNotFound),
			errors.Is(err, model.ErrAlreadyRated),
			errors.Is(err, model.ErrInvalidGrade):
			return nil, err
		}
		return nil, fmt.Errorf("add rating: %w", err)
	}

	s.invalidate(ctx, id)
	return book, nil
}

// invalidate drops every cache entry a write to bookID can make stale. The
// write mark goes in before the delete: a GetBook racing with the write either
// sees the mark after its cache write, or its entry is removed by the delete.
func (s *bookService) invalidate(ctx context.Context, bookID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, bookWriteMarkKey(bookID), true, bookWriteMarkTTL); err != nil {
		log.Warn().Err(err).Str("book_id", bookID.String()).Msg("Failed to mark book as written")
	}
	s.cacheDelete(ctx, bookCacheKey(bookID))
	s.invalidateTopRated(ctx)
}

func (s *bookService) invalidateTopRated(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, topRatedCachePattern); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate top rated cache")
	}
}

// recentlyWritten reports a write to bookID within bookWriteMarkTTL. An
// unreadable mark counts as written.
func (s *bookService) recentlyWritten(ctx context.Context, bookID uuid.UUID) bool {
	if s.cache == nil {
		return false
	}
	var marked bool
	found, err := s.cache.Get(ctx, bookWriteMarkKey(bookID), &marked)
	if err != nil {
		return true
	}
	return found
}

func (s *bookService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return false
	}
	return found
}

func (s *bookService) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (s *bookService) cacheDelete(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate cache")
	}
}
