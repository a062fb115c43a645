package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"grimoire-backend/internal/domains/book/model"
	"grimoire-backend/internal/domains/book/repository"
	"grimoire-backend/internal/infrastructure/storage"
)

const imageDeleteTimeout = 30 * time.Second

type imageService struct {
	repo     repository.BookRepository
	storage  storage.ObjectStorage
	enqueuer TaskEnqueuer // nil deletes in-process
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewImageService(repo repository.BookRepository, store storage.ObjectStorage, enqueuer TaskEnqueuer) ImageService {
	return &imageService{
		repo:     repo,
		storage:  store,
		enqueuer: enqueuer,
		now:      time.Now,
	}
}

func (s *imageService) ScheduleDeletion(ctx context.Context, imageURL string) {
	filename := model.FilenameFromURL(imageURL)
	if filename == "" {
		if imageURL != "" {
			log.Warn().Str("image_url", imageURL).Msg("Image URL does not name a stored file, skipping deletion")
		}
		return
	}

	// detached from the request: the response must not wait for storage
	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(bg, imageDeleteTimeout)
		defer cancel()

		if s.enqueuer != nil {
			err := s.enqueuer.EnqueueDeleteImage(ctx, filename)
			if err == nil {
				return
			}
			log.Warn().Err(err).Str("filename", filename).Msg("Failed to enqueue image deletion, deleting in-process")
		}

		if err := s.DeleteImage(ctx, filename); err != nil {
			log.Error().Err(err).Str("filename", filename).Msg("Failed to delete image")
		}
	}()
}

func (s *imageService) DeleteImage(ctx context.Context, filename string) error {
	if err := s.storage.Delete(ctx, filename); err != nil {
		return fmt.Errorf("delete image %s: %w", filename, err)
	}
	log.Debug().Str("filename", filename).Msg("Image deleted")
	return nil
}

func (s *imageService) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	urls, err := s.repo.ImageURLs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load referenced images: %w", err)
	}
	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if name := model.FilenameFromURL(u); name != "" {
			referenced[name] = struct{}{}
		}
	}

	objects, err := s.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored images: %w", err)
	}

	cutoff := s.now().Add(-grace)
	removed := 0
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		// uploads still in flight have no book row yet
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := s.DeleteImage(ctx, obj.Key); err != nil {
			log.Error().Err(err).Str("filename", obj.Key).Msg("Failed to delete orphan image")
			continue
		}
		removed++
	}

	log.Info().
		Int("stored", len(objects)).
		Int("referenced", len(referenced)).
		Int("removed", removed).
		Msg("Orphan image sweep finished")

	return removed, nil
}

func (s *imageService) Wait() {
	s.wg.Wait()
}
