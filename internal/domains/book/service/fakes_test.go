package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimoire-backend/internal/domains/book/model"
	"grimoire-backend/internal/infrastructure/storage"
)

// fakeBookRepo is an in-memory BookRepository.
type fakeBookRepo struct {
	mu      sync.Mutex
	books   map[uuid.UUID]*model.Book
	order   []uuid.UUID
	clock   time.Time
	failErr error
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{
		books: map[uuid.UUID]*model.Book{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func clone(b *model.Book) *model.Book {
	c := *b
	c.Ratings = append([]model.Rating{}, b.Ratings...)
	return &c
}

func (r *fakeBookRepo) Create(ctx context.Context, b *model.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.clock = r.clock.Add(time.Second)
	b.ID = uuid.New()
	b.CreatedAt = r.clock
	b.UpdatedAt = r.clock
	b.AverageRating = model.AverageOf(b.Ratings)
	r.books[b.ID] = clone(b)
	r.order = append(r.order, b.ID)
	return nil
}

func (r *fakeBookRepo) List(ctx context.Context) ([]model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Book, 0, len(r.order))
	for _, id := range r.order {
		if b, ok := r.books[id]; ok {
			out = append(out, *clone(b))
		}
	}
	return out, nil
}

func (r *fakeBookRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, model.ErrBookNotFound
	}
	return clone(b), nil
}

func (r *fakeBookRepo) TopRated(ctx context.Context, limit int) ([]model.Book, error) {
	all, _ := r.List(ctx)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].AverageRating != all[j].AverageRating {
			return all[i].AverageRating > all[j].AverageRating
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeBookRepo) Update(ctx context.Context, b *model.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	stored, ok := r.books[b.ID]
	if !ok {
		return model.ErrBookNotFound
	}
	stored.Title, stored.Author, stored.Year, stored.Genre, stored.ImageURL = b.Title, b.Author, b.Year, b.Genre, b.ImageURL
	return nil
}

func (r *fakeBookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return model.ErrBookNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *fakeBookRepo) AddRating(ctx context.Context, bookID, userID uuid.UUID, grade int) (*model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return nil, model.ErrBookNotFound
	}
	if err := b.AddRating(userID, grade); err != nil {
		return nil, err
	}
	return clone(b), nil
}

func (r *fakeBookRepo) ImageURLs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var urls []string
	for _, b := range r.books {
		urls = append(urls, b.ImageURL)
	}
	return urls, nil
}

// racingRepo runs onRead once, after GetByID has read a book and before it
// returns, like a write committing while a reader is in flight.
type racingRepo struct {
	*fakeBookRepo
	onRead func()
}

func (r *racingRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	b, err := r.fakeBookRepo.GetByID(ctx, id)
	if hook := r.onRead; hook != nil {
		r.onRead = nil
		hook()
	}
	return b, err
}

// fakeImages records scheduled deletions instead of touching storage.
type fakeImages struct {
	mu        sync.Mutex
	scheduled []string
}

func (f *fakeImages) ScheduleDeletion(ctx context.Context, imageURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, imageURL)
}

func (f *fakeImages) DeleteImage(ctx context.Context, filename string) error { return nil }

func (f *fakeImages) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	return 0, nil
}

func (f *fakeImages) Wait() {}

func (f *fakeImages) Scheduled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.scheduled...)
}

// fakeCache is a map backed cache.Cache.
type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	onSet   func(key string) // runs once, after the next Set
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return false, errors.New("redis down")
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = raw
	hook := c.onSet
	c.onSet = nil
	c.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *fakeCache) Ping(ctx context.Context) error { return nil }

func (c *fakeCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// memStorage is an in-memory storage.ObjectStorage.
type memStorage struct {
	mu      sync.Mutex
	objects map[string]storage.ObjectInfo
	failDel bool
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string]storage.ObjectInfo{}}
}

func (s *memStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return s.putAt(key, int64(len(data)), time.Now())
}

func (s *memStorage) putAt(key string, size int64, modified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = storage.ObjectInfo{Key: key, Size: size, LastModified: modified}
	return nil
}

func (s *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.objects[key]
	if !ok {
		return nil, nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader("")), &info, nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDel {
		return errors.New("storage unavailable")
	}
	delete(s.objects, key)
	return nil
}

func (s *memStorage) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.ObjectInfo, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	return out, nil
}

func (s *memStorage) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// fakeEnqueuer records enqueued filenames or fails.
type fakeEnqueuer struct {
	mu    sync.Mutex
	files []string
	err   error
}

func (e *fakeEnqueuer) EnqueueDeleteImage(ctx context.Context, filename string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.files = append(e.files, filename)
	return nil
}
