package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimoire-backend/internal/domains/book/model"
	"grimoire-backend/internal/shared"
)

const coverURL = "http://localhost:4000/images/dune_1700000000000_abcd1234.jpg"

func strPtr(s string) *string { return &s }

func newTestService() (*bookService, *fakeBookRepo, *fakeImages, *fakeCache) {
	repo := newFakeBookRepo()
	images := &fakeImages{}
	c := newFakeCache()
	svc := NewBookService(repo, images, c).(*bookService)
	return svc, repo, images, c
}

func validCreateRequest() model.CreateBookRequest {
	return model.CreateBookRequest{
		Title:  " Dune ",
		Author: "Frank Herbert",
		Year:   1965,
		Genre:  "Science-fiction",
	}
}

func seedBook(t *testing.T, svc *bookService, owner uuid.UUID) *model.Book {
	t.Helper()
	book, err := svc.CreateBook(context.Background(), owner, validCreateRequest(), coverURL)
	require.NoError(t, err)
	return book
}

func TestCreateBook(t *testing.T) {
	svc, _, images, _ := newTestService()
	owner := uuid.New()

	req := validCreateRequest()
	req.Ratings = []model.Rating{{UserID: owner, Grade: 4}}

	book, err := svc.CreateBook(context.Background(), owner, req, coverURL)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, book.ID)
	assert.Equal(t, owner, book.UserID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, coverURL, book.ImageURL)
	require.Len(t, book.Ratings, 1)
	assert.Equal(t, 4.0, book.AverageRating)
	assert.Empty(t, images.Scheduled())
}

func TestCreateBook_RequiresImage(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CreateBook(context.Background(), uuid.New(), validCreateRequest(), "")
	assert.ErrorIs(t, err, model.ErrImageRequired)
}

func TestCreateBook_InvalidPayloadRemovesUpload(t *testing.T) {
	svc, repo, images, _ := newTestService()

	req := validCreateRequest()
	req.Title = "   "

	_, err := svc.CreateBook(context.Background(), uuid.New(), req, coverURL)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")

	assert.Equal(t, []string{coverURL}, images.Scheduled())
	books, _ := repo.List(context.Background())
	assert.Empty(t, books)
}

func TestCreateBook_RepositoryFailureRemovesUpload(t *testing.T) {
	svc, repo, images, _ := newTestService()
	repo.failErr = errors.New("connection reset")

	_, err := svc.CreateBook(context.Background(), uuid.New(), validCreateRequest(), coverURL)
	require.Error(t, err)
	assert.Equal(t, []string{coverURL}, images.Scheduled())
}

func TestGetBook(t *testing.T) {
	svc, _, _, c := newTestService()
	book := seedBook(t, svc, uuid.New())

	got, err := svc.GetBook(context.Background(), book.ID.String())
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)
	assert.True(t, c.Has(bookCacheKey(book.ID)))
}

func TestGetBook_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService()

	for _, id := range []string{"not-a-uuid", "", uuid.NewString()} {
		_, err := svc.GetBook(context.Background(), id)
		assert.ErrorIs(t, err, model.ErrBookNotFound, "id %q", id)
	}
}

func TestGetBook_ServedFromCache(t *testing.T) {
	svc, repo, _, _ := newTestService()
	book := seedBook(t, svc, uuid.New())

	_, err := svc.GetBook(context.Background(), book.ID.String())
	require.NoError(t, err)

	// once cached, the repository is no longer consulted
	require.NoError(t, repo.Delete(context.Background(), book.ID))
	got, err := svc.GetBook(context.Background(), book.ID.String())
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
}

func TestGetBook_ConcurrentWriteDoesNotLeaveStaleEntry(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		race func(repo *racingRepo, c *fakeCache, write func())
	}{
		{
			name: "write commits between read and cache write",
			race: func(repo *racingRepo, _ *fakeCache, write func()) { repo.onRead = write },
		},
		{
			name: "write lands right after cache write",
			race: func(_ *racingRepo, c *fakeCache, write func()) {
				c.onSet = func(string) { write() }
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &racingRepo{fakeBookRepo: newFakeBookRepo()}
			c := newFakeCache()
			svc := NewBookService(repo, &fakeImages{}, c).(*bookService)
			book := seedBook(t, svc, uuid.New())

			tt.race(repo, c, func() {
				_, err := svc.AddRating(ctx, book.ID.String(), uuid.New(), 5)
				require.NoError(t, err)
			})

			stale, err := svc.GetBook(ctx, book.ID.String())
			require.NoError(t, err)
			assert.Empty(t, stale.Ratings)
			assert.False(t, c.Has(bookCacheKey(book.ID)))

			fresh, err := svc.GetBook(ctx, book.ID.String())
			require.NoError(t, err)
			assert.Len(t, fresh.Ratings, 1)
			assert.Equal(t, 5.0, fresh.AverageRating)
		})
	}
}

func TestGetBook_CacheErrorFallsBackToRepository(t *testing.T) {
	svc, _, _, c := newTestService()
	book := seedBook(t, svc, uuid.New())
	c.failGet = true

	got, err := svc.GetBook(context.Background(), book.ID.String())
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
}

func TestGetBook_WithoutCache(t *testing.T) {
	repo := newFakeBookRepo()
	svc := NewBookService(repo, &fakeImages{}, nil)

	book, err := svc.CreateBook(context.Background(), uuid.New(), validCreateRequest(), coverURL)
	require.NoError(t, err)

	got, err := svc.GetBook(context.Background(), book.ID.String())
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
}

func TestTopRated(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	grades := []int{2, 5, 4, 5, 1}
	var ids []uuid.UUID
	for _, g := range grades {
		b := seedBook(t, svc, uuid.New())
		_, err := svc.AddRating(ctx, b.ID.String(), uuid.New(), g)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	top, err := svc.TopRated(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	// ties keep the oldest book first
	assert.Equal(t, ids[1], top[0].ID)
	assert.Equal(t, ids[3], top[1].ID)
	assert.Equal(t, ids[2], top[2].ID)

	top, err = svc.TopRated(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, top, 3)

	top, err = svc.TopRated(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestTopRated_FewerBooksThanLimit(t *testing.T) {
	svc, _, _, _ := newTestService()
	seedBook(t, svc, uuid.New())

	top, err := svc.TopRated(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestUpdateBook(t *testing.T) {
	svc, _, images, c := newTestService()
	owner := uuid.New()
	book := seedBook(t, svc, owner)
	_, _ = svc.GetBook(context.Background(), book.ID.String())
	_, _ = svc.TopRated(context.Background(), 3)

	newURL := "http://localhost:4000/images/dune_v2_1700000000001_00ff00ff.jpg"
	updated, err := svc.UpdateBook(context.Background(), book.ID.String(), owner,
		model.UpdateBookRequest{Title: strPtr("Dune Messiah")}, newURL)
	require.NoError(t, err)

	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, "Frank Herbert", updated.Author)
	assert.Equal(t, newURL, updated.ImageURL)
	assert.Equal(t, []string{coverURL}, images.Scheduled())

	assert.False(t, c.Has(bookCacheKey(book.ID)))
	assert.False(t, c.Has(topRatedCacheKey(3)))
}

func TestUpdateBook_WithoutNewImageKeepsCover(t *testing.T) {
	svc, _, images, _ := newTestService()
	owner := uuid.New()
	book := seedBook(t, svc, owner)

	updated, err := svc.UpdateBook(context.Background(), book.ID.String(), owner,
		model.UpdateBookRequest{Genre: strPtr("Classique")}, "")
	require.NoError(t, err)

	assert.Equal(t, coverURL, updated.ImageURL)
	assert.Equal(t, "Classique", updated.Genre)
	assert.Empty(t, images.Scheduled())
}

func TestUpdateBook_Failures(t *testing.T) {
	newURL := "http://localhost:4000/images/new_1700000000001_00ff00ff.jpg"

	tests := []struct {
		name    string
		id      func(b *model.Book) string
		as      func(owner uuid.UUID) uuid.UUID
		req     model.UpdateBookRequest
		wantErr error
	}{
		{
			name:    "not owner",
			id:      func(b *model.Book) string { return b.ID.String() },
			as:      func(uuid.UUID) uuid.UUID { return uuid.New() },
			wantErr: model.ErrNotOwner,
		},
		{
			name:    "unknown book",
			id:      func(*model.Book) string { return uuid.NewString() },
			as:      func(owner uuid.UUID) uuid.UUID { return owner },
			wantErr: model.ErrBookNotFound,
		},
		{
			name:    "malformed id",
			id:      func(*model.Book) string { return "42" },
			as:      func(owner uuid.UUID) uuid.UUID { return owner },
			wantErr: model.ErrBookNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, images, _ := newTestService()
			owner := uuid.New()
			book := seedBook(t, svc, owner)

			_, err := svc.UpdateBook(context.Background(), tt.id(book), tt.as(owner), tt.req, newURL)
			assert.ErrorIs(t, err, tt.wantErr)

			// the rejected upload is removed and the stored book is untouched
			assert.Equal(t, []string{newURL}, images.Scheduled())
			stored, err := repo.GetByID(context.Background(), book.ID)
			require.NoError(t, err)
			assert.Equal(t, coverURL, stored.ImageURL)
		})
	}
}

func TestUpdateBook_InvalidPayload(t *testing.T) {
	svc, _, images, _ := newTestService()
	owner := uuid.New()
	book := seedBook(t, svc, owner)

	_, err := svc.UpdateBook(context.Background(), book.ID.String(), owner,
		model.UpdateBookRequest{Title: strPtr("  ")}, "")
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, images.Scheduled())
}

func TestDeleteBook(t *testing.T) {
	svc, repo, images, _ := newTestService()
	owner := uuid.New()
	book := seedBook(t, svc, owner)

	require.NoError(t, svc.DeleteBook(context.Background(), book.ID.String(), owner))

	_, err := repo.GetByID(context.Background(), book.ID)
	assert.ErrorIs(t, err, model.ErrBookNotFound)
	assert.Equal(t, []string{coverURL}, images.Scheduled())

	err = svc.DeleteBook(context.Background(), book.ID.String(), owner)
	assert.ErrorIs(t, err, model.ErrBookNotFound)
}

func TestDeleteBook_NotOwner(t *testing.T) {
	svc, repo, images, _ := newTestService()
	book := seedBook(t, svc, uuid.New())

	err := svc.DeleteBook(context.Background(), book.ID.String(), uuid.New())
	assert.ErrorIs(t, err, model.ErrNotOwner)

	_, err = repo.GetByID(context.Background(), book.ID)
	assert.NoError(t, err)
	assert.Empty(t, images.Scheduled())
}

func TestAddRating(t *testing.T) {
	svc, _, _, c := newTestService()
	book := seedBook(t, svc, uuid.New())
	_, _ = svc.GetBook(context.Background(), book.ID.String())

	grades := []int{5, 2, 4, 1, 3, 5, 5}
	sum := 0
	for i, g := range grades {
		rated, err := svc.AddRating(context.Background(), book.ID.String(), uuid.New(), g)
		require.NoError(t, err)

		sum += g
		require.Len(t, rated.Ratings, i+1)
		assert.InDelta(t, float64(sum)/float64(i+1), rated.AverageRating, 1e-9, "after %d ratings", i+1)
		assert.Equal(t, g, rated.Ratings[i].Grade)

		stored, err := svc.GetBook(context.Background(), book.ID.String())
		require.NoError(t, err)
		assert.Equal(t, rated.AverageRating, stored.AverageRating)
	}
	assert.False(t, c.Has(bookCacheKey(book.ID)))
}

func TestAddRating_Failures(t *testing.T) {
	svc, _, _, _ := newTestService()
	book := seedBook(t, svc, uuid.New())
	rater := uuid.New()
	_, err := svc.AddRating(context.Background(), book.ID.String(), rater, 3)
	require.NoError(t, err)

	tests := []struct {
		name    string
		bookID  string
		userID  uuid.UUID
		grade   int
		wantErr error
	}{
		{name: "grade too low", bookID: book.ID.String(), userID: uuid.New(), grade: 0, wantErr: model.ErrInvalidGrade},
		{name: "grade too high", bookID: book.ID.String(), userID: uuid.New(), grade: 6, wantErr: model.ErrInvalidGrade},
		{name: "already rated", bookID: book.ID.String(), userID: rater, grade: 4, wantErr: model.ErrAlreadyRated},
		{name: "unknown book", bookID: uuid.NewString(), userID: uuid.New(), grade: 4, wantErr: model.ErrBookNotFound},
		{name: "malformed id", bookID: "abc", userID: uuid.New(), grade: 4, wantErr: model.ErrBookNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddRating(context.Background(), tt.bookID, tt.userID, tt.grade)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := svc.GetBook(context.Background(), book.ID.String())
	require.NoError(t, err)
	assert.Len(t, stored.Ratings, 1)
	assert.Equal(t, 3.0, stored.AverageRating)
}

func TestAddRating_ConcurrentSameUser(t *testing.T) {
	svc, _, _, _ := newTestService()
	book := seedBook(t, svc, uuid.New())
	rater := uuid.New()

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddRating(context.Background(), book.ID.String(), rater, 4)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, model.ErrAlreadyRated):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)

	stored, err := svc.GetBook(context.Background(), book.ID.String())
	require.NoError(t, err)
	assert.Len(t, stored.Ratings, 1)
}
