package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"grimoire-backend/internal/domains/book/model"
	"grimoire-backend/pkg/database"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

const bookColumns = `id, user_id, title, author, year, genre, image_url, average_rating, created_at, updated_at`

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) BookRepository {
	return &postgresRepository{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *postgresRepository) Create(ctx context.Context, book *model.Book) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO books (user_id, title, author, year, genre, image_url, average_rating)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`, book.UserID, book.Title, book.Author, book.Year, book.Genre, book.ImageURL, model.AverageOf(book.Ratings),
		).Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert book: %w", err)
		}

		for _, rating := range book.Ratings {
			if err := insertRating(ctx, tx, book.ID, rating); err != nil {
				return err
			}
		}
		book.AverageRating = model.AverageOf(book.Ratings)
		return nil
	})
}

func (r *postgresRepository) List(ctx context.Context) ([]model.Book, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	books, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}
	if err := loadRatings(ctx, r.pool, books); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	return getBook(ctx, r.pool, id, false)
}

func (r *postgresRepository) TopRated(ctx context.Context, limit int) ([]model.Book, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookColumns+`
		FROM books
		ORDER BY average_rating DESC, created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top rated books: %w", err)
	}
	books, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}
	if err := loadRatings(ctx, r.pool, books); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *postgresRepository) Update(ctx context.Context, book *model.Book) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE books
		SET title = $2, author = $3, year = $4, genre = $5, image_url = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, book.ID, book.Title, book.Author, book.Year, book.Genre, book.ImageURL).Scan(&book.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrBookNotFound
	}
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrBookNotFound
	}
	return nil
}

// AddRating locks the book row so concurrent raters serialize; the primary
// key on (book_id, user_id) backs the duplicate check.
func (r *postgresRepository) AddRating(ctx context.Context, bookID, userID uuid.UUID, grade int) (*model.Book, error) {
	return database.WithTransactionResult(ctx, r.pool, func(tx pgx.Tx) (*model.Book, error) {
		book, err := getBook(ctx, tx, bookID, true)
		if err != nil {
			return nil, err
		}

		if err := book.AddRating(userID, grade); err != nil {
			return nil, err
		}

		if err := insertRating(ctx, tx, bookID, model.Rating{UserID: userID, Grade: grade}); err != nil {
			return nil, err
		}

		err = tx.QueryRow(ctx, `
			UPDATE books SET average_rating = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, bookID, book.AverageRating).Scan(&book.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("update average rating: %w", err)
		}
		return book, nil
	})
}

func (r *postgresRepository) ImageURLs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT image_url FROM books WHERE image_url <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list image urls: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan image urls: %w", err)
	}
	return urls, nil
}

func getBook(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*model.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	book, err := scanBook(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	books := []model.Book{*book}
	if err := loadRatings(ctx, q, books); err != nil {
		return nil, err
	}
	return &books[0], nil
}

func insertRating(ctx context.Context, q querier, bookID uuid.UUID, rating model.Rating) error {
	_, err := q.Exec(ctx, `
		INSERT INTO book_ratings (book_id, user_id, grade)
		VALUES ($1, $2, $3)
	`, bookID, rating.UserID, rating.Grade)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return model.ErrAlreadyRated
		case pgCheckViolation:
			return model.ErrInvalidGrade
		case pgForeignKeyViolation:
			return model.ErrBookNotFound
		}
	}
	return fmt.Errorf("insert rating: %w", err)
}

// loadRatings fills Ratings for every book in place, in insertion order.
func loadRatings(ctx context.Context, q querier, books []model.Book) error {
	if len(books) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(books))
	index := make(map[uuid.UUID]int, len(books))
	for i := range books {
		ids[i] = books[i].ID
		index[books[i].ID] = i
		books[i].Ratings = []model.Rating{}
	}

	rows, err := q.Query(ctx, `
		SELECT book_id, user_id, grade
		FROM book_ratings
		WHERE book_id = ANY($1)
		ORDER BY seq
	`, ids)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID uuid.UUID
			rating model.Rating
		)
		if err := rows.Scan(&bookID, &rating.UserID, &rating.Grade); err != nil {
			return fmt.Errorf("scan rating: %w", err)
		}
		if i, ok := index[bookID]; ok {
			books[i].Ratings = append(books[i].Ratings, rating)
		}
	}
	return rows.Err()
}

func scanBook(row pgx.Row) (*model.Book, error) {
	var b model.Book
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.Title,
		&b.Author,
		&b.Year,
		&b.Genre,
		&b.ImageURL,
		&b.AverageRating,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Ratings = []model.Rating{}
	return &b, nil
}

func collectBooks(rows pgx.Rows) ([]model.Book, error) {
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return books, nil
}
