package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinGrade = 1
	MaxGrade = 5

	DefaultTopRatedLimit = 3
	MaxTopRatedLimit     = 3

	// ImagePathSegment separates the public base URL from the stored file name.
	ImagePathSegment = "/images/"
)

// Rating is one user's grade for a book.
type Rating struct {
	UserID uuid.UUID `json:"userId" db:"user_id"`
	Grade  int       `json:"grade" db:"grade"`
}

// Book is the catalog entry. The JSON shape is the one the web client reads.
type Book struct {
	ID            uuid.UUID `json:"_id" db:"id"`
	UserID        uuid.UUID `json:"userId" db:"user_id"`
	Title         string    `json:"title" db:"title"`
	Author        string    `json:"author" db:"author"`
	Year          int       `json:"year" db:"year"`
	Genre         string    `json:"genre" db:"genre"`
	ImageURL      string    `json:"imageUrl" db:"image_url"`
	Ratings       []Rating  `json:"ratings"`
	AverageRating float64   `json:"averageRating" db:"average_rating"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

func (b *Book) IsOwnedBy(userID uuid.UUID) bool {
	return b.UserID == userID
}

func (b *Book) HasRatingFrom(userID uuid.UUID) bool {
	for _, r := range b.Ratings {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// AddRating appends a grade and recomputes the average.
func (b *Book) AddRating(userID uuid.UUID, grade int) error {
	if !ValidGrade(grade) {
		return ErrInvalidGrade
	}
	if b.HasRatingFrom(userID) {
		return ErrAlreadyRated
	}

	b.Ratings = append(b.Ratings, Rating{UserID: userID, Grade: grade})
	b.AverageRating = AverageOf(b.Ratings)
	return nil
}

func ValidGrade(grade int) bool {
	return grade >= MinGrade && grade <= MaxGrade
}

// AverageOf is the arithmetic mean of the grades, 0 for none.
func AverageOf(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Grade
	}
	return float64(sum) / float64(len(ratings))
}

// FilenameFromURL extracts the file name after the last "/images/" segment.
func FilenameFromURL(imageURL string) string {
	idx := strings.LastIndex(imageURL, ImagePathSegment)
	if idx < 0 {
		return ""
	}
	name := imageURL[idx+len(ImagePathSegment):]
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name
}

// ClampTopRatedLimit keeps limit within [1, MaxTopRatedLimit]; <= 0 means default.
func ClampTopRatedLimit(limit int) int {
	if limit <= 0 {
		return DefaultTopRatedLimit
	}
	if limit > MaxTopRatedLimit {
		return MaxTopRatedLimit
	}
	return limit
}
