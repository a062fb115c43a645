package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"grimoire-backend/internal/shared"
)

const (
	MinYear = -3000
	MaxYear = 9999
)

// Year accepts both 1999 and "1999"; the web form sends strings.
type Year int

func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*y = 0
			return nil
		}
	} else {
		s = string(data)
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("year must be an integer, got %s", data)
	}
	*y = Year(n)
	return nil
}

// CreateBookRequest is the "book" JSON document of a create call.
// Client supplied _id, userId and averageRating are not part of it and so are dropped.
type CreateBookRequest struct {
	Title   string   `json:"title"`
	Author  string   `json:"author"`
	Year    Year     `json:"year"`
	Genre   string   `json:"genre"`
	Ratings []Rating `json:"ratings"`
}

func (r *CreateBookRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	r.Genre = strings.TrimSpace(r.Genre)
}

func (r CreateBookRequest) Validate() error {
	return shared.NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Author, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Year, validation.Required, validation.Min(MinYear), validation.Max(MaxYear)),
		validation.Field(&r.Genre, validation.Required, validation.Length(1, 100)),
	))
}

// InitialRating returns the owner's own grade from the payload, if any.
// Entries from other users, or with a grade outside the range, are ignored.
func (r CreateBookRequest) InitialRating(ownerID uuid.UUID) (int, bool) {
	for _, rating := range r.Ratings {
		if rating.UserID != uuid.Nil && rating.UserID != ownerID {
			continue
		}
		if ValidGrade(rating.Grade) {
			return rating.Grade, true
		}
	}
	return 0, false
}

// NewBook builds the entity owned by ownerID.
func (r CreateBookRequest) NewBook(ownerID uuid.UUID, imageURL string) *Book {
	b := &Book{
		UserID:   ownerID,
		Title:    r.Title,
		Author:   r.Author,
		Year:     int(r.Year),
		Genre:    r.Genre,
		ImageURL: imageURL,
		Ratings:  []Rating{},
	}
	if grade, ok := r.InitialRating(ownerID); ok {
		_ = b.AddRating(ownerID, grade)
	}
	return b
}

// UpdateBookRequest carries the fields to change; nil means keep.
type UpdateBookRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Year   *Year   `json:"year"`
	Genre  *string `json:"genre"`
}

func (r *UpdateBookRequest) Normalize() {
	for _, f := range []*string{r.Title, r.Author, r.Genre} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

func (r UpdateBookRequest) Validate() error {
	return shared.NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Author, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Year, validation.NilOrNotEmpty, validation.Min(MinYear), validation.Max(MaxYear)),
		validation.Field(&r.Genre, validation.NilOrNotEmpty, validation.Length(1, 100)),
	))
}

// Apply merges the request into b. Identity, owner and ratings are untouched.
func (r UpdateBookRequest) Apply(b *Book) {
	if r.Title != nil {
		b.Title = *r.Title
	}
	if r.Author != nil {
		b.Author = *r.Author
	}
	if r.Year != nil {
		b.Year = int(*r.Year)
	}
	if r.Genre != nil {
		b.Genre = *r.Genre
	}
}

// RatingRequest is the body of POST /books/:id/rating.
type RatingRequest struct {
	UserID string `json:"userId"`
	Rating *int   `json:"rating"`
}

func (r RatingRequest) Validate() error {
	return shared.NewValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Rating, validation.NotNil, validation.Min(MinGrade), validation.Max(MaxGrade)),
	))
}

// RaterMatches reports whether the optional userId in the body names the caller.
func (r RatingRequest) RaterMatches(userID uuid.UUID) bool {
	if strings.TrimSpace(r.UserID) == "" {
		return true
	}
	id, err := uuid.Parse(strings.TrimSpace(r.UserID))
	return err == nil && id == userID
}
