package model

import "errors"

var (
	ErrBookNotFound  = errors.New("book not found")
	ErrNotOwner      = errors.New("not authorized to modify this book")
	ErrAlreadyRated  = errors.New("user has already rated this book")
	ErrInvalidGrade  = errors.New("grade must be between 1 and 5")
	ErrImageRequired = errors.New("image file is required")
	ErrRaterMismatch = errors.New("userId does not match the authenticated user")
)
