package user

import "context"

// Repository is the user store.
type Repository interface {
	// Create returns ErrEmailAlreadyExists when the email is taken.
	Create(ctx context.Context, user *User) error
	// FindByEmail returns ErrUserNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*User, error)
}
