package user

import "context"

// Service handles account creation and credential checks.
type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}
