// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"usermgmt/internal/domain/entity"
)

// TokenTypeBearer is the scheme clients present access tokens with.
const TokenTypeBearer = "Bearer"

// --- Input DTOs ---

// RegisterUserInput defines the data required to register a new user.
type RegisterUserInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateUserInput carries a partial update. Nil fields are left unchanged.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
}

// IsEmpty reports whether no field was supplied.
func (in UpdateUserInput) IsEmpty() bool {
	return in.Name == nil && in.Email == nil && in.Password == nil
}

// --- Output DTOs ---

// LoginOutput returns the issued access token after a successful login.
type LoginOutput struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64 // seconds
	ExpiresAt   time.Time
	User        *entity.User
}

// UserUsecase defines the interface for user-related business operations.
// requesterID is the authenticated account ID, empty for anonymous callers.
type UserUsecase interface {
	RegisterUser(ctx context.Context, input RegisterUserInput) (*entity.User, error)
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)
	ListUsers(ctx context.Context, requesterID string) ([]*entity.User, error)
	GetUser(ctx context.Context, requesterID, id string) (*entity.User, error)
	UpdateUser(ctx context.Context, requesterID, id string, input UpdateUserInput) (*entity.User, error)
	DeleteUser(ctx context.Context, requesterID, id string) error
}
