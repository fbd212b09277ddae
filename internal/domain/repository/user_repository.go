// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"usermgmt/internal/domain/entity"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the standard operations for account persistence.
// Implementations enforce a unique constraint on the normalized email and report
// a violation as domainerrors.ErrUserAlreadyExists.
type UserRepository interface {
	// FindByID retrieves a single user by their opaque ID.
	FindByID(ctx context.Context, id string) (*entity.User, error)

	// FindByEmail retrieves a single user by their normalized email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// List returns every stored user, oldest first.
	List(ctx context.Context) ([]*entity.User, error)

	// Create persists a new user and fills in its ID and timestamps.
	Create(ctx context.Context, user *entity.User) error

	// Update applies patch to the user with the given ID and returns the stored result.
	Update(ctx context.Context, id string, patch entity.UserPatch) (*entity.User, error)

	// Delete removes the user with the given ID.
	Delete(ctx context.Context, id string) error
}
