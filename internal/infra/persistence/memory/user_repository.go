// Package memory provides a process-local account store for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"usermgmt/internal/domain/entity"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/repository"
)

// userRepository keeps accounts in a map guarded by a mutex.
// Callers always receive copies, never the stored records.
type userRepository struct {
	mu      sync.RWMutex
	byID    map[string]*entity.User
	byEmail map[string]string
	now     func() time.Time
}

// NewUserRepository is the constructor for the in-memory store.
func NewUserRepository() repository.UserRepository {
	return &userRepository{
		byID:    make(map[string]*entity.User),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (repo *userRepository) FindByID(_ context.Context, id string) (*entity.User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	user, ok := repo.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return clone(user), nil
}

func (repo *userRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	id, ok := repo.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return clone(repo.byID[id]), nil
}

func (repo *userRepository) List(_ context.Context) ([]*entity.User, error) {
	repo.mu.RLock()
	users := make([]*entity.User, 0, len(repo.byID))
	for _, user := range repo.byID {
		users = append(users, clone(user))
	}
	repo.mu.RUnlock()

	slices.SortFunc(users, func(a, b *entity.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}

		return 0
	})

	return users, nil
}

func (repo *userRepository) Create(_ context.Context, user *entity.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, taken := repo.byEmail[user.Email]; taken {
		return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
	}

	now := repo.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	repo.byID[user.ID] = clone(user)
	repo.byEmail[user.Email] = user.ID

	return nil
}

func (repo *userRepository) Update(_ context.Context, id string, patch entity.UserPatch) (*entity.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored, ok := repo.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	if patch.Email != nil && *patch.Email != stored.Email {
		if _, taken := repo.byEmail[*patch.Email]; taken {
			return nil, domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}
		delete(repo.byEmail, stored.Email)
		repo.byEmail[*patch.Email] = id
	}

	patch.Apply(stored, repo.now())

	return clone(stored), nil
}

func (repo *userRepository) Delete(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored, ok := repo.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}

	delete(repo.byEmail, stored.Email)
	delete(repo.byID, id)

	return nil
}

func clone(user *entity.User) *entity.User {
	cp := *user
	if user.Credential != nil {
		credential := *user.Credential
		cp.Credential = &credential
	}

	return &cp
}
