package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usermgmt/internal/domain/entity"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/repository"
)

func newUser(name, email string) *entity.User {
	return &entity.User{
		Name:  name,
		Email: email,
		Credential: &entity.Credential{
			Algorithm: entity.AlgorithmScrypt,
			Salt:      "c2FsdA==",
			Hash:      "aGFzaA==",
			Params:    entity.ScryptParams{N: 16384, R: 8, P: 1, KeyLength: 64},
		},
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	user := newUser("Test User", "test@example.com")
	require.NoError(t, repo.Create(ctx, user))
	require.NotEmpty(t, user.ID)

	found, err := repo.FindByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	name := "Renamed"
	email := "renamed@example.com"
	updated, err := repo.Update(ctx, user.ID, entity.UserPatch{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "renamed@example.com", updated.Email)

	_, err = repo.FindByEmail(ctx, "test@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", byID.Name)

	require.NoError(t, repo.Delete(ctx, user.ID))
	_, err = repo.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, user.ID), repository.ErrUserNotFound)

	_, err = repo.Update(ctx, user.ID, entity.UserPatch{Name: &name})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_UniqueEmail(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	first := newUser("First", "first@example.com")
	require.NoError(t, repo.Create(ctx, first))
	second := newUser("Second", "second@example.com")
	require.NoError(t, repo.Create(ctx, second))

	err := repo.Create(ctx, newUser("Dup", "first@example.com"))
	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)

	taken := "first@example.com"
	_, err = repo.Update(ctx, second.ID, entity.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)

	same := "second@example.com"
	_, err = repo.Update(ctx, second.ID, entity.UserPatch{Email: &same})
	assert.NoError(t, err)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	user := newUser("Original", "copy@example.com")
	require.NoError(t, repo.Create(ctx, user))

	user.Name = "mutated by caller"
	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	found.Credential.Hash = "tampered"

	again, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Name)
	assert.Equal(t, "aGFzaA==", again.Credential.Hash)
}

func TestUserRepository_ConcurrentCreateSameEmail(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Create(ctx, newUser(fmt.Sprintf("user-%d", i), "race@example.com")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
