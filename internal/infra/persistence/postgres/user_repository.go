// Package postgres contains the relational implementation of the persistence layer using GORM.
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"usermgmt/internal/domain/entity"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/repository"
	"usermgmt/internal/infra/persistence/model"
)

// userRepository implements the repository.UserRepository interface using GORM.
type userRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserRepository is the constructor for userRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// FindByID retrieves a single user by ID. Non-UUID IDs cannot exist and read as not found.
func (repo *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrUserNotFound
	}

	return repo.first(ctx, "id = ?", id)
}

// FindByEmail retrieves a single user by normalized email.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return repo.first(ctx, "email = ?", email)
}

func (repo *userRepository) first(ctx context.Context, query string, arg any) (*entity.User, error) {
	var userM model.UserModel
	if err := repo.db.WithContext(ctx).Where(query, arg).First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find user")
	}

	return toUserDomain(&userM), nil
}

// List returns all users ordered by creation time.
func (repo *userRepository) List(ctx context.Context) ([]*entity.User, error) {
	var models []model.UserModel
	if err := repo.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list users")
	}

	users := make([]*entity.User, 0, len(models))
	for i := range models {
		users = append(users, toUserDomain(&models[i]))
	}

	return users, nil
}

// Create inserts a new row with an application-generated UUIDv7.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	id, err := uuid.NewV7()
	if err != nil {
		return domainerrors.ErrUserCreationFailed.WrapMessage("failed to generate user id")
	}

	now := repo.now()
	userM := fromUserDomain(user)
	userM.ID = id.String()
	userM.CreatedAt = now
	userM.UpdatedAt = now

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrUserCreationFailed.WrapMessage("missing required user information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	user.ID = userM.ID
	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

// Update writes the patched columns and reads the row back.
func (repo *userRepository) Update(ctx context.Context, id string, patch entity.UserPatch) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrUserNotFound
	}

	updates := map[string]any{"updated_at": repo.now()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if c := patch.Credential; c != nil {
		updates["credential_algorithm"] = c.Algorithm
		updates["credential_salt"] = c.Salt
		updates["credential_hash"] = c.Hash
		updates["credential_n"] = c.Params.N
		updates["credential_r"] = c.Params.R
		updates["credential_p"] = c.Params.P
		updates["credential_key_length"] = c.Params.KeyLength
	}

	result := repo.db.WithContext(ctx).Model(&model.UserModel{}).Where("id = ?", id).Updates(updates)
	if err := result.Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return nil, domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}
		if isNotNullConstraintViolation(err) {
			return nil, domainerrors.ErrUserUpdateFailed.WrapMessage("missing required user information")
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to update user")
	}
	if result.RowsAffected == 0 {
		return nil, repository.ErrUserNotFound
	}

	return repo.first(ctx, "id = ?", id)
}

// Delete removes the row with the given ID.
func (repo *userRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrUserNotFound
	}

	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.UserModel{})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete user")
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// --- Mapper Functions ---

func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	return &entity.User{
		ID:    data.ID,
		Name:  data.Name,
		Email: data.Email,
		Credential: &entity.Credential{
			Algorithm: data.Credential.Algorithm,
			Salt:      data.Credential.Salt,
			Hash:      data.Credential.Hash,
			Params: entity.ScryptParams{
				N:         data.Credential.N,
				R:         data.Credential.R,
				P:         data.Credential.P,
				KeyLength: data.Credential.KeyLength,
			},
		},
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}

func fromUserDomain(data *entity.User) *model.UserModel {
	userM := &model.UserModel{
		ID:    data.ID,
		Name:  data.Name,
		Email: data.Email,
	}
	if c := data.Credential; c != nil {
		userM.Credential = model.CredentialModel{
			Algorithm: c.Algorithm,
			Salt:      c.Salt,
			Hash:      c.Hash,
			N:         c.Params.N,
			R:         c.Params.R,
			P:         c.Params.P,
			KeyLength: c.Params.KeyLength,
		}
	}

	return userM
}
