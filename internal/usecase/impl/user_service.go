// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/sync/semaphore"

	"usermgmt/config"
	deliverycontext "usermgmt/internal/delivery/context"
	"usermgmt/internal/domain/entity"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/repository"
	"usermgmt/internal/domain/service"
	"usermgmt/internal/usecase"
)

// userService implements the UserUsecase interface.
type userService struct {
	userRepo          repository.UserRepository
	hasher            service.PasswordHasher
	tokenService      service.TokenService
	publisher         service.EventPublisher
	kdfSlots          *semaphore.Weighted
	dummyCredential   *entity.Credential
	passwordMinLength int
	passwordMaxLength int
	now               func() time.Time
	logger            *slog.Logger
}

// UserServiceParams holds dependencies for UserService, injected by Fx.
type UserServiceParams struct {
	fx.In

	UserRepo     repository.UserRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	Publisher    service.EventPublisher
	Config       *config.Config
	Logger       *slog.Logger
}

// NewUserService is the constructor for userService. It receives all dependencies as interfaces.
func NewUserService(params UserServiceParams) usecase.UserUsecase {
	auth := params.Config.Auth

	return &userService{
		userRepo:          params.UserRepo,
		hasher:            params.Hasher,
		tokenService:      params.TokenService,
		publisher:         params.Publisher,
		kdfSlots:          semaphore.NewWeighted(int64(max(auth.MaxConcurrentHashes, 1))),
		dummyCredential:   newDummyCredential(auth.Scrypt),
		passwordMinLength: auth.PasswordMinLength,
		passwordMaxLength: auth.PasswordMaxLength,
		now:               func() time.Time { return time.Now().UTC() },
		logger:            params.Logger,
	}
}

// newDummyCredential builds a well-formed credential no password matches.
// Login verifies against it when the email is unknown so both paths pay for one derivation.
func newDummyCredential(sc config.ScryptConfig) *entity.Credential {
	return &entity.Credential{
		Algorithm: entity.AlgorithmScrypt,
		Salt:      base64.StdEncoding.EncodeToString(make([]byte, sc.SaltLength)),
		Hash:      base64.StdEncoding.EncodeToString(make([]byte, sc.KeyLength)),
		Params: entity.ScryptParams{
			N:         sc.N,
			R:         sc.R,
			P:         sc.P,
			KeyLength: sc.KeyLength,
		},
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *userService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// RegisterUser creates a new account with a freshly hashed credential.
func (srv *userService) RegisterUser(ctx context.Context, input usecase.RegisterUserInput) (*entity.User, error) {
	name := strings.TrimSpace(input.Name)
	email := entity.NormalizeEmail(input.Email)
	if name == "" || email == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("name and email are required")
	}

	srv.log(ctx).Info("Starting registration", slog.String("email", email))

	credential, err := srv.hashPassword(ctx, input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:       name,
		Email:      email,
		Credential: credential,
	}
	if err := srv.userRepo.Create(ctx, user); err != nil {
		srv.log(ctx).Warn("Failed to create user", slog.String("email", email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to create user during registration")
	}

	srv.log(ctx).Debug("Registration completed", slog.String("userID", user.ID))
	srv.publish(ctx, service.EventUserRegistered, user)

	return user, nil
}

// Login verifies the password and issues an access token.
// Unknown emails and wrong passwords fail identically.
func (srv *userService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	email := entity.NormalizeEmail(input.Email)
	srv.log(ctx).Debug("Starting user login", slog.String("email", email))

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(err, "failed to load user for login")
	}

	credential := srv.dummyCredential
	if user != nil {
		credential = user.Credential
	}

	matched, err := srv.verifyPassword(ctx, input.Password, credential)
	if err != nil {
		return nil, err
	}
	if user == nil || !matched {
		srv.log(ctx).Warn("Login failed", slog.String("email", email))

		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "login failed")
	}

	issued, err := srv.tokenService.IssueToken(user.ID)
	if err != nil {
		srv.log(ctx).Error("Failed to issue token", slog.String("userID", user.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to issue access token")
	}

	srv.log(ctx).Debug("User logged in successfully", slog.String("userID", user.ID))

	return &usecase.LoginOutput{
		AccessToken: issued.Token,
		TokenType:   usecase.TokenTypeBearer,
		ExpiresIn:   int64(srv.tokenService.TokenTTL() / time.Second),
		ExpiresAt:   issued.ExpiresAt,
		User:        user,
	}, nil
}

// ListUsers returns every account to any authenticated caller.
func (srv *userService) ListUsers(ctx context.Context, requesterID string) ([]*entity.User, error) {
	if requesterID == "" {
		return nil, domainerrors.ErrUnauthenticated
	}

	users, err := srv.userRepo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}

	return users, nil
}

// GetUser returns the caller's own account.
func (srv *userService) GetUser(ctx context.Context, requesterID, id string) (*entity.User, error) {
	if err := service.AuthorizeOwner(requesterID, id); err != nil {
		return nil, err
	}

	user, err := srv.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "failed to get user")
	}

	return user, nil
}

// UpdateUser applies a partial update to the caller's own account.
func (srv *userService) UpdateUser(ctx context.Context, requesterID, id string, input usecase.UpdateUserInput) (*entity.User, error) {
	if err := service.AuthorizeOwner(requesterID, id); err != nil {
		srv.log(ctx).Warn("Update rejected", slog.String("requesterID", requesterID), slog.String("userID", id), slog.Any("error", err))

		return nil, err
	}
	if input.IsEmpty() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("at least one of name, email or password is required")
	}

	var patch entity.UserPatch
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domainerrors.ErrValidationFailed.WithDetails("name must not be empty")
		}
		patch.Name = &name
	}
	if input.Email != nil {
		email := entity.NormalizeEmail(*input.Email)
		if email == "" {
			return nil, domainerrors.ErrValidationFailed.WithDetails("email must not be empty")
		}
		patch.Email = &email
	}
	if input.Password != nil {
		credential, err := srv.hashPassword(ctx, *input.Password)
		if err != nil {
			return nil, err
		}
		patch.Credential = credential
	}

	user, err := srv.userRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, mapNotFound(err, "failed to update user")
	}

	srv.log(ctx).Debug("User updated", slog.String("userID", id), slog.Bool("passwordChanged", patch.Credential != nil))
	srv.publish(ctx, service.EventUserUpdated, user)

	return user, nil
}

// DeleteUser removes the caller's own account.
func (srv *userService) DeleteUser(ctx context.Context, requesterID, id string) error {
	if err := service.AuthorizeOwner(requesterID, id); err != nil {
		srv.log(ctx).Warn("Delete rejected", slog.String("requesterID", requesterID), slog.String("userID", id), slog.Any("error", err))

		return err
	}

	if err := srv.userRepo.Delete(ctx, id); err != nil {
		return mapNotFound(err, "failed to delete user")
	}

	srv.log(ctx).Info("User deleted", slog.String("userID", id))
	srv.publish(ctx, service.EventUserDeleted, &entity.User{ID: id})

	return nil
}

// hashPassword enforces the length policy and derives a credential within a KDF slot.
func (srv *userService) hashPassword(ctx context.Context, password string) (*entity.Credential, error) {
	if err := srv.checkPasswordPolicy(password); err != nil {
		return nil, err
	}

	if err := srv.acquireKDF(ctx); err != nil {
		return nil, err
	}
	defer srv.kdfSlots.Release(1)

	credential, err := srv.hasher.Hash(password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password", slog.Any("error", err))

		return nil, domainerrors.ErrPasswordHashFailed.WrapMessage(err.Error())
	}

	return credential, nil
}

func (srv *userService) verifyPassword(ctx context.Context, password string, credential *entity.Credential) (bool, error) {
	if err := srv.acquireKDF(ctx); err != nil {
		return false, err
	}
	defer srv.kdfSlots.Release(1)

	return srv.hasher.Verify(password, credential), nil
}

func (srv *userService) acquireKDF(ctx context.Context) error {
	if err := srv.kdfSlots.Acquire(ctx, 1); err != nil {
		srv.log(ctx).Warn("No KDF slot available", slog.Any("error", err))

		return domainerrors.ErrServiceBusy.WrapMessage(err.Error())
	}

	return nil
}

func (srv *userService) checkPasswordPolicy(password string) error {
	length := utf8.RuneCountInString(password)
	if length < srv.passwordMinLength || length > srv.passwordMaxLength {
		return domainerrors.ErrPasswordPolicy.WithDetails(
			fmt.Sprintf("password must be between %d and %d characters", srv.passwordMinLength, srv.passwordMaxLength),
		)
	}

	return nil
}

// publish emits an account event. Delivery failures are logged and never fail the request.
func (srv *userService) publish(ctx context.Context, eventType string, user *entity.User) {
	event := &service.AccountEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		Type:       eventType,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: srv.now(),
	}

	if err := srv.publisher.PublishAccountEvent(ctx, event); err != nil {
		srv.log(ctx).Warn("Failed to publish account event",
			slog.String("event_type", eventType),
			slog.String("userID", user.ID),
			slog.Any("error", err),
		)
	}
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return domainerrors.ErrUserNotFound
	}

	return errors.Wrap(err, msg)
}
