package impl

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	deliverycontext "usermgmt/internal/delivery/context"
	"usermgmt/internal/domain/entity"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/repository"
	"usermgmt/internal/domain/service"
	mockRepo "usermgmt/internal/mocks/repository"
	mockSvc "usermgmt/internal/mocks/service"
	"usermgmt/internal/usecase"
)

// userServiceFixtures holds all test dependencies for user service tests.
type userServiceFixtures struct {
	service      *userService
	userRepo     *mockRepo.MockUserRepository
	hasher       *mockSvc.MockPasswordHasher
	tokenService *mockSvc.MockTokenService
	publisher    *mockSvc.MockEventPublisher
}

func createTestUserService(t *testing.T) userServiceFixtures {
	userRepo := mockRepo.NewMockUserRepository(t)
	hasher := mockSvc.NewMockPasswordHasher(t)
	tokenService := mockSvc.NewMockTokenService(t)
	publisher := mockSvc.NewMockEventPublisher(t)

	svc := NewUserService(UserServiceParams{
		UserRepo:     userRepo,
		Hasher:       hasher,
		TokenService: tokenService,
		Publisher:    publisher,
		Config:       newTestConfig(),
		Logger:       newDiscardLogger(),
	})

	return userServiceFixtures{
		service:      svc.(*userService),
		userRepo:     userRepo,
		hasher:       hasher,
		tokenService: tokenService,
		publisher:    publisher,
	}
}

func testCredential() *entity.Credential {
	return &entity.Credential{
		Algorithm: entity.AlgorithmScrypt,
		Salt:      "c2FsdHNhbHRzYWx0c2FsdA==",
		Hash:      "aGFzaA==",
		Params:    entity.ScryptParams{N: 16384, R: 8, P: 1, KeyLength: 64},
	}
}

func eventOfType(eventType, userID string) any {
	return mock.MatchedBy(func(e *service.AccountEvent) bool {
		return e.Type == eventType && e.UserID == userID
	})
}

func TestUserService_RegisterUser_Success(t *testing.T) {
	fx := createTestUserService(t)
	ctx := deliverycontext.WithRequestID(context.Background(), "req-42")
	credential := testCredential()

	fx.hasher.EXPECT().Hash("password123").Return(credential, nil)
	fx.userRepo.EXPECT().
		Create(ctx, mock.MatchedBy(func(u *entity.User) bool {
			return u.Name == "Test User" && u.Email == "test@example.com" && u.Credential == credential
		})).
		Run(func(_ context.Context, user *entity.User) { user.ID = "user-1" }).
		Return(nil)
	fx.publisher.EXPECT().
		PublishAccountEvent(ctx, mock.MatchedBy(func(e *service.AccountEvent) bool {
			return e.Type == service.EventUserRegistered && e.UserID == "user-1" && e.RequestID == "req-42"
		})).
		Return(nil)

	user, err := fx.service.RegisterUser(ctx, usecase.RegisterUserInput{
		Name:     " Test User ",
		Email:    " Test@Example.COM ",
		Password: "password123",
	})

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "Test User", user.Name)
}

func TestUserService_RegisterUser_Duplicate(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()

	fx.hasher.EXPECT().Hash("password123").Return(testCredential(), nil)
	fx.userRepo.EXPECT().
		Create(ctx, mock.AnythingOfType("*entity.User")).
		Return(domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists"))

	user, err := fx.service.RegisterUser(ctx, usecase.RegisterUserInput{
		Name: "Test User", Email: "test@example.com", Password: "password123",
	})

	assert.Nil(t, user)
	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)
}

func TestUserService_RegisterUser_PasswordPolicy(t *testing.T) {
	fx := createTestUserService(t)

	for _, password := range []string{"", "short", string(make([]byte, 129))} {
		user, err := fx.service.RegisterUser(context.Background(), usecase.RegisterUserInput{
			Name: "Test User", Email: "test@example.com", Password: password,
		})

		assert.Nil(t, user)
		assert.ErrorIs(t, err, domainerrors.ErrPasswordPolicy)
	}
}

func TestUserService_RegisterUser_MissingFields(t *testing.T) {
	fx := createTestUserService(t)

	_, err := fx.service.RegisterUser(context.Background(), usecase.RegisterUserInput{
		Name: "   ", Email: "test@example.com", Password: "password123",
	})

	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestUserService_RegisterUser_HashFailure(t *testing.T) {
	fx := createTestUserService(t)

	fx.hasher.EXPECT().Hash("password123").Return(nil, errors.New("entropy exhausted"))

	_, err := fx.service.RegisterUser(context.Background(), usecase.RegisterUserInput{
		Name: "Test User", Email: "test@example.com", Password: "password123",
	})

	assert.ErrorIs(t, err, domainerrors.ErrPasswordHashFailed)
}

func TestUserService_RegisterUser_PublishFailureIsIgnored(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()

	fx.hasher.EXPECT().Hash("password123").Return(testCredential(), nil)
	fx.userRepo.EXPECT().Create(ctx, mock.Anything).Return(nil)
	fx.publisher.EXPECT().PublishAccountEvent(ctx, mock.Anything).Return(errors.New("broker down"))

	user, err := fx.service.RegisterUser(ctx, usecase.RegisterUserInput{
		Name: "Test User", Email: "test@example.com", Password: "password123",
	})

	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestUserService_Login_Success(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()
	expiresAt := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	stored := &entity.User{ID: "user-1", Name: "Test User", Email: "test@example.com", Credential: testCredential()}

	fx.userRepo.EXPECT().FindByEmail(ctx, "test@example.com").Return(stored, nil)
	fx.hasher.EXPECT().Verify("password123", stored.Credential).Return(true)
	fx.tokenService.EXPECT().IssueToken("user-1").Return(&service.IssuedToken{Token: "signed.jwt.token", ExpiresAt: expiresAt}, nil)
	fx.tokenService.EXPECT().TokenTTL().Return(time.Hour)

	out, err := fx.service.Login(ctx, usecase.LoginInput{Email: "TEST@example.com", Password: "password123"})

	require.NoError(t, err)
	assert.Equal(t, "signed.jwt.token", out.AccessToken)
	assert.Equal(t, usecase.TokenTypeBearer, out.TokenType)
	assert.Equal(t, int64(3600), out.ExpiresIn)
	assert.Equal(t, expiresAt, out.ExpiresAt)
	assert.Equal(t, stored, out.User)
}

func TestUserService_Login_WrongPassword(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()
	stored := &entity.User{ID: "user-1", Email: "test@example.com", Credential: testCredential()}

	fx.userRepo.EXPECT().FindByEmail(ctx, "test@example.com").Return(stored, nil)
	fx.hasher.EXPECT().Verify("wrong", stored.Credential).Return(false)

	out, err := fx.service.Login(ctx, usecase.LoginInput{Email: "test@example.com", Password: "wrong"})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestUserService_Login_UnknownEmailRunsDummyVerify(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()

	fx.userRepo.EXPECT().FindByEmail(ctx, "ghost@example.com").Return(nil, repository.ErrUserNotFound)
	fx.hasher.EXPECT().Verify("password123", fx.service.dummyCredential).Return(false)

	out, err := fx.service.Login(ctx, usecase.LoginInput{Email: "ghost@example.com", Password: "password123"})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, entity.AlgorithmScrypt, fx.service.dummyCredential.Algorithm)
	assert.Equal(t, 64, fx.service.dummyCredential.Params.KeyLength)
}

func TestUserService_Login_StoreFailure(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()
	storeErr := domainerrors.NewDatabaseExecuteError(errors.New("connection reset"), "failed to find user")

	fx.userRepo.EXPECT().FindByEmail(ctx, "test@example.com").Return(nil, storeErr)

	_, err := fx.service.Login(ctx, usecase.LoginInput{Email: "test@example.com", Password: "password123"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.ErrorIs(t, err, storeErr)
}

func TestUserService_Login_ServiceBusy(t *testing.T) {
	fx := createTestUserService(t)
	fx.service.kdfSlots = semaphore.NewWeighted(1)
	require.True(t, fx.service.kdfSlots.TryAcquire(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	stored := &entity.User{ID: "user-1", Email: "test@example.com", Credential: testCredential()}
	fx.userRepo.EXPECT().FindByEmail(mock.Anything, "test@example.com").Return(stored, nil)

	_, err := fx.service.Login(ctx, usecase.LoginInput{Email: "test@example.com", Password: "password123"})

	assert.ErrorIs(t, err, domainerrors.ErrServiceBusy)
}

func TestUserService_ListUsers(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()

	_, err := fx.service.ListUsers(ctx, "")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)

	users := []*entity.User{{ID: "a"}, {ID: "b"}}
	fx.userRepo.EXPECT().List(ctx).Return(users, nil)

	got, err := fx.service.ListUsers(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, users, got)
}

func TestUserService_GetUser(t *testing.T) {
	ctx := context.Background()

	t.Run("owner", func(t *testing.T) {
		fx := createTestUserService(t)
		stored := &entity.User{ID: "user-1"}
		fx.userRepo.EXPECT().FindByID(ctx, "user-1").Return(stored, nil)

		user, err := fx.service.GetUser(ctx, "user-1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, stored, user)
	})

	t.Run("other subject is forbidden without touching the store", func(t *testing.T) {
		fx := createTestUserService(t)

		user, err := fx.service.GetUser(ctx, "user-a", "user-b")
		assert.Nil(t, user)
		assert.ErrorIs(t, err, domainerrors.ErrForbidden)
		fx.userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("anonymous", func(t *testing.T) {
		fx := createTestUserService(t)

		_, err := fx.service.GetUser(ctx, "", "user-b")
		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	})

	t.Run("owner of a missing account", func(t *testing.T) {
		fx := createTestUserService(t)
		fx.userRepo.EXPECT().FindByID(ctx, "user-1").Return(nil, repository.ErrUserNotFound)

		_, err := fx.service.GetUser(ctx, "user-1", "user-1")
		assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("password change builds a new credential", func(t *testing.T) {
		fx := createTestUserService(t)
		fresh := testCredential()
		fresh.Salt = "bmV3c2FsdG5ld3NhbHRuZXc="
		name := " New Name "
		password := "new-password"

		fx.hasher.EXPECT().Hash(password).Return(fresh, nil)
		fx.userRepo.EXPECT().
			Update(ctx, "user-1", mock.MatchedBy(func(p entity.UserPatch) bool {
				return p.Name != nil && *p.Name == "New Name" && p.Email == nil && p.Credential == fresh
			})).
			Return(&entity.User{ID: "user-1", Name: "New Name", Credential: fresh}, nil)
		fx.publisher.EXPECT().PublishAccountEvent(ctx, eventOfType(service.EventUserUpdated, "user-1")).Return(nil)

		user, err := fx.service.UpdateUser(ctx, "user-1", "user-1", usecase.UpdateUserInput{Name: &name, Password: &password})
		require.NoError(t, err)
		assert.Equal(t, "New Name", user.Name)
	})

	t.Run("email is normalized", func(t *testing.T) {
		fx := createTestUserService(t)
		email := " New@Example.com"

		fx.userRepo.EXPECT().
			Update(ctx, "user-1", mock.MatchedBy(func(p entity.UserPatch) bool {
				return p.Email != nil && *p.Email == "new@example.com"
			})).
			Return(&entity.User{ID: "user-1", Email: "new@example.com"}, nil)
		fx.publisher.EXPECT().PublishAccountEvent(ctx, mock.Anything).Return(nil)

		_, err := fx.service.UpdateUser(ctx, "user-1", "user-1", usecase.UpdateUserInput{Email: &email})
		require.NoError(t, err)
	})

	t.Run("empty payload", func(t *testing.T) {
		fx := createTestUserService(t)

		_, err := fx.service.UpdateUser(ctx, "user-1", "user-1", usecase.UpdateUserInput{})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("forbidden is checked before validation and store", func(t *testing.T) {
		fx := createTestUserService(t)

		_, err := fx.service.UpdateUser(ctx, "user-a", "user-b", usecase.UpdateUserInput{})
		assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	})

	t.Run("missing account", func(t *testing.T) {
		fx := createTestUserService(t)
		name := "x"
		fx.userRepo.EXPECT().Update(ctx, "user-1", mock.Anything).Return(nil, repository.ErrUserNotFound)

		_, err := fx.service.UpdateUser(ctx, "user-1", "user-1", usecase.UpdateUserInput{Name: &name})
		assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
	})

	t.Run("email collision", func(t *testing.T) {
		fx := createTestUserService(t)
		email := "taken@example.com"
		fx.userRepo.EXPECT().Update(ctx, "user-1", mock.Anything).
			Return(nil, domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists"))

		_, err := fx.service.UpdateUser(ctx, "user-1", "user-1", usecase.UpdateUserInput{Email: &email})
		assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)
	})

	t.Run("weak new password", func(t *testing.T) {
		fx := createTestUserService(t)
		password := "123"

		_, err := fx.service.UpdateUser(ctx, "user-1", "user-1", usecase.UpdateUserInput{Password: &password})
		assert.ErrorIs(t, err, domainerrors.ErrPasswordPolicy)
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("owner", func(t *testing.T) {
		fx := createTestUserService(t)
		fx.userRepo.EXPECT().Delete(ctx, "user-1").Return(nil)
		fx.publisher.EXPECT().PublishAccountEvent(ctx, eventOfType(service.EventUserDeleted, "user-1")).Return(nil)

		assert.NoError(t, fx.service.DeleteUser(ctx, "user-1", "user-1"))
	})

	t.Run("forbidden", func(t *testing.T) {
		fx := createTestUserService(t)

		assert.ErrorIs(t, fx.service.DeleteUser(ctx, "user-a", "user-b"), domainerrors.ErrForbidden)
	})

	t.Run("missing account", func(t *testing.T) {
		fx := createTestUserService(t)
		fx.userRepo.EXPECT().Delete(ctx, "user-1").Return(repository.ErrUserNotFound)

		assert.ErrorIs(t, fx.service.DeleteUser(ctx, "user-1", "user-1"), domainerrors.ErrUserNotFound)
	})
}
