package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deliverycontext "usermgmt/internal/delivery/context"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/service"
	mockSvc "usermgmt/internal/mocks/service"
)

func runAuthenticate(t *testing.T, tokens service.TokenService, header string) (echo.Context, error) {
	t.Helper()

	m := NewAuthMiddleware(AuthMiddlewareParams{
		TokenService: tokens,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	c := echo.New().NewContext(req, httptest.NewRecorder())

	err := m.Authenticate(func(echo.Context) error { return nil })(c)

	return c, err
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Run("valid token records the subject", func(t *testing.T) {
		tokens := mockSvc.NewMockTokenService(t)
		tokens.EXPECT().ValidateToken("good.token").Return(&service.Claims{
			Subject:   "user-1",
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

		c, err := runAuthenticate(t, tokens, "Bearer good.token")

		require.NoError(t, err)
		assert.Equal(t, "user-1", deliverycontext.GetUserID(c))
		assert.Equal(t, "user-1", deliverycontext.GetUserIDFromContext(c.Request().Context()))
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		tokens := mockSvc.NewMockTokenService(t)
		tokens.EXPECT().ValidateToken("good.token").Return(&service.Claims{Subject: "user-1"}, nil)

		_, err := runAuthenticate(t, tokens, "bearer good.token")

		assert.NoError(t, err)
	})

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "missing header", header: "", wantErr: domainerrors.ErrUnauthenticated},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: domainerrors.ErrInvalidToken},
		{name: "bare scheme", header: "Bearer", wantErr: domainerrors.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runAuthenticate(t, mockSvc.NewMockTokenService(t), tt.header)

			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	t.Run("expired token", func(t *testing.T) {
		tokens := mockSvc.NewMockTokenService(t)
		tokens.EXPECT().ValidateToken("old.token").Return(nil, domainerrors.ErrTokenExpired)

		_, err := runAuthenticate(t, tokens, "Bearer old.token")

		assert.True(t, errors.Is(err, domainerrors.ErrTokenExpired))
	})

	t.Run("foreign error becomes invalid token", func(t *testing.T) {
		tokens := mockSvc.NewMockTokenService(t)
		tokens.EXPECT().ValidateToken("odd.token").Return(nil, errors.New("boom"))

		_, err := runAuthenticate(t, tokens, "Bearer odd.token")

		assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
	})

	t.Run("token without subject", func(t *testing.T) {
		tokens := mockSvc.NewMockTokenService(t)
		tokens.EXPECT().ValidateToken("anon.token").Return(&service.Claims{}, nil)

		_, err := runAuthenticate(t, tokens, "Bearer anon.token")

		assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
	})
}
