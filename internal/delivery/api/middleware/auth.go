package middleware

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	deliverycontext "usermgmt/internal/delivery/context"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/service"
)

const bearerPrefix = "Bearer "

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx.
type AuthMiddlewareParams struct {
	fx.In

	TokenService service.TokenService
	Logger       *slog.Logger
}

// AuthMiddleware validates bearer access tokens.
type AuthMiddleware struct {
	tokenService service.TokenService
	logger       *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(params AuthMiddlewareParams) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: params.TokenService,
		logger:       params.Logger,
	}
}

// Authenticate rejects requests without a valid access token and records the token subject.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return domainerrors.ErrUnauthenticated
		}

		if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			return domainerrors.ErrInvalidToken.WrapMessage("authorization header must use the Bearer scheme")
		}
		tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])

		claims, err := m.tokenService.ValidateToken(tokenString)
		if err != nil {
			deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger).
				Debug("Rejected access token", slog.Any("error", err))

			if _, ok := domainerrors.AsAppError(err); ok {
				return err
			}

			return domainerrors.ErrInvalidToken.WrapMessage(err.Error())
		}
		if claims.Subject == "" {
			return errors.WithStack(domainerrors.ErrInvalidToken)
		}

		deliverycontext.SetUserID(c, claims.Subject)

		return next(c)
	}
}
