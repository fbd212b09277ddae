package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"usermgmt/config"
	domainerrors "usermgmt/internal/domain/errors"
	"usermgmt/internal/domain/service"
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	secret    []byte        // HMAC key for signing access tokens.
	issuer    string        // Optional iss claim.
	accessTTL time.Duration // Time-to-live for access tokens.
	now       func() time.Time
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	if cfg.Auth == nil || cfg.Auth.AccessTokenTTL <= 0 {
		return nil, errors.New("auth.accessTokenTTL must be positive")
	}

	return &jwtService{
		secret:    []byte(cfg.SecretKey.Access),
		issuer:    cfg.Auth.Issuer,
		accessTTL: cfg.Auth.AccessTokenTTL,
		now:       time.Now,
	}, nil
}

// IssueToken signs an HS256 token whose subject is the account ID.
func (s *jwtService) IssueToken(subjectID string) (*service.IssuedToken, error) {
	if subjectID == "" {
		return nil, errors.New("token subject must not be empty")
	}

	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.accessTTL)

	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign token")
	}

	return &service.IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// ValidateToken checks the signature and expiry of an access token.
// Expired tokens yield ErrTokenExpired, anything else unusable yields ErrInvalidToken.
func (s *jwtService) ValidateToken(tokenString string) (*service.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerrors.ErrTokenExpired
		}

		return nil, domainerrors.ErrInvalidToken.WrapMessage(err.Error())
	}
	if !token.Valid || claims.Subject == "" {
		return nil, domainerrors.ErrInvalidToken
	}

	result := &service.Claims{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}

// TokenTTL returns the configured duration for access tokens.
func (s *jwtService) TokenTTL() time.Duration {
	return s.accessTTL
}
