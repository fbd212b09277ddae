package service

import (
	"time"
)

// Claims are the identity assertions carried by an access token.
type Claims struct {
	Subject   string // Account ID the token was issued to.
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is a signed access token together with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenService issues and validates stateless access tokens.
type TokenService interface {
	// IssueToken signs a token for subjectID that expires after the configured validity window.
	IssueToken(subjectID string) (*IssuedToken, error)

	// ValidateToken checks signature and expiry and returns the embedded claims.
	ValidateToken(tokenString string) (*Claims, error)

	// TokenTTL returns the validity window applied to new tokens.
	TokenTTL() time.Duration
}
