// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"

	"usermgmt/config"
	"usermgmt/internal/domain/entity"
	"usermgmt/internal/domain/service"
)

// scryptHasher is a concrete implementation of the PasswordHasher interface using scrypt.
type scryptHasher struct {
	params     entity.ScryptParams
	saltLength int
	random     io.Reader
}

// NewScryptHasher is the constructor for scryptHasher.
// The work factors come from the auth.scrypt configuration section.
func NewScryptHasher(cfg *config.Config) (service.PasswordHasher, error) {
	sc := cfg.Auth.Scrypt
	if err := sc.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scrypt configuration")
	}

	return &scryptHasher{
		params: entity.ScryptParams{
			N:         sc.N,
			R:         sc.R,
			P:         sc.P,
			KeyLength: sc.KeyLength,
		},
		saltLength: sc.SaltLength,
		random:     rand.Reader,
	}, nil
}

// Hash generates a fresh random salt and derives the password key from it.
func (h *scryptHasher) Hash(password string) (*entity.Credential, error) {
	salt := make([]byte, h.saltLength)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	key, err := scrypt.Key([]byte(password), salt, h.params.N, h.params.R, h.params.P, h.params.KeyLength)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}

	return &entity.Credential{
		Algorithm: entity.AlgorithmScrypt,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Hash:      base64.StdEncoding.EncodeToString(key),
		Params:    h.params,
	}, nil
}

// Verify re-derives the key with the credential's own salt and parameters.
func (h *scryptHasher) Verify(password string, credential *entity.Credential) bool {
	if credential == nil || credential.Algorithm != entity.AlgorithmScrypt {
		return false
	}
	if !paramsWithinBounds(credential.Params) {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(credential.Salt)
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(credential.Hash)
	if err != nil || len(want) != credential.Params.KeyLength {
		return false
	}

	p := credential.Params
	got, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, p.KeyLength)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(got, want) == 1
}

// paramsWithinBounds rejects stored parameters scrypt would refuse or that exceed the memory ceiling.
func paramsWithinBounds(p entity.ScryptParams) bool {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return false
	}
	if p.R <= 0 || p.P <= 0 || p.R*p.P >= 1<<30 {
		return false
	}
	if p.KeyLength <= 0 {
		return false
	}

	return p.MemoryBytes() <= config.MaxScryptMemory
}
