// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

import "usermgmt/internal/domain/entity"

// PasswordHasher turns plaintext passwords into credential records and checks them later.
// Implementations are safe for concurrent use and perform no I/O.
type PasswordHasher interface {
	// Hash derives a new credential with a freshly generated salt.
	Hash(password string) (*entity.Credential, error)

	// Verify reports whether password matches the credential.
	// A malformed credential is a mismatch, never an error.
	Verify(password string, credential *entity.Credential) bool
}
