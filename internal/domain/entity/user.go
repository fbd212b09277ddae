// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"
)

// User is the account record owned by a single person.
type User struct {
	ID         string      // Opaque identifier assigned by the store; only ever compared for equality.
	Name       string      // Display name.
	Email      string      // Login identifier, unique across accounts, stored normalized.
	Credential *Credential // Password credential. Never serialized to clients.
	CreatedAt  time.Time   // Timestamp of when this account was created.
	UpdatedAt  time.Time   // Timestamp of the last modification to this account.
}

// UserPatch carries the optional fields of a partial account update.
// A nil field is left untouched.
type UserPatch struct {
	Name       *string
	Email      *string
	Credential *Credential
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Credential == nil
}

// Apply copies the patch onto user and stamps UpdatedAt.
func (p UserPatch) Apply(user *User, now time.Time) {
	if p.Name != nil {
		user.Name = *p.Name
	}
	if p.Email != nil {
		user.Email = *p.Email
	}
	if p.Credential != nil {
		user.Credential = p.Credential
	}
	user.UpdatedAt = now
}

// NormalizeEmail returns the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
