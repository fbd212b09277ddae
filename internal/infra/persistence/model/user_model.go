// Package model holds the GORM persistence models.
package model

import "time"

// UserModel mirrors the 'users' table. IDs are UUIDv7 strings generated by the application.
type UserModel struct {
	ID         string          `gorm:"type:uuid;primaryKey"`
	Name       string          `gorm:"type:varchar(100);not null"`
	Email      string          `gorm:"type:varchar(255);uniqueIndex:uniq_users_email;not null"`
	Credential CredentialModel `gorm:"embedded;embeddedPrefix:credential_"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}

// CredentialModel is the scrypt credential stored inline on the users row.
type CredentialModel struct {
	Algorithm string `gorm:"type:varchar(32);not null"`
	Salt      string `gorm:"type:text;not null"`
	Hash      string `gorm:"type:text;not null"`
	N         int    `gorm:"not null"`
	R         int    `gorm:"not null"`
	P         int    `gorm:"not null"`
	KeyLength int    `gorm:"not null"`
}
