package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// Credential is a login/password-hash pair used by the database identity
// provider. Kept separate from User so swapping the identity backend (to
// LDAP or a static list) leaves the user-role data untouched.
type Credential struct {
	// ID is the unique identifier for the credential row.
	ID uint64 `gorm:"primaryKey"`
	// Login is the unique login the credential belongs to.
	Login string `gorm:"unique;size:100;not null"`
	// Password is the Argon2id hashed password.
	Password string `gorm:"size:255;not null"`
	// CreatedAt is the timestamp when the credential was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the credential was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Credential model.
func (Credential) TableName() string {
	return "credentials"
}

// HashPassword hashes a plaintext password using the Argon2id algorithm
// with the default parameters.
func HashPassword(password string) string {
	hashed, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashed
}

// VerifyPassword verifies a plaintext password against the stored hash
// using constant-time comparison. Returns false on any mismatch or
// malformed hash.
func (c *Credential) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, c.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
