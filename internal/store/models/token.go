package models

import "time"

// Token is an issued bearer token persisted verbatim alongside the two
// fields derived from its claims, so membership and expiration checks
// never re-parse or re-verify the signed string.
type Token struct {
	// ID is the unique identifier for the token row.
	ID uint64 `gorm:"primaryKey"`
	// Signed is the token exactly as returned to the caller.
	Signed string `gorm:"unique;size:1024;not null"`
	// Subject is the login the token was issued to.
	Subject string `gorm:"size:100;not null;index"`
	// Suffix is the project-suffix claim embedded in the token.
	Suffix int64 `gorm:"not null"`
	// ExpiresAt is the absolute expiration embedded in the token.
	ExpiresAt time.Time `gorm:"not null;index"`
	// CreatedAt is the timestamp when the token was issued (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the Token model.
func (Token) TableName() string {
	return "tokens"
}
