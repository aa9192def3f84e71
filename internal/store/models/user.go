// Package models defines the gorm models persisted by the relational
// backends: users, projects, role assignments, issued tokens and the
// credential rows used by the database identity provider.
package models

import "time"

// User represents a user account known to the DOI server. The admin flag
// grants implicit membership in every project role; it is toggled only
// through the user-role store so listeners can attach side effects to the
// transition.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Login is the unique identifier used to authenticate.
	Login string `gorm:"unique;size:100;not null"`
	// FullName is the user's display name.
	FullName string `gorm:"size:255"`
	// Email is the user's email address, used for admin-change alerts.
	Email string `gorm:"size:255"`
	// Admin is the global administrator flag.
	Admin bool `gorm:"not null;default:false"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the User model.
func (User) TableName() string {
	return "users"
}
