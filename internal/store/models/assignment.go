package models

import "time"

// Assignment grants a user permission to act within a project's namespace.
// Deleting the user cascades to its assignments.
type Assignment struct {
	// ID is the unique identifier for the assignment.
	ID uint64 `gorm:"primaryKey"`
	// Login references the assigned user.
	Login string `gorm:"size:100;not null;uniqueIndex:idx_login_suffix"`
	// Suffix references the project.
	Suffix int64 `gorm:"not null;uniqueIndex:idx_login_suffix"`
	// CreatedAt is the timestamp when the assignment was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the Assignment model.
func (Assignment) TableName() string {
	return "assignments"
}
