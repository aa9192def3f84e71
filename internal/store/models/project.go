package models

import "time"

// Project binds a project name to its numeric suffix. Both columns are
// unique; the suffix never changes once assigned because issued DOIs embed
// it as their namespace segment.
type Project struct {
	// Suffix is the numeric project identifier, doubling as the
	// authorization role name and the DOI namespace segment.
	Suffix int64 `gorm:"primaryKey;autoIncrement:false"`
	// Name is the unique human-readable project name.
	Name string `gorm:"unique;size:255;not null"`
	// CreatedAt is the timestamp when the project was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the project was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Project model.
func (Project) TableName() string {
	return "projects"
}
