package store

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/store/models"
)

// DBProject is the relational project store. Suffix and name are both
// unique; collisions reject the mutation without touching the existing
// mapping. Successful mutations notify subscribers.
type DBProject struct {
	connector
	plugin.Notifier
}

// NewDBProject builds an unconfigured relational project store.
func NewDBProject() plugin.Plugin {
	return &DBProject{}
}

// InitConnection opens the database and migrates the project schema.
func (s *DBProject) InitConnection() error {
	return s.open(&models.Project{}, &models.Assignment{})
}

// Add inserts a suffix/name mapping. A duplicate suffix or name rejects
// the add with false and leaves the state unchanged.
func (s *DBProject) Add(ctx context.Context, suffix int64, name string) (bool, error) {
	exists, err := s.Exists(ctx, suffix)
	if err != nil {
		return false, err
	}

	existsName, err := s.ExistsName(ctx, name)
	if err != nil {
		return false, err
	}

	if exists || existsName {
		// callers check Exists before surfacing the conflict to users
		log.Error().Int64("suffix", suffix).Str("name", name).Msg("project suffix or name collision")
		return false, nil
	}

	if err = s.db.WithContext(ctx).Create(&models.Project{Suffix: suffix, Name: name}).Error; err != nil {
		return false, err
	}

	s.Publish(plugin.ProjectAdded{Suffix: suffix, Name: name})

	return true, nil
}

// Remove deletes the project with the given suffix.
func (s *DBProject) Remove(ctx context.Context, suffix int64) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&models.Project{}, "suffix = ?", suffix)
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	s.Publish(plugin.ProjectRemoved{Suffix: suffix})

	return true, nil
}

// Rename changes the project's name; the suffix is immutable. A duplicate
// target name rejects the rename.
func (s *DBProject) Rename(ctx context.Context, suffix int64, name string) (bool, error) {
	old, found, err := s.NameOf(ctx, suffix)
	if err != nil || !found {
		return false, err
	}

	taken, err := s.ExistsName(ctx, name)
	if err != nil {
		return false, err
	}

	if taken {
		log.Error().Int64("suffix", suffix).Str("name", name).Msg("project name collision on rename")
		return false, nil
	}

	err = s.db.WithContext(ctx).Model(&models.Project{}).
		Where("suffix = ?", suffix).
		Update("name", name).Error
	if err != nil {
		return false, err
	}

	s.Publish(plugin.ProjectRenamed{Suffix: suffix, OldName: old, NewName: name})

	return true, nil
}

// Exists reports whether a project with the suffix is registered.
func (s *DBProject) Exists(ctx context.Context, suffix int64) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("suffix = ?", suffix).
		Count(&count).Error

	return count > 0, err
}

// ExistsName reports whether a project with the name is registered.
func (s *DBProject) ExistsName(ctx context.Context, name string) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("name = ?", name).
		Count(&count).Error

	return count > 0, err
}

// NameOf resolves a suffix to its project name.
func (s *DBProject) NameOf(ctx context.Context, suffix int64) (string, bool, error) {
	var p models.Project

	res := s.db.WithContext(ctx).Where("suffix = ?", suffix).Limit(1).Find(&p)
	if res.Error != nil {
		return "", false, res.Error
	}

	if res.RowsAffected == 0 {
		return "", false, nil
	}

	return p.Name, true, nil
}

// SuffixOf resolves a project name to its suffix.
func (s *DBProject) SuffixOf(ctx context.Context, name string) (int64, bool, error) {
	var p models.Project

	res := s.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&p)
	if res.Error != nil {
		return 0, false, res.Error
	}

	if res.RowsAffected == 0 {
		return 0, false, nil
	}

	return p.Suffix, true, nil
}

// List returns every registered project.
func (s *DBProject) List(ctx context.Context) ([]plugin.Project, error) {
	var rows []models.Project
	if err := s.db.WithContext(ctx).Order("suffix").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]plugin.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, plugin.Project{Suffix: row.Suffix, Name: row.Name})
	}

	return out, nil
}

// ListForUser returns the projects the user holds an assignment for.
func (s *DBProject) ListForUser(ctx context.Context, login string) ([]plugin.Project, error) {
	var rows []models.Project

	err := s.db.WithContext(ctx).
		Joins("JOIN assignments ON assignments.suffix = projects.suffix").
		Where("assignments.login = ?", login).
		Order("projects.suffix").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]plugin.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, plugin.Project{Suffix: row.Suffix, Name: row.Name})
	}

	return out, nil
}
