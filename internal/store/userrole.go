package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/store/models"
)

// DBUserRole is the relational user-role store. Removing a user cascades
// to its assignments inside one transaction; every successful mutation
// notifies subscribers so the role index can patch itself.
type DBUserRole struct {
	connector
	plugin.Notifier
}

// NewDBUserRole builds an unconfigured relational user-role store.
func NewDBUserRole() plugin.Plugin {
	return &DBUserRole{}
}

// InitConnection opens the database and migrates the user-role schema.
func (s *DBUserRole) InitConnection() error {
	return s.open(&models.User{}, &models.Assignment{})
}

// Add creates a user account. A duplicate login rejects the add.
func (s *DBUserRole) Add(ctx context.Context, user plugin.User) (bool, error) {
	exists, err := s.Exists(ctx, user.Login)
	if err != nil {
		return false, err
	}

	if exists {
		return false, nil
	}

	row := models.User{
		Login:    user.Login,
		FullName: user.FullName,
		Email:    user.Email,
		Admin:    user.Admin,
	}

	if err = s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return false, err
	}

	s.Publish(plugin.UserAdded{Login: user.Login, Admin: user.Admin})

	return true, nil
}

// Remove deletes the user and cascades to its role assignments.
func (s *DBUserRole) Remove(ctx context.Context, login string) (bool, error) {
	var removed bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.User{}, "login = ?", login)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Delete(&models.Assignment{}, "login = ?", login).Error; err != nil {
			return err
		}

		removed = true

		return nil
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.Publish(plugin.UserRemoved{Login: login})
	}

	return removed, nil
}

// Assign grants the user the project role. The user and project must both
// exist; a duplicate assignment rejects silently with false.
func (s *DBUserRole) Assign(ctx context.Context, login string, suffix int64) (bool, error) {
	exists, err := s.Exists(ctx, login)
	if err != nil {
		return false, err
	}

	if !exists {
		return false, nil
	}

	var projects int64

	err = s.db.WithContext(ctx).Model(&models.Project{}).
		Where("suffix = ?", suffix).
		Count(&projects).Error
	if err != nil {
		return false, err
	}

	if projects == 0 {
		return false, nil
	}

	var dup int64

	err = s.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("login = ? AND suffix = ?", login, suffix).
		Count(&dup).Error
	if err != nil {
		return false, err
	}

	if dup > 0 {
		return false, nil
	}

	if err = s.db.WithContext(ctx).Create(&models.Assignment{Login: login, Suffix: suffix}).Error; err != nil {
		return false, err
	}

	s.Publish(plugin.RoleAssigned{Login: login, Suffix: suffix})

	return true, nil
}

// Unassign revokes the user's project role.
func (s *DBUserRole) Unassign(ctx context.Context, login string, suffix int64) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&models.Assignment{}, "login = ? AND suffix = ?", login, suffix)
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	s.Publish(plugin.RoleUnassigned{Login: login, Suffix: suffix})

	return true, nil
}

// SetAdmin raises the user's global admin flag.
func (s *DBUserRole) SetAdmin(ctx context.Context, login string) (bool, error) {
	return s.setAdmin(ctx, login, true)
}

// UnsetAdmin lowers the user's global admin flag.
func (s *DBUserRole) UnsetAdmin(ctx context.Context, login string) (bool, error) {
	return s.setAdmin(ctx, login, false)
}

func (s *DBUserRole) setAdmin(ctx context.Context, login string, admin bool) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("login = ? AND admin = ?", login, !admin).
		Update("admin", admin)
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	s.Publish(plugin.AdminChanged{Login: login, Admin: admin})

	return true, nil
}

// IsAdmin reports the user's global admin flag.
func (s *DBUserRole) IsAdmin(ctx context.Context, login string) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("login = ? AND admin = ?", login, true).
		Count(&count).Error

	return count > 0, err
}

// Exists reports whether a user with the login is registered.
func (s *DBUserRole) Exists(ctx context.Context, login string) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("login = ?", login).
		Count(&count).Error

	return count > 0, err
}

// Users returns every registered user.
func (s *DBUserRole) Users(ctx context.Context) ([]plugin.User, error) {
	var rows []models.User
	if err := s.db.WithContext(ctx).Order("login").Find(&rows).Error; err != nil {
		return nil, err
	}

	return toPluginUsers(rows), nil
}

// ListForProject returns every user assigned to the project.
func (s *DBUserRole) ListForProject(ctx context.Context, suffix int64) ([]plugin.User, error) {
	var rows []models.User

	err := s.db.WithContext(ctx).
		Joins("JOIN assignments ON assignments.login = users.login").
		Where("assignments.suffix = ?", suffix).
		Order("users.login").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return toPluginUsers(rows), nil
}

func toPluginUsers(rows []models.User) []plugin.User {
	out := make([]plugin.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, plugin.User{
			Login:    row.Login,
			FullName: row.FullName,
			Email:    row.Email,
			Admin:    row.Admin,
		})
	}

	return out
}
