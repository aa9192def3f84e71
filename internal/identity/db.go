package identity

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/store/dsn"
	"github.com/CNES/DOI-server-sub001/internal/store/models"
)

// DB option keys.
const (
	optURL = "url"
)

// DB authenticates against a relational credential table with Argon2id
// hashes. The designated group is the whole user table; the administrator
// login comes from the adminID option.
type DB struct {
	options map[string]string
	db      *gorm.DB
}

// NewDB builds an unconfigured database identity provider.
func NewDB() plugin.Plugin {
	return &DB{}
}

// Configure stores the options map.
func (p *DB) Configure(options map[string]string) {
	p.options = options
}

// Validate reports the required option keys that are missing.
func (p *DB) Validate() []string {
	var missing []string

	if p.options[optURL] == "" {
		missing = append(missing, optURL)
	}

	if p.options[optAdminID] == "" {
		missing = append(missing, optAdminID)
	}

	return missing
}

// InitConnection opens the database and migrates the credential schema.
func (p *DB) InitConnection() error {
	dialector, err := dsn.Dialector(p.options[optURL])
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return errors.Wrapf(plugin.ErrBackendUnavailable, "identity database: %v", err)
	}

	if err = db.AutoMigrate(&models.Credential{}, &models.User{}); err != nil {
		return errors.Wrapf(plugin.ErrBackendUnavailable, "identity migration: %v", err)
	}

	p.db = db

	return nil
}

// Release closes the database connection, idempotently.
func (p *DB) Release() {
	if p.db == nil {
		return
	}

	if sqlDB, err := p.db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	p.db = nil
}

// AdministratorID is the login promoted to global admin.
func (p *DB) AdministratorID() string {
	return p.options[optAdminID]
}

// Authenticate verifies the login/password pair against the credential
// table. An unknown login or hash mismatch returns false; only a database
// failure raises an error.
func (p *DB) Authenticate(ctx context.Context, login, secret string) (bool, error) {
	var cred models.Credential

	res := p.db.WithContext(ctx).Where("login = ?", login).Limit(1).Find(&cred)
	if res.Error != nil {
		return false, errors.Wrapf(plugin.ErrBackendUnavailable, "credential lookup: %v", res.Error)
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	return cred.VerifyPassword(secret), nil
}

// GroupMembers returns every user in the identity database.
func (p *DB) GroupMembers(ctx context.Context) ([]plugin.User, error) {
	var rows []models.User

	if err := p.db.WithContext(ctx).Order("login").Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(plugin.ErrBackendUnavailable, "group member lookup: %v", err)
	}

	members := make([]plugin.User, 0, len(rows))
	for _, row := range rows {
		members = append(members, plugin.User{
			Login:    row.Login,
			FullName: row.FullName,
			Email:    row.Email,
		})
	}

	return members, nil
}

// AddCredential stores an Argon2id-hashed credential. Used by seeding and
// by tests.
func (p *DB) AddCredential(ctx context.Context, login, password string) error {
	cred := models.Credential{
		Login:    login,
		Password: models.HashPassword(password),
	}

	return p.db.WithContext(ctx).Create(&cred).Error
}
