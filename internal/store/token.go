package store

import (
	"context"
	"time"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/store/models"
)

// DBToken is the relational token store. Tokens are immutable once saved;
// the signed string is the lookup key and the derived suffix/expiration
// columns serve checks without re-parsing the JWT.
type DBToken struct {
	connector
}

// NewDBToken builds an unconfigured relational token store.
func NewDBToken() plugin.Plugin {
	return &DBToken{}
}

// InitConnection opens the database and migrates the token schema.
func (s *DBToken) InitConnection() error {
	return s.open(&models.Token{})
}

// Save persists an issued token. A save failure means the token was never
// issued; the issuer discards the signed string.
func (s *DBToken) Save(ctx context.Context, token plugin.Token) error {
	row := models.Token{
		Signed:    token.Signed,
		Subject:   token.Subject,
		Suffix:    token.Suffix,
		ExpiresAt: token.ExpiresAt,
	}

	return s.db.WithContext(ctx).Create(&row).Error
}

// Exists reports store membership of the signed string. No signature
// checks happen here.
func (s *DBToken) Exists(ctx context.Context, signed string) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&models.Token{}).
		Where("signed = ?", signed).
		Count(&count).Error

	return count > 0, err
}

// Get returns the stored token with its derived fields.
func (s *DBToken) Get(ctx context.Context, signed string) (plugin.Token, bool, error) {
	var row models.Token

	res := s.db.WithContext(ctx).Where("signed = ?", signed).Limit(1).Find(&row)
	if res.Error != nil {
		return plugin.Token{}, false, res.Error
	}

	if res.RowsAffected == 0 {
		return plugin.Token{}, false, nil
	}

	return plugin.Token{
		Signed:    row.Signed,
		Subject:   row.Subject,
		Suffix:    row.Suffix,
		ExpiresAt: row.ExpiresAt,
	}, true, nil
}

// Delete revokes a token by removing it from the store. Verification
// treats a missing token as forbidden, so removal is effective revocation.
func (s *DBToken) Delete(ctx context.Context, signed string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&models.Token{}, "signed = ?", signed)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// DeleteExpired removes every token expired at now.
func (s *DBToken) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&models.Token{}, "expires_at < ?", now)
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}
