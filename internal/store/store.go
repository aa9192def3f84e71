// Package store provides the backend implementations of the project,
// user-role and token store contracts: relational variants over gorm, a
// flat-file user-role store and an in-memory token store.
package store

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CNES/DOI-server-sub001/internal/store/dsn"
)

// Backend names as they appear under [Plugins] in the configuration file.
const (
	BackendDB     = "db"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// optionURL is the shared option key naming the database URL.
const optionURL = "url"

// connector is the gorm lifecycle shared by the relational stores. Each
// store owns its connection; Release is idempotent.
type connector struct {
	options map[string]string
	db      *gorm.DB
}

func (c *connector) Configure(options map[string]string) {
	c.options = options
}

func (c *connector) Validate() []string {
	var missing []string
	if c.options[optionURL] == "" {
		missing = append(missing, optionURL)
	}

	return missing
}

// open connects and migrates the given models.
func (c *connector) open(models ...any) error {
	dialector, err := dsn.Dialector(c.options[optionURL])
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return err
	}

	if err = db.AutoMigrate(models...); err != nil {
		return err
	}

	c.db = db

	return nil
}

func (c *connector) Release() {
	if c.db == nil {
		return
	}

	sqlDB, err := c.db.DB()
	if err == nil {
		if errClose := sqlDB.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close database connection")
		}
	}

	c.db = nil
}
