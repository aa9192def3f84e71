// Package dsn selects a gorm dialector from a database URL. The scheme
// picks the driver: sqlite for embedded files and in-memory tests, mysql
// and postgres for shared deployments.
package dsn

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrUnsupportedScheme is returned for database URLs whose scheme does not
// map to a known driver.
var ErrUnsupportedScheme = errors.New("unsupported database url scheme")

// Dialector builds the gorm dialector for the given database URL.
func Dialector(raw string) (gorm.Dialector, error) {
	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", raw)
	}

	switch scheme {
	case "sqlite":
		return sqlite.Open(rest), nil
	case "mysql":
		mdsn, err := mysqlDSN(raw)
		if err != nil {
			return nil, err
		}

		return gormmysql.Open(mdsn), nil
	case "postgres", "postgresql":
		return gormpostgres.Open(raw), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", scheme)
	}
}

// mysqlDSN converts a mysql:// URL into the user:pass@tcp(host:port)/name
// form the driver expects.
func mysqlDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "invalid mysql url")
	}

	user := u.User.Username()
	pass, _ := u.User.Password()

	host := u.Host
	if u.Port() == "" {
		host = u.Hostname() + ":3306"
	}

	name := strings.TrimPrefix(u.Path, "/")

	out := fmt.Sprintf("%s:%s@tcp(%s)/%s", user, pass, host, name)
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}

	return out, nil
}
