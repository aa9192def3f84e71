package config

import (
	"github.com/CNES/DOI-server-sub001/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	Title     string
	Webserver Webserver
	Security  Security
	Plugins   Plugins
	DataCite  DataCite
	Log       logger.Log
}

// Webserver implement webserver settings.
type Webserver struct {
	Domain             string // domain name for the webserver
	Port               int    // listening port for the webserver
	ShutDownTime       int    // wait time for shutdown
	URL                string // base url for the webserver
	TrustedProxyHeader string // inbound header carrying the real client IP, e.g. X-Forwarded-For
}

// Security holds the token and authorization settings of the request
// pipeline.
type Security struct {
	// TokenSecret signs issued tokens (HS256). Ships with a documented
	// default that must be overridden in production.
	TokenSecret string
	// TokenValidityDays bounds the lifetime of issued tokens.
	TokenValidityDays int
	// SelectedRoleHeader lets a multi-role caller disambiguate the project
	// role asserted by a request.
	SelectedRoleHeader string
	// BearerOptional lets a request carrying an invalid bearer token fall
	// through unauthenticated instead of being rejected.
	BearerOptional bool
	// AdminAllowList restricts administrative paths to these CIDR/host
	// entries. An empty list disables the gate entirely; operators must
	// opt in.
	AdminAllowList []string
}

// Plugins selects one backend implementation per capability contract and
// carries the backend-specific options as opaque maps. Option values
// prefixed "enc:" are decrypted at load time.
type Plugins struct {
	Identity string
	Project  string
	UserRole string
	Token    string

	Options map[string]map[string]string
}

// DataCite configures the outbound registration client.
type DataCite struct {
	URL      string
	User     string
	Password string // may be stored encrypted ("enc:" prefix)
	Prefix   string // DOI prefix owned by this installation
	Timeout  int    // request timeout in seconds
}
