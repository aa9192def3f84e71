package plugin

import "errors"

var (
	// ErrUnknownBackend is returned when a configuration key names a backend
	// no factory was registered for.
	ErrUnknownBackend = errors.New("unknown backend implementation")

	// ErrMissingKey is returned when a required plugin configuration key is
	// absent from the configuration file.
	ErrMissingKey = errors.New("missing plugin configuration key")

	// ErrBackendUnavailable wraps connectivity failures of a backend. The
	// pipeline maps it to a generic server error without backend details.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
