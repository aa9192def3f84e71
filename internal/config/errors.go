package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrMissingPluginKey error if a capability has no backend selected.
	ErrMissingPluginKey = errors.New("toml config plugins must select a backend for every capability")

	// ErrMissingSecretKey error if encrypted option values are present but no
	// decryption key was provided in the environment.
	ErrMissingSecretKey = errors.New("encrypted config values present but DOI_SERVER_SECRET_KEY is not set")

	// ErrBadCiphertext error if an encrypted option value cannot be decrypted.
	ErrBadCiphertext = errors.New("failed to decrypt config value")
)
