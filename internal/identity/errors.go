package identity

import "errors"

var (
	// ErrUserNotFound is returned when a login cannot be found in the
	// directory or database.
	ErrUserNotFound = errors.New("user not found")

	// ErrMultipleUsersFound is returned when a directory search expected one
	// entry but found several. This typically indicates a misconfigured
	// LDAP filter or duplicate entries.
	ErrMultipleUsersFound = errors.New("multiple users found")
)
