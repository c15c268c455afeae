package database

import "errors"

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when a connection cannot be opened or verified.
	ErrConnectionFailed = errors.New("database: connection failed")

	// ErrUnsupportedDriver is returned for a driver name other than pgx or sqlite3.
	ErrUnsupportedDriver = errors.New("database: unsupported driver")
)
