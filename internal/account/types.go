package account

import "errors"

// ErrInvalidCredentials is returned when no user matches the supplied
// username and password.
var ErrInvalidCredentials = errors.New("account: invalid credentials")

// User is the subset of a users row exposed to callers.
type User struct {
	ID       int64
	Username string
}
