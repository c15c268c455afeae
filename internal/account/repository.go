package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/ips-core/internal/infrastructure/database"
)

// Authenticator checks a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password *string) (*User, error)
}

// Repository reads users through a connection provider. Each call acquires
// its own connection and releases it before returning.
type Repository struct {
	provider database.Provider
}

// NewRepository creates a user repository backed by p.
func NewRepository(p database.Provider) *Repository {
	return &Repository{provider: p}
}

// Authenticate returns the user whose username and password both equal the
// given values. A nil argument is bound as NULL and therefore never matches.
//
// Returns ErrInvalidCredentials when nothing matches. Any other error is a
// store failure.
func (r *Repository) Authenticate(ctx context.Context, username, password *string) (*User, error) {
	conn, err := r.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close() //nolint:errcheck // release only, nothing to flush

	var u User
	err = conn.QueryRowContext(ctx,
		"SELECT id, username FROM users WHERE username = $1 AND password = $2 LIMIT 1",
		nullable(username), nullable(password),
	).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return &u, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
