package account

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/ips-core/internal/infrastructure/database"
	_ "github.com/nerrad567/ips-core/migrations"
)

// testProvider returns a per-request provider over a migrated SQLite file
// seeded with one user.
func testProvider(t *testing.T) database.Provider {
	t.Helper()
	ctx := context.Background()

	cfg := database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "account.db"),
		BusyTimeout: 5,
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if _, err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO users (username, password) VALUES ($1, $2)", "operator", "s3cret",
	); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	p, err := database.NewDirectProvider(cfg)
	if err != nil {
		t.Fatalf("NewDirectProvider() error = %v", err)
	}
	return p
}

func strPtr(s string) *string { return &s }

func TestRepository_Authenticate(t *testing.T) {
	repo := NewRepository(testProvider(t))
	ctx := context.Background()

	user, err := repo.Authenticate(ctx, strPtr("operator"), strPtr("s3cret"))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != 1 {
		t.Errorf("ID = %d, want 1", user.ID)
	}
	if user.Username != "operator" {
		t.Errorf("Username = %q, want operator", user.Username)
	}
}

func TestRepository_Authenticate_NoMatch(t *testing.T) {
	repo := NewRepository(testProvider(t))
	ctx := context.Background()

	tests := []struct {
		name     string
		username *string
		password *string
	}{
		{"wrong password", strPtr("operator"), strPtr("nope")},
		{"unknown user", strPtr("ghost"), strPtr("s3cret")},
		{"password case differs", strPtr("operator"), strPtr("S3CRET")},
		{"missing password", strPtr("operator"), nil},
		{"missing username", nil, strPtr("s3cret")},
		{"both missing", nil, nil},
		{"empty strings", strPtr(""), strPtr("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Authenticate(ctx, tt.username, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

type failingProvider struct{ err error }

func (p failingProvider) Acquire(context.Context) (database.Conn, error) { return nil, p.err }

func TestRepository_Authenticate_StoreFailure(t *testing.T) {
	repo := NewRepository(failingProvider{err: database.ErrConnectionFailed})

	_, err := repo.Authenticate(context.Background(), strPtr("operator"), strPtr("s3cret"))
	if !errors.Is(err, database.ErrConnectionFailed) {
		t.Errorf("Authenticate() error = %v, want ErrConnectionFailed", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("store failure must not be reported as invalid credentials")
	}
}
