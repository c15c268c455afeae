package reading

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ips-core/internal/infrastructure/database"
	_ "github.com/nerrad567/ips-core/migrations"
)

// testDB opens a migrated SQLite database and returns it together with a
// per-request provider over the same file.
func testDB(t *testing.T) (*database.DB, database.Provider) {
	t.Helper()
	ctx := context.Background()

	cfg := database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "reading.db"),
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

	p, err := database.NewDirectProvider(cfg)
	if err != nil {
		t.Fatalf("NewDirectProvider() error = %v", err)
	}
	return db, p
}

// insertAt stores a reading with an explicit timestamp, bypassing the
// store default.
func insertAt(t *testing.T, db *database.DB, temperature float64, ts time.Time) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO sensor_data
			(temperature, gas_level, light_intensity, fire_detected, fan_status, led_status, timestamp)
		VALUES ($1, 0, 0, 0, 0, 0, $2)`,
		temperature, ts.UTC().Format("2006-01-02 15:04:05.000"),
	)
	if err != nil {
		t.Fatalf("inserting reading: %v", err)
	}
}

type failingProvider struct{ err error }

func (p failingProvider) Acquire(context.Context) (database.Conn, error) { return nil, p.err }

type recordingPublisher struct {
	mu       sync.Mutex
	readings []Reading
	err      error
}

func (p *recordingPublisher) PublishReading(_ context.Context, r Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readings = append(p.readings, r)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.readings)
}

func validUpload() Upload {
	return Upload{
		Temperature:    22.5,
		GasLevel:       310,
		LightIntensity: 0.75,
		FireDetected:   false,
		FanStatus:      true,
		LEDStatus:      true,
	}
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func jsonMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
