package reading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/ips-core/internal/infrastructure/database"
)

// Store persists readings.
type Store interface {
	Latest(ctx context.Context) (*Reading, error)
	Insert(ctx context.Context, u Upload) (*Reading, error)
}

// Repository reads and writes sensor_data through a connection provider.
// Each call acquires its own connection and releases it before returning.
type Repository struct {
	provider database.Provider
}

// NewRepository creates a reading repository backed by p.
func NewRepository(p database.Provider) *Repository {
	return &Repository{provider: p}
}

// Latest returns the reading with the greatest timestamp, or ErrNotFound
// when the table is empty.
func (r *Repository) Latest(ctx context.Context) (*Reading, error) {
	conn, err := r.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close() //nolint:errcheck // release only, nothing to flush

	row := conn.QueryRowContext(ctx, `
		SELECT temperature, gas_level, light_intensity,
		       fire_detected, fan_status, led_status, timestamp
		FROM sensor_data
		ORDER BY timestamp DESC
		LIMIT 1`)

	var (
		rd Reading
		ts storeTime
	)
	err = row.Scan(
		&rd.Temperature, &rd.GasLevel, &rd.LightIntensity,
		&rd.FireDetected, &rd.FanStatus, &rd.LEDStatus, &ts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}
	rd.Timestamp = ts.Time
	return &rd, nil
}

// Insert appends one reading inside a transaction and returns it with the
// timestamp the store assigned.
func (r *Repository) Insert(ctx context.Context, u Upload) (*Reading, error) {
	conn, err := r.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close() //nolint:errcheck // release only, nothing to flush

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var ts storeTime
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sensor_data
			(temperature, gas_level, light_intensity, fire_detected, fan_status, led_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING timestamp`,
		u.Temperature, u.GasLevel, u.LightIntensity,
		u.FireDetected, u.FanStatus, u.LEDStatus,
	).Scan(&ts)
	if err != nil {
		return nil, fmt.Errorf("inserting reading: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reading: %w", err)
	}

	return &Reading{
		Temperature:    u.Temperature,
		GasLevel:       u.GasLevel,
		LightIntensity: u.LightIntensity,
		FireDetected:   u.FireDetected,
		FanStatus:      u.FanStatus,
		LEDStatus:      u.LEDStatus,
		Timestamp:      ts.Time,
	}, nil
}

// Count returns the number of stored readings.
func (r *Repository) Count(ctx context.Context) (int, error) {
	conn, err := r.provider.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close() //nolint:errcheck // release only, nothing to flush

	var n int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sensor_data").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting readings: %w", err)
	}
	return n, nil
}

// sqliteTimeFormats are the text layouts SQLite may hand back when it does
// not convert a timestamp column itself.
var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// storeTime scans a timestamp from either driver. pgx returns time.Time;
// SQLite returns time.Time for declared TIMESTAMP columns and text for
// computed ones such as RETURNING.
type storeTime struct {
	time.Time
}

func (t *storeTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *storeTime) parse(s string) error {
	for _, layout := range sqliteTimeFormats {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = ts.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
