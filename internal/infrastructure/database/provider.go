package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Conn is a single store session owned by one request.
//
// *sql.Conn satisfies it, as does the connection handed out by
// DirectProvider. Callers must Close it on every exit path:
//
//	conn, err := provider.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// Provider hands out connections to the relational store.
type Provider interface {
	Acquire(ctx context.Context) (Conn, error)
}

// DirectProvider opens a brand new physical connection on every Acquire.
// Nothing is pooled or reused across calls; a failure to connect is
// returned immediately without retry.
type DirectProvider struct {
	cfg Config
}

// NewDirectProvider returns a per-request provider for cfg.
// The DSN is validated up front so a bad driver name fails at startup.
func NewDirectProvider(cfg Config) (*DirectProvider, error) {
	if _, err := cfg.DSN(); err != nil {
		return nil, err
	}
	return &DirectProvider{cfg: cfg}, nil
}

// Acquire opens and verifies a fresh connection.
func (p *DirectProvider) Acquire(ctx context.Context) (Conn, error) {
	sqlDB, err := openSQL(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()  //nolint:errcheck // Best effort cleanup on error path
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &directConn{Conn: conn, db: sqlDB}, nil
}

// directConn tears down its private sql.DB when closed, so the physical
// connection does not outlive the request.
type directConn struct {
	*sql.Conn
	db *sql.DB
}

func (c *directConn) Close() error {
	connErr := c.Conn.Close()
	dbErr := c.db.Close()
	if connErr != nil {
		return fmt.Errorf("closing connection: %w", connErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing connection: %w", dbErr)
	}
	return nil
}

// PooledProvider hands out connections from a shared pool. Close returns
// the connection to the pool instead of disconnecting.
type PooledProvider struct {
	db *DB
}

// NewPooledProvider wraps an open DB.
func NewPooledProvider(db *DB) *PooledProvider {
	return &PooledProvider{db: db}
}

// Acquire reserves one connection from the pool.
func (p *PooledProvider) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return conn, nil
}

// Ping acquires a connection, runs a trivial query and releases it.
func Ping(ctx context.Context, p Provider) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck // read-only query

	var one int
	if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
