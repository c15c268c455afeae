// Package database provides relational store connectivity for IPS Core.
//
// Two drivers are supported through database/sql:
//   - "pgx" (github.com/jackc/pgx/v5/stdlib) for PostgreSQL, the production store
//   - "sqlite3" (github.com/mattn/go-sqlite3) for development and tests
//
// Queries are written with $N placeholders, which both drivers accept.
//
// This package manages:
//   - Connection providers: one fresh connection per request (DirectProvider)
//     or a shared pool (PooledProvider)
//   - Embedded per-dialect schema migrations, applied only on request
//   - Ping, the store check behind GET /health
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - The SQLite directory is created with 0750 permissions
//
// Usage:
//
//	p, err := database.NewDirectProvider(cfg)
//	if err != nil {
//	    return err
//	}
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
// Migration Strategy:
//
// Migrations live under migrations/<dialect>/ and are forward-only. Each
// file is NNNN_name.sql and is applied once, in its own transaction, and
// recorded in schema_migrations.
package database
