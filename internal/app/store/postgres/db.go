/*
Package postgres implements the store interfaces over PostgreSQL via pgx.

Set-valued message and room fields (readBy, mentions, reactions, members,
banned) are mutated with single-statement atomic updates so concurrent
mutations of one document never lose writes.
*/
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"chatrelay/internal/app/store"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DB wraps a pgx connection pool and exposes the store collections.
type DB struct {
	pool *pgxpool.Pool
}

// New initializes a PostgreSQL connection pool, runs pending migrations,
// and returns the store handle. Failure here is fatal to startup.
func New(dsn string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{pool: pool}, nil
}

// Store exposes the DB as the three collection interfaces.
func (d *DB) Store() store.Store {
	return store.Store{
		Messages: &messageColl{pool: d.pool},
		Rooms:    &roomColl{pool: d.pool},
		Users:    &userColl{pool: d.pool},
	}
}

// Close releases the underlying connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
