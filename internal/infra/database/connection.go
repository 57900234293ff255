package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
)

// PoolOptions sizes the connection pool. Zero values keep the defaults below.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDBConnection opens the pool and pings it.
func NewDBConnection(ctx context.Context, connString string, opts PoolOptions) (*sql.DB, error) {
	// 1. Open only validates the DSN; nothing is dialed yet
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}

	// 2. Pool sizing
	db.SetMaxOpenConns(orDefault(opts.MaxOpenConns, 10))
	db.SetMaxIdleConns(orDefault(opts.MaxIdleConns, 5))
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)

	// 3. Ping
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
