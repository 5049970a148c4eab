// Package catalog reads destination table metadata and checks or inserts
// rows. One implementation exists per supported engine (PostgreSQL, SQL
// Server, SQLite) plus an in-memory catalog for tests and dry runs.
//
// All statements quote identifiers and bind values; nothing from a
// spreadsheet is ever spliced into SQL text.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/config"
	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

// DB is a connected catalog.
type DB interface {
	core.Catalog
	core.KeyLookup
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ DB = (*Postgres)(nil)
	_ DB = (*SQLServer)(nil)
	_ DB = (*SQLite)(nil)
	_ DB = (*Memory)(nil)
)

// Drivers lists the accepted values of DatabaseConfig.Driver.
var Drivers = []string{"postgres", "sqlserver", "sqlite"}

// Open connects to the database described by cfg and pings it within
// cfg.ConnectTimeout.
func Open(ctx context.Context, cfg config.DatabaseConfig) (DB, error) {
	var db DB
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql", "pgx":
		poolConfig, err := pgxpool.ParseConfig(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		poolConfig.MaxConns = int32(cfg.MaxConns)
		poolConfig.MinConns = int32(cfg.MinConns)
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("create connection pool: %w", err)
		}
		db = NewPostgres(pool)

	case "sqlserver", "mssql":
		x, err := sqlx.Open("sqlserver", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlserver: %w", err)
		}
		applyPool(x, cfg)
		db = NewSQLServer(x)

	case "sqlite", "sqlite3":
		x, err := sqlx.Open("sqlite3", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		applyPool(x, cfg)
		if isMemoryDSN(cfg.URL) {
			x.SetMaxOpenConns(1)
			x.SetConnMaxLifetime(0)
			x.SetConnMaxIdleTime(0)
		}
		db = NewSQLite(x)

	default:
		return nil, fmt.Errorf("unsupported database driver %q (want one of %s)", cfg.Driver, strings.Join(Drivers, ", "))
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func applyPool(x *sqlx.DB, cfg config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		x.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		x.SetMaxIdleConns(cfg.MinConns)
	}
	x.SetConnMaxLifetime(cfg.MaxConnLifetime)
	x.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
}
