// Package sqlstore persists weather snapshots and favorites in SQLite
// (mattn/go-sqlite3) or PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects the SQL driver and the few statements that differ.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driver() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB owns the connection pool shared by the weather and favorites stores.
type DB struct {
	sql     *sql.DB
	dialect Dialect
}

// Open connects, pings and migrates. For SQLite, dsn is a file path or
// ":memory:".
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	switch dialect {
	case SQLite, Postgres:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	s, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite {
		// Single writer; also keeps :memory: to one database.
		s.SetMaxOpenConns(1)
	} else {
		s.SetMaxOpenConns(10)
		s.SetMaxIdleConns(5)
		s.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(pingCtx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s, dialect: dialect}
	if err := d.migrate(pingCtx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Ping checks the connection. Used by health checks.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.dialect == Postgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS weather_records (
			city_key TEXT PRIMARY KEY,
			city_name TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			country TEXT,
			temperature DOUBLE PRECISION,
			feels_like DOUBLE PRECISION,
			temp_min DOUBLE PRECISION,
			temp_max DOUBLE PRECISION,
			pressure INTEGER,
			humidity INTEGER,
			description TEXT,
			icon TEXT,
			wind_speed DOUBLE PRECISION,
			sunrise BIGINT,
			sunset BIGINT,
			last_updated BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_records_last_updated ON weather_records(last_updated)`,
		`CREATE TABLE IF NOT EXISTS favorite_cities (
			` + idColumn + `,
			city_key TEXT NOT NULL UNIQUE,
			city_name TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			country TEXT,
			last_updated BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, d.dialect.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, d.dialect.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, d.dialect.rebind(query), args...)
}
