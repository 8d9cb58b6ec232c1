package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style, time encoding and schema.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect maps the collector.db.driver setting to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case SQLite, Postgres:
		return Dialect(driver), nil
	default:
		return "", fmt.Errorf("unsupported db driver %q", driver)
	}
}

// InitDB opens the database for the dialect and ensures tables exist.
func InitDB(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case SQLite:
		return initSQLite(dsn)
	case Postgres:
		return initPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", dialect)
	}
}

func initSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(string(SQLite), path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	return finishInit(db, SQLite)
}

func initPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(Postgres), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return finishInit(db, Postgres)
}

func finishInit(db *sql.DB, dialect Dialect) (*sql.DB, error) {
	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := ensureSchema(db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schemaMeasuresSQLite = `
CREATE TABLE IF NOT EXISTS t_measures (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    capteur TEXT NOT NULL,
    temperature REAL NOT NULL,
    humidity REAL NOT NULL,
    received_at TIMESTAMP NOT NULL
);
`

const schemaMeasuresPostgres = `
CREATE TABLE IF NOT EXISTS t_measures (
    id UUID PRIMARY KEY,
    timestamp TIMESTAMPTZ NOT NULL,
    capteur TEXT NOT NULL,
    temperature DOUBLE PRECISION NOT NULL,
    humidity DOUBLE PRECISION NOT NULL,
    received_at TIMESTAMPTZ NOT NULL
);
`

const schemaMeasuresIndex = `
CREATE INDEX IF NOT EXISTS idx_t_measures_capteur_ts ON t_measures (capteur, timestamp);
`

func schemaFor(dialect Dialect) []string {
	if dialect == Postgres {
		return []string{schemaMeasuresPostgres, schemaMeasuresIndex}
	}
	return []string{schemaMeasuresSQLite, schemaMeasuresIndex}
}

func ensureSchema(db *sql.DB, dialect Dialect) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range schemaFor(dialect) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
