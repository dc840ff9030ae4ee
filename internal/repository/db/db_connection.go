package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// pragmas run on every open. WAL lets the feed readers query while the
// recorder writes cycles.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

// InitDB opens or creates the SQLite file at path and applies the schema.
// ":memory:" gives a throwaway database.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	// one writer; a second connection to ":memory:" would be a different database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := setup(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func setup(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return ensureSchema(db)
}

const schemaChannelConfig = `
CREATE TABLE IF NOT EXISTS channel_config (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    name TEXT NOT NULL,
    profile TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    profile_name TEXT NOT NULL,
    channels TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    stopped_at TIMESTAMP,
    error TEXT
);
`

const schemaCycles = `
CREATE TABLE IF NOT EXISTS cycles (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    number INTEGER NOT NULL,
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP NOT NULL,
    incomplete BOOLEAN NOT NULL,
    end_reason TEXT NOT NULL,
    sample_count INTEGER NOT NULL,
    series TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycles_session ON cycles (session_id, number);
CREATE INDEX IF NOT EXISTS idx_cycles_start ON cycles (start_time);
`

const schemaSessionEvents = `
CREATE TABLE IF NOT EXISTS session_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL,
    meta TEXT
);
CREATE INDEX IF NOT EXISTS idx_session_events_time ON session_events (occurred_at);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events (session_id, occurred_at);
`

const schemaOperators = `
CREATE TABLE IF NOT EXISTS operators (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

// schema is applied in order; sessions must exist before cycles reference them.
var schema = []struct {
	table string
	ddl   string
}{
	{"channel_config", schemaChannelConfig},
	{"sessions", schemaSessions},
	{"cycles", schemaCycles},
	{"session_events", schemaSessionEvents},
	{"operators", schemaOperators},
}

func ensureSchema(db *sql.DB) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, s := range schema {
		if _, err = tx.Exec(s.ddl); err != nil {
			return fmt.Errorf("create %s: %w", s.table, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
