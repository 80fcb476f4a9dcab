// Package sqlite backs the metadata repository with an embedded SQLite
// database so the service needs no external dependencies of its own.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type DBConfig struct {
	Path         string
	MaxOpenConns int
}

const schema = `
CREATE TABLE IF NOT EXISTS domain (
	domain_id   TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT OR IGNORE INTO domain (domain_id, name, description)
VALUES ('default', 'Default', 'Connections not assigned to a specific domain');

CREATE TABLE IF NOT EXISTS connection (
	connection_id TEXT PRIMARY KEY,
	domain_id     TEXT NOT NULL DEFAULT 'default' REFERENCES domain (domain_id),
	name          TEXT NOT NULL UNIQUE,
	engine        TEXT NOT NULL,
	host          TEXT NOT NULL,
	port          INTEGER NOT NULL,
	database_name TEXT NOT NULL,
	username      TEXT NOT NULL,
	password      TEXT NOT NULL,
	params        TEXT NOT NULL DEFAULT '{}',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS saved_query (
	query_id       TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	description    TEXT NOT NULL DEFAULT '',
	sql_text       TEXT NOT NULL,
	connection_ids TEXT NOT NULL DEFAULT '[]',
	created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS query_history (
	history_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	query             TEXT NOT NULL,
	connection_ids    TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL,
	error_message     TEXT NOT NULL DEFAULT '',
	row_count         INTEGER NOT NULL DEFAULT 0,
	execution_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_connection_domain_id ON connection (domain_id);
CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history (created_at DESC);
`

// Open opens the metadata database and applies the schema. A path of
// ":memory:" yields an ephemeral store, used by the test profile.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("metadata db path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(initCtx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply metadata schema: %w", err)
	}
	return db, nil
}
