// Package index mirrors loaded documents into SQLite for headline search,
// with FTS5 when built with the sqlite_fts5 tag and a LIKE fallback otherwise.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	path       TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL DEFAULT '',
	etag       TEXT NOT NULL DEFAULT '',
	file_tags  TEXT NOT NULL DEFAULT '[]',
	category   TEXT NOT NULL DEFAULT '',
	parsed_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS headlines (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	headline_id TEXT NOT NULL,
	level       INTEGER NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	todo        TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	category    TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	etag        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (document_id, headline_id)
);

CREATE INDEX IF NOT EXISTS idx_headlines_todo ON headlines(todo);
CREATE INDEX IF NOT EXISTS idx_headlines_category ON headlines(category);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
