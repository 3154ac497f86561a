package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const kvSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteSlot implements Slot as one row of a key/value table.
type SQLiteSlot struct {
	conn *sql.DB
	key  string
}

// OpenSQLite opens (or creates) the database at dsn and returns the slot
// stored under key.
func OpenSQLite(dsn, key string) (*SQLiteSlot, error) {
	if key == "" {
		key = DefaultKey
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(kvSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply kv schema: %w", err)
	}
	return &SQLiteSlot{conn: conn, key: key}, nil
}

// Name returns the row key.
func (s *SQLiteSlot) Name() string { return "sqlite:" + s.key }

// Load returns the stored value, or nil when the row does not exist.
func (s *SQLiteSlot) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load %s: %w", s.key, err)
	}
	return data, nil
}

// Save upserts the row.
func (s *SQLiteSlot) Save(ctx context.Context, data []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, s.key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: save %s: %w", s.key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteSlot) Close() error {
	return s.conn.Close()
}
