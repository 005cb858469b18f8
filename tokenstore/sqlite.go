package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	_ "modernc.org/sqlite"
)

var _ Backend = (*SQLiteBackend)(nil)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS session_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteBackend persists values in a single table so a session survives restarts.
type SQLiteBackend struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("[OpenSQLite] creating %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("[OpenSQLite] sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)

	backend, err := NewSQLiteBackend(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return backend, nil
}

// NewSQLiteBackend wraps an open database and ensures the schema exists.
func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("[NewSQLiteBackend] db is required")
	}
	b := &SQLiteBackend{db: db, timeout: 2 * time.Second}

	ctx, cancel := b.context()
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("[NewSQLiteBackend] busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("[NewSQLiteBackend] schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) Get(key string) (string, error) {
	ctx, cancel := b.context()
	defer cancel()

	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM session_kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[SQLiteBackend.Get] %w", err)
	}
	return value, nil
}

func (b *SQLiteBackend) Set(key, value string) error {
	ctx, cancel := b.context()
	defer cancel()

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("[SQLiteBackend.Set] %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(key string) error {
	ctx, cancel := b.context()
	defer cancel()

	if _, err := b.db.ExecContext(ctx, `DELETE FROM session_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("[SQLiteBackend.Delete] %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}
