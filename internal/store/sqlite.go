package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteBackend stores checkpoints in a single SQLite table.
type SQLiteBackend struct {
	db *sql.DB
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=2000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	// A single connection keeps writes serialized; the slot has one writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteBackend{db: db}, nil
}

// migrate applies every embedded migration not yet recorded in
// schema_version. Each file runs in its own transaction.
func migrate(db *sql.DB) error {
	const ledger = `CREATE TABLE IF NOT EXISTS schema_version (
		name TEXT PRIMARY KEY,
		applied_ms INTEGER NOT NULL
	)`
	if _, err := db.Exec(ledger); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query("SELECT name FROM schema_version")
	if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("read schema_version: %w", err)
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	files, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, f := range files {
		if applied[f.Name()] {
			continue
		}
		if err := applyMigration(db, f.Name()); err != nil {
			return fmt.Errorf("migration %s: %w", f.Name(), err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, name string) error {
	body, err := migrations.ReadFile("migrations/" + name)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(body)); err != nil {
		tx.Rollback()
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (name, applied_ms) VALUES (?, ?)",
		name, time.Now().UnixMilli())
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Get implements Backend.
func (s *SQLiteBackend) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM checkpoints WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put implements Backend.
func (s *SQLiteBackend) Put(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	return err
}

// Delete implements Backend.
func (s *SQLiteBackend) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM checkpoints WHERE key = ?", key)
	return err
}

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
