package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// Database is the dispatch core's sqlite-backed store: risk limits, the
// token blacklist, and transaction history all live in one file.
type Database struct {
	DB *sql.DB
}

// New opens the sqlite file at path, creating the file and its parent
// directory on first use. The pool is capped at one connection: every writer
// here (executor, monitor, risk gate) is a short single-statement write, and
// sqlite serializes writers anyway.
func New(path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	handle.SetMaxOpenConns(1)

	return &Database{DB: handle}, nil
}

// Close releases the underlying handle. Safe on a nil receiver.
func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
