package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens an embedded SQLite ledger. ":memory:" yields a private
// in-memory database held on a single connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("platform/db: sqlite path required")
	}
	dsn := path
	memory := path == ":memory:"
	if !memory {
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	} else {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: open sqlite: %w", err)
	}
	if memory {
		handle.SetMaxOpenConns(1)
	}

	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("platform/db: ping sqlite: %w", err)
	}

	return handle, nil
}
