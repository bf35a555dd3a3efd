package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient creates a new SQLite client. dsn is usually built with SQLiteDSN.
func NewSQLiteClient(ctx context.Context, dsn string) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &ConnectionError{Dialect: DialectSQLite, Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Dialect: DialectSQLite, Err: fmt.Errorf("failed to open %s: %w", dsn, err)}
	}

	return &SQLiteClient{db: db}, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

// SQLiteDSN builds a file URI for path. Read-only handles refuse to create
// missing files; writable handles enforce foreign keys.
func SQLiteDSN(path string, readOnly bool) string {
	if readOnly {
		return fmt.Sprintf("file:%s?mode=ro", path)
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on", path)
}
