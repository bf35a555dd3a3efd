package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tordrt/schemamodeler/internal/schema"
)

// Supported dialects
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// Extractor reads the physical schema of one open database
type Extractor interface {
	// ExtractSchema extracts the given tables, or every base table if tables is empty
	ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error)
	// ListTables returns the names of all base tables, sorted
	ListTables(ctx context.Context) ([]string, error)
	Dialect() string
	Close() error
}

// ErrInvalidURL is matched by every error about a malformed database URL
var ErrInvalidURL = errors.New("invalid database URL")

// ConnectionError reports that a database could not be reached or rejected
// the credentials.
type ConnectionError struct {
	Dialect string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Dialect, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ParseDatabaseURL detects the dialect of a database URL and returns the
// connection string the dialect's driver expects.
//
// SQLite paths are taken verbatim after the scheme: sqlite://northwind.db is
// relative to the working directory and sqlite:///data/northwind.db is
// absolute. Unlike SQLAlchemy, sqlite:///northwind.db therefore names
// /northwind.db.
func ParseDatabaseURL(databaseURL string) (dialect, connectionStr string, err error) {
	if databaseURL == "" {
		return "", "", fmt.Errorf("%w: database URL is required", ErrInvalidURL)
	}

	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "mysql://"):
		dsn, err := MySQLDSN(databaseURL)
		if err != nil {
			return "", "", err
		}
		return DialectMySQL, dsn, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("%w: sqlite URL has no file path", ErrInvalidURL)
		}
		return DialectSQLite, path, nil
	}

	return "", "", fmt.Errorf("%w: unknown scheme (must start with postgres://, mysql://, or sqlite://)", ErrInvalidURL)
}

// Open connects to the database behind databaseURL and returns the
// extractor for its dialect. SQLite files are opened read-only so a
// mistyped path fails instead of creating an empty database.
func Open(ctx context.Context, databaseURL string) (Extractor, error) {
	dialect, connStr, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case DialectPostgres:
		client, err := NewPostgresClient(ctx, connStr)
		if err != nil {
			return nil, err
		}
		return NewPostgresExtractor(client, postgresSchemaName(connStr)), nil
	case DialectMySQL:
		client, err := NewMySQLClient(ctx, connStr)
		if err != nil {
			return nil, err
		}
		name, err := ParseDatabaseName(connStr)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return NewMySQLExtractor(client, name), nil
	default:
		client, err := NewSQLiteClient(ctx, SQLiteDSN(connStr, true))
		if err != nil {
			return nil, err
		}
		return NewSQLiteExtractor(client), nil
	}
}

// postgresSchemaName honours a search_path query parameter, defaulting to public
func postgresSchemaName(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "public"
	}
	if sp := u.Query().Get("search_path"); sp != "" {
		return strings.TrimSpace(strings.Split(sp, ",")[0])
	}
	return "public"
}

// RedactURL hides the password of a database URL for logging
func RedactURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.User == nil {
		return databaseURL
	}
	return u.Redacted()
}

// appendForeignKeyColumn adds one column pair to fks, starting a new
// constraint whenever the constraint key changes. Rows must arrive grouped
// by constraint and ordered by position.
func appendForeignKeyColumn(fks []schema.ForeignKey, key, name, column, refTable, refColumn string, lastKey *string) []schema.ForeignKey {
	if len(fks) == 0 || *lastKey != key {
		*lastKey = key
		return append(fks, schema.ForeignKey{
			Name:       name,
			Columns:    []string{column},
			RefTable:   refTable,
			RefColumns: []string{refColumn},
		})
	}
	last := &fks[len(fks)-1]
	last.Columns = append(last.Columns, column)
	last.RefColumns = append(last.RefColumns, refColumn)
	return fks
}

// markUniqueColumns flags columns covered by a single-column unique index
func markUniqueColumns(columns []schema.Column, indexes []schema.Index, primaryKey []string) {
	for _, idx := range indexes {
		if !idx.IsUnique || len(idx.Columns) != 1 {
			continue
		}
		if len(primaryKey) == 1 && primaryKey[0] == idx.Columns[0] {
			continue
		}
		for i := range columns {
			if columns[i].Name == idx.Columns[0] {
				columns[i].IsUnique = true
			}
		}
	}
}
