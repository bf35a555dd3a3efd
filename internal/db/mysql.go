package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient creates a new MySQL client from a driver DSN
func NewMySQLClient(ctx context.Context, dsn string) (*MySQLClient, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, &ConnectionError{Dialect: DialectMySQL, Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Dialect: DialectMySQL, Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	return &MySQLClient{db: db}, nil
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *MySQLClient) GetDB() *sql.DB {
	return c.db
}

// MySQLDSN converts a mysql:// URL into a go-sql-driver DSN. URLs that
// already carry a driver DSN (user:pass@tcp(host)/db) pass through.
func MySQLDSN(databaseURL string) (string, error) {
	rest := strings.TrimPrefix(databaseURL, "mysql://")
	if strings.Contains(rest, "@tcp(") || strings.Contains(rest, "@unix(") {
		return rest, nil
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if cfg.DBName == "" {
		return "", fmt.Errorf("%w: mysql URL has no database name", ErrInvalidURL)
	}

	dsn := cfg.FormatDSN()
	if u.RawQuery == "" {
		return dsn, nil
	}

	// let the driver interpret its own options (parseTime, tls, ...)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	parsed, err := mysql.ParseDSN(dsn + sep + u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("%w: bad mysql options: %w", ErrInvalidURL, err)
	}
	return parsed.FormatDSN(), nil
}

// ParseDatabaseName extracts the database name from a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("%w: mysql DSN has no database name", ErrInvalidURL)
	}
	return cfg.DBName, nil
}
