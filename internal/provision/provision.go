// Package provision creates the Northwind sample schema in a database.
package provision

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/tordrt/schemamodeler/internal/db"
	"github.com/tordrt/schemamodeler/internal/logger"
)

//go:embed northwind/*.sql
var ddlFS embed.FS

// Tables lists the Northwind tables in creation order
var Tables = []string{
	"Categories", "Customers", "Employees", "Shippers",
	"Suppliers", "Products", "Orders", "OrderDetails",
}

// Provisioner creates the Northwind schema
type Provisioner struct {
	log logrus.FieldLogger
}

// New creates a Provisioner
func New(log logrus.FieldLogger) *Provisioner {
	return &Provisioner{log: logger.OrDiscard(log)}
}

// Statements returns the Northwind DDL for dialect, one CREATE TABLE per
// element, referenced tables first
func Statements(dialect string) ([]string, error) {
	data, err := ddlFS.ReadFile("northwind/" + dialect + ".sql")
	if err != nil {
		return nil, fmt.Errorf("no northwind schema for dialect %q", dialect)
	}

	var stmts []string
	for _, stmt := range strings.Split(string(data), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// Create provisions the Northwind tables behind databaseURL. Existing
// tables are left untouched, so repeated runs are harmless. SQLite files
// are created on demand; PostgreSQL and MySQL databases are created first
// if missing.
func (p *Provisioner) Create(ctx context.Context, databaseURL string) error {
	dialect, connStr, err := db.ParseDatabaseURL(databaseURL)
	if err != nil {
		return err
	}
	log := p.log.WithFields(logrus.Fields{"dialect": dialect, "url": db.RedactURL(databaseURL)})

	stmts, err := Statements(dialect)
	if err != nil {
		return err
	}

	log.Info("creating northwind schema")
	switch dialect {
	case db.DialectPostgres:
		err = p.createPostgres(ctx, connStr, stmts, log)
	case db.DialectMySQL:
		err = p.createMySQL(ctx, connStr, stmts, log)
	default:
		err = p.createSQLite(ctx, connStr, stmts)
	}
	if err != nil {
		log.WithError(err).Error("failed to create northwind schema")
		return err
	}

	log.WithField("tables", len(stmts)).Info("northwind schema created")
	return nil
}

func (p *Provisioner) createSQLite(ctx context.Context, path string, stmts []string) error {
	client, err := db.NewSQLiteClient(ctx, db.SQLiteDSN(path, false))
	if err != nil {
		return err
	}
	defer client.Close()

	tx, err := client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return tx.Commit()
}

func (p *Provisioner) createPostgres(ctx context.Context, connStr string, stmts []string, log logrus.FieldLogger) error {
	if err := p.EnsureDatabase(ctx, connStr); err != nil {
		return err
	}

	client, err := db.NewPostgresClient(ctx, connStr)
	if err != nil {
		return err
	}
	defer client.Close(context.WithoutCancel(ctx))

	log.Debug("creating tables")
	tx, err := client.GetConnection().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// EnsureDatabase creates the PostgreSQL database named in connStr when it
// does not exist yet, connecting through the postgres maintenance database
func (p *Provisioner) EnsureDatabase(ctx context.Context, connStr string) error {
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("%w: %w", db.ErrInvalidURL, err)
	}
	name := cfg.Database
	if name == "" || name == "postgres" {
		return nil
	}
	log := p.log.WithField("database", name)

	cfg.Database = "postgres"
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return &db.ConnectionError{Dialect: db.DialectPostgres, Err: err}
	}
	defer conn.Close(context.WithoutCancel(ctx))

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_catalog.pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check database: %w", err)
	}
	if exists {
		log.Info("database already exists")
		return nil
	}

	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	log.Info("database created")
	return nil
}

func (p *Provisioner) createMySQL(ctx context.Context, dsn string, stmts []string, log logrus.FieldLogger) error {
	if err := p.ensureMySQLDatabase(ctx, dsn); err != nil {
		return err
	}

	client, err := db.NewMySQLClient(ctx, dsn)
	if err != nil {
		return err
	}
	defer client.Close()

	// DDL commits implicitly in MySQL
	log.Debug("creating tables")
	for _, stmt := range stmts {
		if _, err := client.GetDB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (p *Provisioner) ensureMySQLDatabase(ctx context.Context, dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("%w: %w", db.ErrInvalidURL, err)
	}
	name := cfg.DBName
	cfg.DBName = ""

	client, err := db.NewMySQLClient(ctx, cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer client.Close()

	quoted := "`" + strings.ReplaceAll(name, "`", "``") + "`"
	if _, err := client.GetDB().ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+quoted); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// ListTables returns the base tables behind databaseURL, sorted
func (p *Provisioner) ListTables(ctx context.Context, databaseURL string) ([]string, error) {
	extractor, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	defer extractor.Close()

	return extractor.ListTables(ctx)
}
