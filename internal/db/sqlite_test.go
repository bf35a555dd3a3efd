package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sqliteFixture = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT,
    status TEXT DEFAULT 'active'
);
CREATE TABLE products (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT
);
CREATE INDEX idx_category ON products(category);
CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(id),
    created_at TEXT
);
CREATE TABLE order_items (
    order_id INTEGER NOT NULL,
    product_id INTEGER NOT NULL,
    quantity INTEGER,
    PRIMARY KEY (order_id, product_id),
    FOREIGN KEY (order_id) REFERENCES orders(id),
    FOREIGN KEY (product_id) REFERENCES products
);
CREATE TABLE shipments (
    id INTEGER PRIMARY KEY,
    order_id INTEGER,
    product_id INTEGER,
    FOREIGN KEY (order_id, product_id) REFERENCES order_items(order_id, product_id)
);
`

// newSQLiteFixture writes the fixture schema into a fresh database file
func newSQLiteFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open fixture database: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(sqliteFixture); err != nil {
		t.Fatalf("Failed to create fixture schema: %v", err)
	}
	return path
}

func openSQLite(t *testing.T, path string) Extractor {
	t.Helper()

	extractor, err := Open(context.Background(), "sqlite://"+path)
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	t.Cleanup(func() { _ = extractor.Close() })
	return extractor
}

func TestSQLiteExtraction(t *testing.T) {
	ctx := context.Background()
	extractor := openSQLite(t, newSQLiteFixture(t))

	if extractor.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %q, want %q", extractor.Dialect(), DialectSQLite)
	}

	s, err := extractor.ExtractSchema(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to extract schema: %v", err)
	}

	verifyTablesExist(t, s, []string{"order_items", "orders", "products", "shipments", "users"})

	users := s.Table("users")
	if users == nil {
		t.Fatal("Users table not found")
	}
	verifyColumns(t, users, []string{"id", "username", "email", "status"})
	verifyPrimaryKey(t, users, []string{"id"})
	verifyUniqueConstraint(t, s, "users", "username")

	status := users.Columns[3]
	if status.DefaultValue == nil || *status.DefaultValue != "'active'" {
		t.Errorf("Expected status default 'active', got %v", status.DefaultValue)
	}
	if users.Columns[1].Nullable {
		t.Error("Expected username to be NOT NULL")
	}
	if !users.Columns[2].Nullable {
		t.Error("Expected email to be nullable")
	}

	verifyPrimaryKey(t, s.Table("order_items"), []string{"order_id", "product_id"})
	verifyForeignKey(t, s, "orders", []string{"user_id"}, "users", []string{"id"})
	verifyForeignKey(t, s, "order_items", []string{"order_id"}, "orders", []string{"id"})
	// implicit reference resolves to the parent primary key
	verifyForeignKey(t, s, "order_items", []string{"product_id"}, "products", []string{"id"})
	verifyForeignKey(t, s, "shipments", []string{"order_id", "product_id"}, "order_items", []string{"order_id", "product_id"})

	if got := len(s.Table("shipments").ForeignKeys); got != 1 {
		t.Errorf("Expected composite foreign key to be one constraint, got %d", got)
	}

	verifyIndex(t, s, "products", "idx_category", []string{"category"})
	for _, idx := range s.Table("order_items").Indexes {
		t.Errorf("Primary key index %s should not be listed", idx.Name)
	}
}

func TestSQLiteSpecificTables(t *testing.T) {
	extractor := openSQLite(t, newSQLiteFixture(t))

	s, err := extractor.ExtractSchema(context.Background(), []string{"users", "products"})
	if err != nil {
		t.Fatalf("Failed to extract schema: %v", err)
	}

	verifyTablesExist(t, s, []string{"users", "products"})
	if s.Table("orders") != nil {
		t.Error("Should not include orders table")
	}
}

func TestSQLiteListTables(t *testing.T) {
	extractor := openSQLite(t, newSQLiteFixture(t))

	tables, err := extractor.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}

	want := []string{"order_items", "orders", "products", "shipments", "users"}
	if len(tables) != len(want) {
		t.Fatalf("ListTables() = %v, want %v", tables, want)
	}
	for i := range want {
		if tables[i] != want[i] {
			t.Errorf("ListTables()[%d] = %q, want %q", i, tables[i], want[i])
		}
	}
}

func TestSQLiteUnknownTable(t *testing.T) {
	extractor := openSQLite(t, newSQLiteFixture(t))

	if _, err := extractor.ExtractSchema(context.Background(), []string{"missing"}); err == nil {
		t.Error("Expected error for unknown table")
	}
}

func TestOpenMissingSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	_, err := Open(context.Background(), "sqlite://"+path)
	if err == nil {
		t.Fatal("Expected error for missing database file")
	}

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected *ConnectionError, got %T: %v", err, err)
	}
	if connErr.Dialect != DialectSQLite {
		t.Errorf("ConnectionError.Dialect = %q, want %q", connErr.Dialect, DialectSQLite)
	}

	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("Opening a missing database must not create the file")
	}
}
