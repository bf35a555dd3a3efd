//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const postgresFixture = `
CREATE TYPE user_status AS ENUM ('active', 'inactive', 'banned');
CREATE TABLE users (
    id SERIAL PRIMARY KEY,
    username VARCHAR(50) NOT NULL UNIQUE,
    email TEXT,
    status user_status DEFAULT 'active',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);
CREATE TABLE products (
    id SERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    category TEXT
);
CREATE INDEX idx_category ON products(category);
CREATE TABLE orders (
    id SERIAL PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(id)
);
CREATE TABLE order_items (
    order_id INTEGER NOT NULL REFERENCES orders(id),
    product_id INTEGER NOT NULL REFERENCES products(id),
    quantity INTEGER,
    PRIMARY KEY (order_id, product_id)
);
CREATE TABLE shipments (
    id SERIAL PRIMARY KEY,
    order_id INTEGER,
    product_id INTEGER,
    CONSTRAINT fk_shipment_item FOREIGN KEY (order_id, product_id) REFERENCES order_items(order_id, product_id)
);
`

// postgresURL returns POSTGRES_TEST_URL or the URL of a throwaway container
func postgresURL(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("POSTGRES_TEST_URL"); url != "" {
		return url
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpassword"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, postgresFixture); err != nil {
		t.Fatalf("Failed to create fixture schema: %v", err)
	}
	return url
}

func TestPostgresExtraction(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	extractor, err := Open(ctx, postgresURL(t))
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer extractor.Close()

	s, err := extractor.ExtractSchema(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to extract schema: %v", err)
	}

	verifyTablesExist(t, s, []string{"order_items", "orders", "products", "shipments", "users"})

	users := s.Table("users")
	verifyColumns(t, users, []string{"id", "username", "email", "status", "created_at"})
	verifyPrimaryKey(t, users, []string{"id"})
	verifyUniqueConstraint(t, s, "users", "username")

	if got := users.Columns[1].Type; got != "varchar(50)" {
		t.Errorf("username type = %q, want varchar(50)", got)
	}
	if got := users.Columns[4].Type; got != "timestamptz" {
		t.Errorf("created_at type = %q, want timestamptz", got)
	}
	if got := users.Columns[3].EnumValues; len(got) != 3 {
		t.Errorf("status enum values = %v, want 3 labels", got)
	}

	verifyPrimaryKey(t, s.Table("order_items"), []string{"order_id", "product_id"})
	verifyForeignKey(t, s, "orders", []string{"user_id"}, "users", []string{"id"})
	verifyForeignKey(t, s, "shipments", []string{"order_id", "product_id"}, "order_items", []string{"order_id", "product_id"})
	if fks := s.Table("shipments").ForeignKeys; len(fks) != 1 || fks[0].Name != "fk_shipment_item" {
		t.Errorf("Expected one named composite constraint, got %+v", fks)
	}

	verifyIndex(t, s, "products", "idx_category", []string{"category"})
}

func TestPostgresSpecificTables(t *testing.T) {
	ctx := context.Background()

	extractor, err := Open(ctx, postgresURL(t))
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer extractor.Close()

	s, err := extractor.ExtractSchema(ctx, []string{"users", "products"})
	if err != nil {
		t.Fatalf("Failed to extract schema: %v", err)
	}
	verifyTablesExist(t, s, []string{"users", "products"})
}
