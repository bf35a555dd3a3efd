package db

import (
	"strings"
	"testing"

	"github.com/tordrt/schemamodeler/internal/schema"
)

func TestFormatDDL(t *testing.T) {
	def := "0"
	s := &schema.Schema{
		Tables: []schema.Table{
			{
				Name: "Customers",
				Columns: []schema.Column{
					{Name: "CustomerID", Type: "INTEGER", Nullable: false},
					{Name: "CompanyName", Type: "TEXT", Nullable: true},
				},
				PrimaryKey: []string{"CustomerID"},
			},
			{
				Name: "Orders",
				Columns: []schema.Column{
					{Name: "OrderID", Type: "INTEGER"},
					{Name: "CustomerID", Type: "INTEGER", Nullable: true},
					{Name: "Freight", Type: "REAL", Nullable: true, DefaultValue: &def},
				},
				PrimaryKey: []string{"OrderID"},
				ForeignKeys: []schema.ForeignKey{
					{Columns: []string{"CustomerID"}, RefTable: "Customers", RefColumns: []string{"CustomerID"}},
				},
			},
		},
	}

	got := FormatDDL(s)

	for _, want := range []string{
		"CREATE TABLE Customers (",
		"CustomerID INTEGER NOT NULL",
		"CompanyName TEXT,",
		"PRIMARY KEY (CustomerID)",
		"Freight REAL DEFAULT 0",
		"FOREIGN KEY (CustomerID) REFERENCES Customers(CustomerID)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatDDL output missing %q:\n%s", want, got)
		}
	}

	if strings.Count(got, "CREATE TABLE") != 2 {
		t.Errorf("Expected two statements, got:\n%s", got)
	}
}
