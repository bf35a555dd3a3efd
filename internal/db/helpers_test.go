package db

import (
	"reflect"
	"testing"

	"github.com/tordrt/schemamodeler/internal/schema"
)

// verifyTablesExist checks that exactly the expected tables are present in the schema
func verifyTablesExist(t *testing.T, s *schema.Schema, expectedTables []string) {
	t.Helper()

	if len(s.Tables) != len(expectedTables) {
		t.Errorf("Expected %d tables, got %d (%v)", len(expectedTables), len(s.Tables), s.TableNames())
	}

	for _, tableName := range expectedTables {
		if s.Table(tableName) == nil {
			t.Errorf("Expected table %s not found in schema", tableName)
		}
	}
}

// verifyColumns checks that the table's columns appear in the expected order
func verifyColumns(t *testing.T, table *schema.Table, expectedColumns []string) {
	t.Helper()

	var got []string
	for _, col := range table.Columns {
		got = append(got, col.Name)
	}
	if !reflect.DeepEqual(got, expectedColumns) {
		t.Errorf("Expected columns %v in %s, got %v", expectedColumns, table.Name, got)
	}
}

func verifyPrimaryKey(t *testing.T, table *schema.Table, expectedPK []string) {
	t.Helper()

	if !reflect.DeepEqual(table.PrimaryKey, expectedPK) {
		t.Errorf("Expected primary key %v on %s, got %v", expectedPK, table.Name, table.PrimaryKey)
	}
}

func verifyUniqueConstraint(t *testing.T, s *schema.Schema, tableName, columnName string) {
	t.Helper()

	table := s.Table(tableName)
	if table == nil {
		t.Fatalf("Table %s not found", tableName)
	}

	for _, col := range table.Columns {
		if col.Name == columnName {
			if !col.IsUnique {
				t.Errorf("Expected %s.%s to have unique constraint", tableName, columnName)
			}
			return
		}
	}

	t.Errorf("Column %s not found in table %s", columnName, tableName)
}

// verifyForeignKey checks that one constraint maps columns onto refTable.refColumns
func verifyForeignKey(t *testing.T, s *schema.Schema, tableName string, columns []string, refTable string, refColumns []string) {
	t.Helper()

	table := s.Table(tableName)
	if table == nil {
		t.Fatalf("Table %s not found", tableName)
	}

	for _, fk := range table.ForeignKeys {
		if fk.RefTable == refTable && reflect.DeepEqual(fk.Columns, columns) {
			if !reflect.DeepEqual(fk.RefColumns, refColumns) {
				t.Errorf("Foreign key %s%v references %v, want %v", tableName, columns, fk.RefColumns, refColumns)
			}
			return
		}
	}

	t.Errorf("Expected foreign key %s%v -> %s%v not found in %+v", tableName, columns, refTable, refColumns, table.ForeignKeys)
}

func verifyIndex(t *testing.T, s *schema.Schema, tableName, indexName string, expectedColumns []string) {
	t.Helper()

	table := s.Table(tableName)
	if table == nil {
		t.Fatalf("Table %s not found", tableName)
	}

	for _, idx := range table.Indexes {
		if idx.Name == indexName {
			if !reflect.DeepEqual(idx.Columns, expectedColumns) {
				t.Errorf("Expected index %s on %v, got %v", indexName, expectedColumns, idx.Columns)
			}
			return
		}
	}

	t.Errorf("Expected index %s on %s table not found", indexName, tableName)
}
