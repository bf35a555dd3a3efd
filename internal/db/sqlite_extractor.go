package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/tordrt/schemamodeler/internal/schema"
)

// SQLiteExtractor handles schema extraction from SQLite
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{client: client}
}

// Dialect implements Extractor
func (e *SQLiteExtractor) Dialect() string { return DialectSQLite }

// Close implements Extractor
func (e *SQLiteExtractor) Close() error { return e.client.Close() }

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the database
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	tableNames := tables
	if len(tableNames) == 0 {
		var err error
		tableNames, err = e.ListTables(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get table names: %w", err)
		}
	}

	extracted := make([]schema.Table, 0, len(tableNames))
	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		extracted = append(extracted, *table)
	}

	return &schema.Schema{Tables: extracted}, nil
}

// ListTables returns every user table, skipping SQLite's internal tables
func (e *SQLiteExtractor) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// extractTable extracts all information for a single table
func (e *SQLiteExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, pk, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table does not exist")
	}
	table.Columns = columns
	table.PrimaryKey = pk

	fks, err := e.extractForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = fks

	indexes, err := e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes

	markUniqueColumns(table.Columns, table.Indexes, table.PrimaryKey)

	return table, nil
}

// extractColumns returns the columns in declaration order and the primary
// key columns in key order
func (e *SQLiteExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, []string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type pkColumn struct {
		name  string
		order int
	}

	var columns []schema.Column
	var pkColumns []pkColumn
	for rows.Next() {
		var name, colType string
		var notNull, pkOrder int
		var defaultValue sql.NullString

		if err := rows.Scan(&name, &colType, &notNull, &defaultValue, &pkOrder); err != nil {
			return nil, nil, err
		}

		col := schema.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
		}
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}
		if pkOrder > 0 {
			pkColumns = append(pkColumns, pkColumn{name: name, order: pkOrder})
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(pkColumns, func(i, j int) bool { return pkColumns[i].order < pkColumns[j].order })
	var pk []string
	for _, c := range pkColumns {
		pk = append(pk, c.name)
	}

	return columns, pk, nil
}

// extractForeignKeys groups foreign_key_list rows by constraint id. A
// reference without explicit columns points at the parent's primary key.
func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	rows, err := e.client.GetDB().QueryContext(ctx,
		`SELECT id, "table", "from", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, tableName)
	if err != nil {
		return nil, err
	}

	type fkRow struct {
		id                int
		refTable, fromCol string
		toCol             sql.NullString
	}

	var fkRows []fkRow
	for rows.Next() {
		var r fkRow
		if err := rows.Scan(&r.id, &r.refTable, &r.fromCol, &r.toCol); err != nil {
			rows.Close()
			return nil, err
		}
		fkRows = append(fkRows, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	parentKeys := make(map[string][]string)
	var fks []schema.ForeignKey
	var lastKey string
	for _, r := range fkRows {
		refColumn := r.toCol.String
		if !r.toCol.Valid || refColumn == "" {
			parentPK, ok := parentKeys[r.refTable]
			if !ok {
				_, parentPK, err = e.extractColumns(ctx, r.refTable)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve primary key of %s: %w", r.refTable, err)
				}
				parentKeys[r.refTable] = parentPK
			}
			position := 0
			if len(fks) > 0 && lastKey == fmt.Sprint(r.id) {
				position = len(fks[len(fks)-1].Columns)
			}
			if position < len(parentPK) {
				refColumn = parentPK[position]
			}
		}
		fks = appendForeignKeyColumn(fks, fmt.Sprint(r.id), "", r.fromCol, r.refTable, refColumn, &lastKey)
	}

	return fks, nil
}

// extractIndexes lists explicit and UNIQUE-constraint indexes. Indexes
// backing the primary key are left out.
func (e *SQLiteExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	rows, err := e.client.GetDB().QueryContext(ctx,
		`SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`, tableName)
	if err != nil {
		return nil, err
	}

	var indexes []schema.Index
	for rows.Next() {
		var idx schema.Index
		var unique int
		var origin string
		if err := rows.Scan(&idx.Name, &unique, &origin); err != nil {
			rows.Close()
			return nil, err
		}
		if origin == "pk" {
			continue
		}
		idx.IsUnique = unique == 1
		indexes = append(indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range indexes {
		columns, err := e.indexColumns(ctx, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = columns
	}

	return indexes, nil
}

// indexColumns returns the columns of an index in key order
func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx,
		`SELECT name FROM pragma_index_info(?) ORDER BY seqno`, indexName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		// expression indexes have no column name
		if name.Valid {
			columns = append(columns, name.String)
		}
	}

	return columns, rows.Err()
}
