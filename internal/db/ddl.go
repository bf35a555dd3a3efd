package db

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemamodeler/internal/schema"
)

// FormatDDL rebuilds CREATE TABLE statements from a reflected schema. Column
// types are emitted as reflected, so the output is in the source dialect.
func FormatDDL(s *schema.Schema) string {
	var sb strings.Builder

	for i, table := range s.Tables {
		if i > 0 {
			sb.WriteString("\n")
		}

		var defs []string
		for _, col := range table.Columns {
			def := fmt.Sprintf("%s %s", col.Name, col.Type)
			if !col.Nullable {
				def += " NOT NULL"
			}
			if col.IsUnique {
				def += " UNIQUE"
			}
			if col.DefaultValue != nil {
				def += " DEFAULT " + *col.DefaultValue
			}
			defs = append(defs, def)
		}

		if len(table.PrimaryKey) > 0 {
			defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(table.PrimaryKey, ", ")))
		}

		for _, fk := range table.ForeignKeys {
			defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)",
				strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", ")))
		}

		fmt.Fprintf(&sb, "CREATE TABLE %s (\n    %s\n);\n", table.Name, strings.Join(defs, ",\n    "))
	}

	return sb.String()
}
