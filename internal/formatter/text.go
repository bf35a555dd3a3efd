package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemamodeler/internal/schema"
)

// TextFormatter formats schema as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Describe returns the compact text form of s. This is the structural
// description bound into role prompts.
func Describe(s *schema.Schema) string {
	var sb strings.Builder
	_ = NewTextFormatter(&sb).Format(s)
	return sb.String()
}

// Format writes the schema in compact text format
func (f *TextFormatter) Format(s *schema.Schema) error {
	p := &printer{w: f.writer}
	for i := range s.Tables {
		if i > 0 {
			p.println()
		}
		writeTextTable(p, &s.Tables[i])
	}
	return p.err
}

func writeTextTable(p *printer, table *schema.Table) {
	header := "TABLE " + table.Name
	if len(table.PrimaryKey) > 0 {
		header += fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	p.printf("%s\n", header)

	for _, col := range table.Columns {
		p.printf("  %s\n", textColumn(col))
	}

	if len(table.ForeignKeys) > 0 {
		p.printf("  FOREIGN KEYS:\n")
		for _, fk := range table.ForeignKeys {
			p.printf("    %s\n", foreignKeyArrow(fk))
		}
	}

	if len(table.Indexes) > 0 {
		p.printf("  INDEXES:\n")
		for _, idx := range table.Indexes {
			unique := ""
			if idx.IsUnique {
				unique = " UNIQUE"
			}
			p.printf("    %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
		}
	}
}

// textColumn renders "name: TYPE [UNIQUE] [NOT NULL] [DEFAULT x]"
func textColumn(col schema.Column) string {
	parts := []string{col.Name + ":", columnType(col)}
	if col.IsUnique {
		parts = append(parts, "UNIQUE")
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.DefaultValue != nil {
		parts = append(parts, "DEFAULT "+*col.DefaultValue)
	}
	return strings.Join(parts, " ")
}

func columnType(col schema.Column) string {
	if len(col.EnumValues) == 0 {
		return col.Type
	}
	return fmt.Sprintf("%s (%s)", col.Type, strings.Join(col.EnumValues, "|"))
}

// foreignKeyArrow renders "(cols) → table(refcols)"
func foreignKeyArrow(fk schema.ForeignKey) string {
	return fmt.Sprintf("(%s) → %s(%s)",
		strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "))
}
