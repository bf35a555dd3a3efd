package formatter

import (
	"io"
	"strings"

	"github.com/tordrt/schemamodeler/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema as one markdown document
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	p := &printer{w: f.writer}
	p.printf("# Database Schema\n\n")
	for i := range s.Tables {
		writeMarkdownTable(p, &s.Tables[i])
	}
	return p.err
}

func writeMarkdownTable(p *printer, table *schema.Table) {
	p.printf("## %s\n\n", table.Name)

	p.printf("### Columns\n\n")
	for _, col := range table.Columns {
		constraints := markdownConstraints(table, col)
		if constraints != "" {
			p.printf("- **%s:** %s, %s\n", col.Name, columnType(col), constraints)
		} else {
			p.printf("- **%s:** %s\n", col.Name, columnType(col))
		}
	}
	p.println()

	if len(table.ForeignKeys) > 0 {
		p.printf("### References\n\n")
		for _, fk := range table.ForeignKeys {
			if fk.Name != "" {
				p.printf("- %s: %s\n", fk.Name, foreignKeyArrow(fk))
			} else {
				p.printf("- %s\n", foreignKeyArrow(fk))
			}
		}
		p.println()
	}

	if len(table.Indexes) > 0 {
		p.printf("### Indexes\n\n")
		for _, idx := range table.Indexes {
			suffix := ""
			if idx.IsUnique {
				suffix = ", unique"
			}
			p.printf("- %s on (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), suffix)
		}
		p.println()
	}
}

func markdownConstraints(table *schema.Table, col schema.Column) string {
	var constraints []string
	if table.IsPrimaryKey(col.Name) {
		constraints = append(constraints, "PK")
	}
	if fk := table.ForeignKeyFor(col.Name); fk != nil {
		constraints = append(constraints, "FK → "+fk.RefTable)
	}
	if col.IsUnique {
		constraints = append(constraints, "UNIQUE")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.DefaultValue != nil {
		constraints = append(constraints, "DEFAULT "+*col.DefaultValue)
	}
	return strings.Join(constraints, ", ")
}
