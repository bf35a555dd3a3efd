package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/schemamodeler/internal/schema"
)

// MultiFileFormatter writes an _overview file plus one file per table
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // FormatText or FormatMarkdown
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the schema to multiple files
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if f.OutputFormat != FormatText && f.OutputFormat != FormatMarkdown {
		return fmt.Errorf("multi-file output supports text or markdown, not %s", f.OutputFormat)
	}

	if err := os.MkdirAll(f.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile("_overview", func(p *printer) { f.writeOverview(p, s) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for i := range s.Tables {
		table := &s.Tables[i]
		err := f.writeFile(table.Name, func(p *printer) { f.writeTable(p, table, s) })
		if err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeFile(name string, body func(p *printer)) (err error) {
	file, err := os.Create(filepath.Join(f.OutputDir, name+f.extension()))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	p := &printer{w: file}
	body(p)
	return p.err
}

func (f *MultiFileFormatter) writeOverview(p *printer, s *schema.Schema) {
	names := s.TableNames()
	sort.Strings(names)

	if f.OutputFormat == FormatMarkdown {
		p.printf("# Schema Overview\n\n")
		p.printf("Each table has a corresponding file: `<table_name>%s`\n\n", f.extension())
		p.printf("## Tables\n\n")
	} else {
		p.printf("SCHEMA OVERVIEW\n")
		p.printf("Each table has a file: <table_name>%s\n\n", f.extension())
	}

	for _, name := range names {
		line := name
		if f.OutputFormat == FormatMarkdown {
			line = "- **" + name + "**"
		}
		if refs := referencedTables(s.Table(name)); len(refs) > 0 {
			line += fmt.Sprintf(" (references: %s)", strings.Join(refs, ", "))
		}
		p.printf("%s\n", line)
	}
}

func (f *MultiFileFormatter) writeTable(p *printer, table *schema.Table, s *schema.Schema) {
	if f.OutputFormat == FormatMarkdown {
		writeMarkdownTable(p, table)
	} else {
		writeTextTable(p, table)
	}

	incoming := incomingForeignKeys(table.Name, s)
	if len(incoming) == 0 {
		return
	}

	if f.OutputFormat == FormatMarkdown {
		p.printf("### Referenced by\n\n")
		for _, ref := range incoming {
			p.printf("- %s\n", ref)
		}
		p.println()
		return
	}

	p.printf("  REFERENCED BY:\n")
	for _, ref := range incoming {
		p.printf("    %s\n", ref)
	}
}

func (f *MultiFileFormatter) extension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}

// referencedTables lists the distinct parents of table's foreign keys
func referencedTables(table *schema.Table) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, fk := range table.ForeignKeys {
		if !seen[fk.RefTable] {
			seen[fk.RefTable] = true
			refs = append(refs, fk.RefTable)
		}
	}
	return refs
}

// incomingForeignKeys describes every constraint in s that points at tableName
func incomingForeignKeys(tableName string, s *schema.Schema) []string {
	var incoming []string
	for _, table := range s.Tables {
		for _, fk := range table.ForeignKeys {
			if fk.RefTable == tableName {
				incoming = append(incoming, fmt.Sprintf("%s(%s) → (%s)",
					table.Name, strings.Join(fk.Columns, ", "), strings.Join(fk.RefColumns, ", ")))
			}
		}
	}
	return incoming
}
