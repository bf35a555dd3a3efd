package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tordrt/schemamodeler/internal/db"
	"github.com/tordrt/schemamodeler/internal/schema"
)

// Output formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatDDL      = "ddl"
)

// Formatter renders a reflected schema
type Formatter interface {
	Format(s *schema.Schema) error
}

// New returns the single-document formatter for format
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case FormatText:
		return NewTextFormatter(w), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	case FormatJSON:
		return &JSONFormatter{writer: w}, nil
	case FormatDDL:
		return &DDLFormatter{writer: w}, nil
	}
	return nil, fmt.Errorf("invalid format: %s (must be text, markdown, json or ddl)", format)
}

// JSONFormatter writes the schema as indented JSON
type JSONFormatter struct {
	writer io.Writer
}

// Format implements Formatter
func (f *JSONFormatter) Format(s *schema.Schema) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// DDLFormatter writes CREATE TABLE statements rebuilt from the schema
type DDLFormatter struct {
	writer io.Writer
}

// Format implements Formatter
func (f *DDLFormatter) Format(s *schema.Schema) error {
	_, err := io.WriteString(f.writer, db.FormatDDL(s))
	return err
}

// printer remembers the first write error so formatters can write freely
// and report once
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println() {
	p.printf("\n")
}
