package formatter

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tordrt/sqlschema/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	if len(s.Extensions) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Extensions")
		_, _ = fmt.Fprintln(f.writer)
		for _, name := range s.Extensions {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", name)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
	if len(s.Types) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Types")
		_, _ = fmt.Fprintln(f.writer)
		for _, e := range s.Types {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** enum `%s`\n", e.Name, strings.Join(e.Labels, "`, `"))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	for _, table := range s.Tables {
		f.FormatTable(s, table)
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(s *schema.Schema, table *schema.Table) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	var pk []string
	if c := table.PrimaryKey(); c != nil {
		pk = c.Columns
	}
	for _, col := range table.Columns {
		if attrs := columnAttributes(col, pk); attrs != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** `%s`, %s\n", col.Name, col.Type, attrs)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** `%s`\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	var others []schema.Constraint
	for _, c := range table.Constraints {
		if c.Kind != schema.PrimaryKey {
			others = append(others, c)
		}
	}
	if len(others) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Constraints")
		_, _ = fmt.Fprintln(f.writer)
		for _, c := range others {
			_, _ = fmt.Fprintf(f.writer, "- %s: `%s`\n", c.Name, describeConstraint(c))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Indexes")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			_, _ = fmt.Fprintf(f.writer, "- %s on `%s`\n", idx.Name, describeIndex(idx))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if refs := s.ReferencesTo(table.Name); len(refs) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Referenced by")
		_, _ = fmt.Fprintln(f.writer)
		for _, ref := range refs {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", describeIncoming(s, ref))
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func columnAttributes(col schema.Column, primaryKey []string) string {
	var attrs []string
	if slices.Contains(primaryKey, col.Name) {
		attrs = append(attrs, "PK")
	}
	if !col.Nullable {
		attrs = append(attrs, "NOT NULL")
	}
	if col.Default != nil {
		attrs = append(attrs, fmt.Sprintf("DEFAULT `%s`", *col.Default))
	}
	if col.Identity != "" {
		attrs = append(attrs, "GENERATED "+col.Identity+" AS IDENTITY")
	}
	return strings.Join(attrs, ", ")
}
