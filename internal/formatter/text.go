package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/sqlschema/internal/schema"
)

// TextFormatter formats schema as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the schema in compact text format
func (f *TextFormatter) Format(s *schema.Schema) error {
	if len(s.Extensions) > 0 {
		_, _ = fmt.Fprintf(f.writer, "EXTENSIONS %s\n", strings.Join(s.Extensions, ", "))
	}
	for _, e := range s.Types {
		_, _ = fmt.Fprintf(f.writer, "TYPE %s ENUM (%s)\n", e.Name, strings.Join(e.Labels, ", "))
	}
	preamble := len(s.Extensions)+len(s.Types) > 0

	for i, table := range s.Tables {
		if i > 0 || preamble {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.FormatTable(s, table)
	}
	return nil
}

// FormatTable writes one table, including the foreign keys pointing at it
func (f *TextFormatter) FormatTable(s *schema.Schema, table *schema.Table) {
	pkStr := ""
	if pk := table.PrimaryKey(); pk != nil {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(pk.Columns, ", "))
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s\n", table.Name, pkStr)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatColumn(col))
	}

	var others []schema.Constraint
	for _, c := range table.Constraints {
		if c.Kind != schema.PrimaryKey {
			others = append(others, c)
		}
	}
	if len(others) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  CONSTRAINTS:")
		for _, c := range others {
			_, _ = fmt.Fprintf(f.writer, "    %s %s\n", c.Name, describeConstraint(c))
		}
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			_, _ = fmt.Fprintf(f.writer, "    %s %s\n", idx.Name, describeIndex(idx))
		}
	}

	if refs := s.ReferencesTo(table.Name); len(refs) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  REFERENCED BY:")
		for _, ref := range refs {
			_, _ = fmt.Fprintf(f.writer, "    ← %s\n", describeIncoming(s, ref))
		}
	}
}

func formatColumn(col schema.Column) string {
	parts := []string{col.Name + ":", col.Type}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != nil {
		parts = append(parts, "DEFAULT "+*col.Default)
	}
	if col.Identity != "" {
		parts = append(parts, "GENERATED "+col.Identity+" AS IDENTITY")
	}
	return strings.Join(parts, " ")
}

// describeConstraint renders the body of a constraint, without its name
func describeConstraint(c schema.Constraint) string {
	switch c.Kind {
	case schema.Check:
		return "CHECK (" + c.Expression + ")"
	case schema.ForeignKey:
		ref := c.References
		out := fmt.Sprintf("(%s) → %s", strings.Join(c.Columns, ", "), ref.Table)
		if len(ref.Columns) > 0 {
			out += " (" + strings.Join(ref.Columns, ", ") + ")"
		}
		if ref.OnDelete != "" {
			out += " ON DELETE " + ref.OnDelete
		}
		if ref.OnUpdate != "" {
			out += " ON UPDATE " + ref.OnUpdate
		}
		return out
	default:
		return fmt.Sprintf("%s (%s)", c.Kind, strings.Join(c.Columns, ", "))
	}
}

func describeIndex(idx schema.Index) string {
	out := "(" + strings.Join(idx.Columns, ", ") + ")"
	if idx.Unique {
		out += " UNIQUE"
	}
	if idx.Method != "" {
		out += " USING " + idx.Method
	}
	if idx.Where != "" {
		out += " WHERE " + idx.Where
	}
	return out
}

func describeIncoming(s *schema.Schema, ref schema.ForeignKeyRef) string {
	c := s.Table(ref.Table).Constraint(ref.Constraint)
	return fmt.Sprintf("%s.%s (%s)", ref.Table, strings.Join(c.Columns, ", "), ref.Constraint)
}
