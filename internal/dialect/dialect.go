// Package dialect holds the per-database shapes of migration statements.
// Statements are returned without a trailing semicolon.
package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tordrt/sqlschema/internal/schema"
	"github.com/tordrt/sqlschema/internal/sqlparse"
)

// ErrUnsupported is returned for changes a dialect cannot express
var ErrUnsupported = errors.New("not supported by dialect")

// Dialect abstracts database-specific statement rendering.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string

	// SupportsAddConstraint reports whether constraints can be added to or
	// dropped from an existing table. Without it foreign keys of new tables
	// are declared inside CREATE TABLE.
	SupportsAddConstraint() bool

	CreateExtension(name string) (string, error)
	DropExtension(name string) (string, error)

	CreateType(e schema.EnumType) (string, error)
	DropType(e schema.EnumType) (string, error)
	AddEnumValue(typ, label, before string) (string, error)
	// ReplaceType swaps old for e and converts cols to the new type. The
	// result holds several statements.
	ReplaceType(old, e schema.EnumType, cols []schema.ColumnRef) (string, error)

	// Column changes. col is the column state after the change.
	AlterColumnType(table string, col schema.Column) (string, error)
	AlterColumnNullability(table string, col schema.Column) (string, error)
	AlterColumnDefault(table string, col schema.Column) (string, error)
	AlterColumnIdentity(table string, old, col schema.Column) (string, error)

	AddConstraint(table string, c schema.Constraint) (string, error)
	DropConstraint(table string, c schema.Constraint) (string, error)

	CreateIndex(idx schema.Index) (string, error)
	DropIndex(idx schema.Index) (string, error)
}

// Get returns the dialect registered under name
func Get(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "postgres", "postgresql":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the supported dialect names
func Names() []string {
	return []string{"postgres", "mysql", "sqlite"}
}

// Ensure interface implementation
var (
	_ Dialect = Postgres{}
	_ Dialect = MySQL{}
	_ Dialect = SQLite{}
)

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

// quoteParts quotes each dot-separated part of name that is not a plain
// lower-case identifier or is a keyword.
func quoteParts(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if !plainIdent.MatchString(p) || sqlparse.IsKeyword(p) {
			parts[i] = quote(p)
		}
	}
	return strings.Join(parts, ".")
}

// QuoteList quotes and joins column names
func QuoteList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		if strings.HasPrefix(n, "(") {
			quoted[i] = n
			continue
		}
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// ColumnDefinition renders "name type [NOT NULL] [DEFAULT expr] [identity]"
func ColumnDefinition(d Dialect, col schema.Column) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(col.Type)
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*col.Default)
	}
	if col.Identity != "" {
		b.WriteString(identityClause(d, col.Identity))
	}
	return b.String()
}

// identityClause renders an identity for a column definition. SQLite has
// no equivalent outside INTEGER PRIMARY KEY, which is implicitly one.
func identityClause(d Dialect, identity string) string {
	switch d.(type) {
	case Postgres:
		return " GENERATED " + identity + " AS IDENTITY"
	case MySQL:
		return " AUTO_INCREMENT"
	}
	return ""
}

// QuoteLiteral renders s as a single-quoted string literal
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteLabels(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = QuoteLiteral(l)
	}
	return strings.Join(quoted, ", ")
}

// ConstraintDefinition renders "CONSTRAINT name <body>" as used inside
// CREATE TABLE and ADD CONSTRAINT.
func ConstraintDefinition(d Dialect, c schema.Constraint) (string, error) {
	body, err := constraintBody(d, c)
	if err != nil {
		return "", err
	}
	return "CONSTRAINT " + d.QuoteIdent(c.Name) + " " + body, nil
}

func constraintBody(d Dialect, c schema.Constraint) (string, error) {
	switch c.Kind {
	case schema.PrimaryKey:
		return "PRIMARY KEY (" + QuoteList(d, c.Columns) + ")", nil
	case schema.Unique:
		return "UNIQUE (" + QuoteList(d, c.Columns) + ")", nil
	case schema.Check:
		return "CHECK (" + c.Expression + ")", nil
	case schema.ForeignKey:
		if c.References == nil {
			return "", fmt.Errorf("foreign key %s has no reference", c.Name)
		}
		ref := c.References
		var b strings.Builder
		fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s", QuoteList(d, c.Columns), d.QuoteIdent(ref.Table))
		if len(ref.Columns) > 0 {
			fmt.Fprintf(&b, " (%s)", QuoteList(d, ref.Columns))
		}
		if ref.OnDelete != "" {
			b.WriteString(" ON DELETE " + ref.OnDelete)
		}
		if ref.OnUpdate != "" {
			b.WriteString(" ON UPDATE " + ref.OnUpdate)
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("constraint %s has unknown kind %d", c.Name, int(c.Kind))
	}
}

func alterTable(d Dialect, table string) string {
	return "ALTER TABLE " + d.QuoteIdent(table)
}

func unsupported(d Dialect, what string) error {
	return fmt.Errorf("%s %s: %w", d.Name(), what, ErrUnsupported)
}
