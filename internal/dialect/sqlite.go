package dialect

import (
	"strings"

	"github.com/tordrt/sqlschema/internal/schema"
)

// SQLite cannot alter columns or constraints of an existing table; those
// changes need a table rebuild and are reported as unsupported.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdent(name string) string {
	return quoteParts(name, func(part string) string {
		return `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
	})
}

func (SQLite) SupportsAddConstraint() bool { return false }

func (d SQLite) CreateExtension(name string) (string, error) {
	return "", unsupported(d, "extension "+name)
}

func (d SQLite) DropExtension(name string) (string, error) {
	return "", unsupported(d, "extension "+name)
}

func (d SQLite) CreateType(e schema.EnumType) (string, error) {
	return "", unsupported(d, "CREATE TYPE "+e.Name)
}

func (d SQLite) DropType(e schema.EnumType) (string, error) {
	return "", unsupported(d, "DROP TYPE "+e.Name)
}

func (d SQLite) AddEnumValue(typ, label, _ string) (string, error) {
	return "", unsupported(d, "adding "+label+" to type "+typ)
}

func (d SQLite) ReplaceType(old, _ schema.EnumType, _ []schema.ColumnRef) (string, error) {
	return "", unsupported(d, "replacing type "+old.Name)
}

func (d SQLite) AlterColumnType(table string, col schema.Column) (string, error) {
	return "", unsupported(d, "ALTER COLUMN TYPE on "+table+"."+col.Name)
}

func (d SQLite) AlterColumnNullability(table string, col schema.Column) (string, error) {
	return "", unsupported(d, "changing nullability of "+table+"."+col.Name)
}

func (d SQLite) AlterColumnDefault(table string, col schema.Column) (string, error) {
	return "", unsupported(d, "changing the default of "+table+"."+col.Name)
}

func (d SQLite) AlterColumnIdentity(table string, _, col schema.Column) (string, error) {
	return "", unsupported(d, "changing the identity of "+table+"."+col.Name)
}

func (d SQLite) AddConstraint(table string, c schema.Constraint) (string, error) {
	return "", unsupported(d, "ADD CONSTRAINT "+c.Name+" on "+table)
}

func (d SQLite) DropConstraint(table string, c schema.Constraint) (string, error) {
	return "", unsupported(d, "DROP CONSTRAINT "+c.Name+" on "+table)
}

func (d SQLite) CreateIndex(idx schema.Index) (string, error) {
	if idx.Method != "" {
		return "", unsupported(d, "index method "+idx.Method)
	}
	stmt := "CREATE INDEX "
	if idx.Unique {
		stmt = "CREATE UNIQUE INDEX "
	}
	stmt += d.QuoteIdent(idx.Name) + " ON " + d.QuoteIdent(idx.Table) + " (" + QuoteList(d, idx.Columns) + ")"
	if idx.Where != "" {
		stmt += " WHERE " + idx.Where
	}
	return stmt, nil
}

func (d SQLite) DropIndex(idx schema.Index) (string, error) {
	return "DROP INDEX " + d.QuoteIdent(idx.Name), nil
}
