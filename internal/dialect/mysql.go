package dialect

import (
	"fmt"
	"strings"

	"github.com/tordrt/sqlschema/internal/schema"
)

// MySQL renders statements for MySQL 8. Identifiers are always backquoted.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

func (MySQL) SupportsAddConstraint() bool { return true }

func (d MySQL) CreateExtension(name string) (string, error) {
	return "", unsupported(d, "extension "+name)
}

func (d MySQL) DropExtension(name string) (string, error) {
	return "", unsupported(d, "extension "+name)
}

// Enum types are declared per column in MySQL.
func (d MySQL) CreateType(e schema.EnumType) (string, error) {
	return "", unsupported(d, "CREATE TYPE "+e.Name)
}

func (d MySQL) DropType(e schema.EnumType) (string, error) {
	return "", unsupported(d, "DROP TYPE "+e.Name)
}

func (d MySQL) AddEnumValue(typ, label, _ string) (string, error) {
	return "", unsupported(d, "adding "+label+" to type "+typ)
}

func (d MySQL) ReplaceType(old, _ schema.EnumType, _ []schema.ColumnRef) (string, error) {
	return "", unsupported(d, "replacing type "+old.Name)
}

// MySQL redefines the whole column to change its type or nullability.
func (d MySQL) AlterColumnType(table string, col schema.Column) (string, error) {
	return alterTable(d, table) + " MODIFY COLUMN " + ColumnDefinition(d, col), nil
}

func (d MySQL) AlterColumnNullability(table string, col schema.Column) (string, error) {
	return alterTable(d, table) + " MODIFY COLUMN " + ColumnDefinition(d, col), nil
}

func (d MySQL) AlterColumnIdentity(table string, _, col schema.Column) (string, error) {
	return alterTable(d, table) + " MODIFY COLUMN " + ColumnDefinition(d, col), nil
}

func (d MySQL) AlterColumnDefault(table string, col schema.Column) (string, error) {
	action := "DROP DEFAULT"
	if col.Default != nil {
		action = "SET DEFAULT " + *col.Default
	}
	return fmt.Sprintf("%s ALTER COLUMN %s %s", alterTable(d, table), d.QuoteIdent(col.Name), action), nil
}

func (d MySQL) AddConstraint(table string, c schema.Constraint) (string, error) {
	def, err := ConstraintDefinition(d, c)
	if err != nil {
		return "", err
	}
	return alterTable(d, table) + " ADD " + def, nil
}

func (d MySQL) DropConstraint(table string, c schema.Constraint) (string, error) {
	switch c.Kind {
	case schema.PrimaryKey:
		return alterTable(d, table) + " DROP PRIMARY KEY", nil
	case schema.ForeignKey:
		return alterTable(d, table) + " DROP FOREIGN KEY " + d.QuoteIdent(c.Name), nil
	case schema.Unique:
		return alterTable(d, table) + " DROP INDEX " + d.QuoteIdent(c.Name), nil
	default:
		return alterTable(d, table) + " DROP CHECK " + d.QuoteIdent(c.Name), nil
	}
}

func (d MySQL) CreateIndex(idx schema.Index) (string, error) {
	if idx.Where != "" {
		return "", unsupported(d, "partial index "+idx.Name)
	}
	stmt := "CREATE INDEX "
	if idx.Unique {
		stmt = "CREATE UNIQUE INDEX "
	}
	stmt += d.QuoteIdent(idx.Name) + " ON " + d.QuoteIdent(idx.Table) + " (" + QuoteList(d, idx.Columns) + ")"
	if idx.Method != "" {
		stmt += " USING " + strings.ToUpper(idx.Method)
	}
	return stmt, nil
}

func (d MySQL) DropIndex(idx schema.Index) (string, error) {
	return "DROP INDEX " + d.QuoteIdent(idx.Name) + " ON " + d.QuoteIdent(idx.Table), nil
}
