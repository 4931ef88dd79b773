package dialect

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/sqlschema/internal/schema"
)

type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdent(name string) string {
	return quoteParts(name, func(part string) string {
		return pgx.Identifier{part}.Sanitize()
	})
}

func (Postgres) SupportsAddConstraint() bool { return true }

func (d Postgres) CreateExtension(name string) (string, error) {
	return "CREATE EXTENSION " + d.QuoteIdent(name), nil
}

func (d Postgres) DropExtension(name string) (string, error) {
	return "DROP EXTENSION " + d.QuoteIdent(name), nil
}

func (d Postgres) CreateType(e schema.EnumType) (string, error) {
	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", d.QuoteIdent(e.Name), quoteLabels(e.Labels)), nil
}

func (d Postgres) DropType(e schema.EnumType) (string, error) {
	return "DROP TYPE " + d.QuoteIdent(e.Name), nil
}

func (d Postgres) AddEnumValue(typ, label, before string) (string, error) {
	stmt := "ALTER TYPE " + d.QuoteIdent(typ) + " ADD VALUE " + QuoteLiteral(label)
	if before != "" {
		stmt += " BEFORE " + QuoteLiteral(before)
	}
	return stmt, nil
}

// ReplaceType renames the old type out of the way, creates the new one,
// converts every column through text and drops the old type.
func (d Postgres) ReplaceType(old, e schema.EnumType, cols []schema.ColumnRef) (string, error) {
	retired := old.Name + "_old"
	local := retired[strings.LastIndex(retired, ".")+1:]
	create, err := d.CreateType(e)
	if err != nil {
		return "", err
	}

	stmts := []string{
		"ALTER TYPE " + d.QuoteIdent(old.Name) + " RENAME TO " + d.QuoteIdent(local),
		create,
	}
	for _, c := range cols {
		typ, via := d.QuoteIdent(e.Name), "text"
		if strings.HasSuffix(c.Type, "[]") {
			typ, via = typ+"[]", "text[]"
		}
		col := d.QuoteIdent(c.Column)
		stmts = append(stmts, fmt.Sprintf("%s ALTER COLUMN %s TYPE %s USING %s::%s::%s", alterTable(d, c.Table), col, typ, col, via, typ))
	}
	stmts = append(stmts, "DROP TYPE "+d.QuoteIdent(retired))
	return strings.Join(stmts, ";\n"), nil
}

func (d Postgres) AlterColumnType(table string, col schema.Column) (string, error) {
	return fmt.Sprintf("%s ALTER COLUMN %s TYPE %s", alterTable(d, table), d.QuoteIdent(col.Name), col.Type), nil
}

func (d Postgres) AlterColumnNullability(table string, col schema.Column) (string, error) {
	action := "SET NOT NULL"
	if col.Nullable {
		action = "DROP NOT NULL"
	}
	return fmt.Sprintf("%s ALTER COLUMN %s %s", alterTable(d, table), d.QuoteIdent(col.Name), action), nil
}

func (d Postgres) AlterColumnDefault(table string, col schema.Column) (string, error) {
	action := "DROP DEFAULT"
	if col.Default != nil {
		action = "SET DEFAULT " + *col.Default
	}
	return fmt.Sprintf("%s ALTER COLUMN %s %s", alterTable(d, table), d.QuoteIdent(col.Name), action), nil
}

func (d Postgres) AlterColumnIdentity(table string, old, col schema.Column) (string, error) {
	var action string
	switch {
	case col.Identity == "":
		action = "DROP IDENTITY"
	case old.Identity == "":
		action = "ADD GENERATED " + col.Identity + " AS IDENTITY"
	default:
		action = "SET GENERATED " + col.Identity
	}
	return fmt.Sprintf("%s ALTER COLUMN %s %s", alterTable(d, table), d.QuoteIdent(col.Name), action), nil
}

func (d Postgres) AddConstraint(table string, c schema.Constraint) (string, error) {
	def, err := ConstraintDefinition(d, c)
	if err != nil {
		return "", err
	}
	return alterTable(d, table) + " ADD " + def, nil
}

func (d Postgres) DropConstraint(table string, c schema.Constraint) (string, error) {
	return alterTable(d, table) + " DROP CONSTRAINT " + d.QuoteIdent(c.Name), nil
}

func (d Postgres) CreateIndex(idx schema.Index) (string, error) {
	stmt := "CREATE INDEX "
	if idx.Unique {
		stmt = "CREATE UNIQUE INDEX "
	}
	stmt += d.QuoteIdent(idx.Name) + " ON " + d.QuoteIdent(idx.Table)
	if idx.Method != "" {
		stmt += " USING " + idx.Method
	}
	stmt += " (" + QuoteList(d, idx.Columns) + ")"
	if idx.Where != "" {
		stmt += " WHERE " + idx.Where
	}
	return stmt, nil
}

func (d Postgres) DropIndex(idx schema.Index) (string, error) {
	return "DROP INDEX " + d.QuoteIdent(idx.Name), nil
}
