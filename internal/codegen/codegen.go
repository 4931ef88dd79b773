// Package codegen renders diff operations and whole schemas as SQL.
// Output is byte-for-byte deterministic for the same input.
package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/sqlschema/internal/dialect"
	"github.com/tordrt/sqlschema/internal/diff"
	"github.com/tordrt/sqlschema/internal/schema"
)

var (
	// ErrInvalidOperation means an operation is missing the data its kind needs
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrUnsupported means the dialect cannot express the operation
	ErrUnsupported = dialect.ErrUnsupported
)

// Error reports an operation that could not be rendered
type Error struct {
	Op     diff.Operation
	Reason error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Op, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Reason
}

// Render returns the statements of each operation, separated by blank lines.
// An empty operation list renders as the empty string.
func Render(ops []diff.Operation, d dialect.Dialect) (string, error) {
	ops = inlineForeignKeys(ops, d)
	stmts := make([]string, 0, len(ops))
	for _, op := range ops {
		stmt, err := RenderOperation(op, d)
		if err != nil {
			return "", err
		}
		stmts = append(stmts, stmt)
	}
	return join(stmts), nil
}

// inlineForeignKeys moves the foreign keys of tables created by ops into
// their CREATE TABLE, and leaves out foreign key drops of tables that ops
// drop as a whole. Only dialects that cannot alter constraints need it; any
// other foreign key change still fails to render there.
func inlineForeignKeys(ops []diff.Operation, d dialect.Dialect) []diff.Operation {
	if d.SupportsAddConstraint() {
		return ops
	}

	created := make(map[string][]schema.Constraint)
	dropped := make(map[string]bool)
	for _, op := range ops {
		switch op.Kind {
		case diff.CreateTable:
			created[op.Table] = nil
		case diff.DropTable:
			dropped[op.Table] = true
		}
	}
	for _, op := range ops {
		if _, ok := created[op.Table]; ok && op.Kind == diff.AddConstraint && op.IsForeignKey() {
			created[op.Table] = append(created[op.Table], op.Constraint.Clone())
		}
	}

	out := make([]diff.Operation, 0, len(ops))
	for _, op := range ops {
		switch {
		case op.Kind == diff.CreateTable && len(created[op.Table]) > 0 && op.Def != nil:
			def := op.Def.Clone()
			def.Constraints = append(def.Constraints, created[op.Table]...)
			op.Def = def
		case op.Kind == diff.AddConstraint && op.IsForeignKey():
			if _, ok := created[op.Table]; ok {
				continue
			}
		case op.Kind == diff.DropConstraint && op.IsForeignKey() && dropped[op.Table]:
			continue
		}
		out = append(out, op)
	}
	return out
}

func join(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, "\n\n") + "\n"
}

// RenderOperation renders a single operation as one statement ending in ";".
// ReplaceType is the exception and renders as several.
func RenderOperation(op diff.Operation, d dialect.Dialect) (string, error) {
	stmt, err := render(op, d)
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			return "", err
		}
		return "", &Error{Op: op, Reason: err}
	}
	return stmt + ";", nil
}

func render(op diff.Operation, d dialect.Dialect) (string, error) {
	if err := validate(op); err != nil {
		return "", &Error{Op: op, Reason: err}
	}
	table := d.QuoteIdent(op.Table)

	switch op.Kind {
	case diff.CreateExtension:
		return d.CreateExtension(op.Extension)
	case diff.DropExtension:
		return d.DropExtension(op.Extension)
	case diff.CreateType:
		return d.CreateType(*op.Type)
	case diff.DropType:
		return d.DropType(*op.Type)
	case diff.AddEnumValue:
		return d.AddEnumValue(op.Type.Name, op.Label, op.Before)
	case diff.ReplaceType:
		return d.ReplaceType(*op.OldType, *op.Type, op.Columns)
	case diff.CreateTable:
		return createTable(op.Def, d)
	case diff.DropTable:
		return "DROP TABLE " + table, nil
	case diff.AddColumn:
		return "ALTER TABLE " + table + " ADD COLUMN " + dialect.ColumnDefinition(d, *op.Column), nil
	case diff.DropColumn:
		return "ALTER TABLE " + table + " DROP COLUMN " + d.QuoteIdent(op.Column.Name), nil
	case diff.AlterColumnType:
		return d.AlterColumnType(op.Table, *op.Column)
	case diff.AlterColumnNullability:
		return d.AlterColumnNullability(op.Table, *op.Column)
	case diff.AlterColumnDefault:
		return d.AlterColumnDefault(op.Table, *op.Column)
	case diff.AlterColumnIdentity:
		return d.AlterColumnIdentity(op.Table, *op.OldColumn, *op.Column)
	case diff.AddConstraint:
		return d.AddConstraint(op.Table, *op.Constraint)
	case diff.DropConstraint:
		return d.DropConstraint(op.Table, *op.Constraint)
	case diff.CreateIndex:
		return d.CreateIndex(*op.Index)
	case diff.DropIndex:
		return d.DropIndex(*op.Index)
	default:
		return "", &Error{Op: op, Reason: fmt.Errorf("%w: unknown kind %s", ErrInvalidOperation, op.Kind)}
	}
}

func validate(op diff.Operation) error {
	var missing string
	switch op.Kind {
	case diff.CreateExtension, diff.DropExtension:
		if op.Extension == "" {
			missing = "extension name"
		}
		return missingErr(missing)
	case diff.CreateType, diff.DropType:
		if op.Type == nil {
			missing = "type"
		}
		return missingErr(missing)
	case diff.AddEnumValue, diff.ReplaceType:
		if op.Type == nil || op.OldType == nil {
			missing = "type states"
		} else if op.Kind == diff.AddEnumValue && op.Label == "" {
			missing = "label"
		}
		return missingErr(missing)
	case diff.CreateTable:
		if op.Def == nil {
			missing = "table definition"
		}
	case diff.AddColumn, diff.DropColumn:
		if op.Column == nil {
			missing = "column"
		}
	case diff.AlterColumnType, diff.AlterColumnNullability, diff.AlterColumnDefault, diff.AlterColumnIdentity:
		if op.Column == nil || op.OldColumn == nil {
			missing = "column states"
		}
	case diff.AddConstraint, diff.DropConstraint:
		if op.Constraint == nil {
			missing = "constraint"
		}
	case diff.CreateIndex, diff.DropIndex:
		if op.Index == nil {
			missing = "index"
		}
	}
	if op.Table == "" {
		missing = "table name"
	}
	return missingErr(missing)
}

func missingErr(missing string) error {
	if missing == "" {
		return nil
	}
	return fmt.Errorf("%w: missing %s", ErrInvalidOperation, missing)
}

// createTable renders the multi-line CREATE TABLE for t, with columns first
// and then constraints in declaration order.
func createTable(t *schema.Table, d dialect.Dialect) (string, error) {
	lines := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, col := range t.Columns {
		lines = append(lines, "  "+dialect.ColumnDefinition(d, col))
	}
	for _, c := range t.Constraints {
		def, err := dialect.ConstraintDefinition(d, c)
		if err != nil {
			return "", err
		}
		lines = append(lines, "  "+def)
	}
	return "CREATE TABLE " + d.QuoteIdent(t.Name) + " (\n" + strings.Join(lines, ",\n") + "\n)", nil
}

// RenderSchema renders the extensions and enum types of s, then every table
// in declaration order as CREATE TABLE, each followed by its indexes.
// Foreign keys are written inline.
func RenderSchema(s *schema.Schema, d dialect.Dialect) (string, error) {
	var stmts []string
	for _, name := range s.Extensions {
		stmt, err := d.CreateExtension(name)
		if err != nil {
			return "", fmt.Errorf("failed to render extension %s: %w", name, err)
		}
		stmts = append(stmts, stmt+";")
	}
	for _, e := range s.Types {
		stmt, err := d.CreateType(*e)
		if err != nil {
			return "", fmt.Errorf("failed to render type %s: %w", e.Name, err)
		}
		stmts = append(stmts, stmt+";")
	}
	for _, t := range s.Tables {
		stmt, err := createTable(t, d)
		if err != nil {
			return "", fmt.Errorf("failed to render table %s: %w", t.Name, err)
		}
		stmts = append(stmts, stmt+";")
		for _, idx := range t.Indexes {
			stmt, err := d.CreateIndex(idx)
			if err != nil {
				return "", fmt.Errorf("failed to render index %s: %w", idx.Name, err)
			}
			stmts = append(stmts, stmt+";")
		}
	}
	return join(stmts), nil
}
