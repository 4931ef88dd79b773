// Package interpret applies DDL statements to a schema model, one statement
// at a time, in the order they would run against a database.
package interpret

import (
	"slices"
	"strings"

	"github.com/tordrt/sqlschema/internal/ddl"
	"github.com/tordrt/sqlschema/internal/schema"
)

// Build returns the schema produced by applying stmts to an empty model
func Build(stmts []ddl.Statement) (*schema.Schema, error) {
	s := schema.New()
	if err := ApplyAll(s, stmts); err != nil {
		return nil, err
	}
	return s, nil
}

// ApplyAll applies statements in order and stops at the first failure.
// Foreign keys may name tables declared later in stmts; once every statement
// is applied each of them must point at an existing table and columns.
func ApplyAll(s *schema.Schema, stmts []ddl.Statement) error {
	origins := make(map[schema.ForeignKeyRef]ddl.Source)
	for _, st := range stmts {
		in := &interpreter{s: s, src: st.Source(), origins: origins}
		if err := in.apply(st); err != nil {
			return err
		}
	}
	return checkReferences(s, origins)
}

// Apply mutates s according to one statement. Foreign key targets are not
// checked; see ApplyAll.
func Apply(s *schema.Schema, st ddl.Statement) error {
	in := &interpreter{s: s, src: st.Source()}
	return in.apply(st)
}

func (in *interpreter) apply(st ddl.Statement) error {
	switch st := st.(type) {
	case *ddl.CreateTable:
		return in.createTable(st)
	case *ddl.AlterTable:
		return in.alterTable(st)
	case *ddl.CreateIndex:
		return in.createIndex(st)
	case *ddl.DropTable:
		return in.dropTable(st)
	case *ddl.DropIndex:
		return in.dropIndex(st)
	case *ddl.CreateType:
		return in.createType(st)
	case *ddl.AddEnumValue:
		return in.addEnumValue(st)
	case *ddl.RenameEnumValue:
		return in.renameEnumValue(st)
	case *ddl.RenameType:
		return in.renameType(st)
	case *ddl.DropType:
		return in.dropType(st)
	case *ddl.CreateExtension:
		return in.createExtension(st)
	case *ddl.DropExtension:
		return in.dropExtension(st)
	case *ddl.Unsupported:
		return in.fail(ErrUnsupportedStatement, "", st.Kind)
	default:
		return in.fail(ErrUnsupportedStatement, "", "unknown statement")
	}
}

type interpreter struct {
	s   *schema.Schema
	src ddl.Source
	// origins records where each foreign key was declared, for diagnostics
	origins map[schema.ForeignKeyRef]ddl.Source
}

func (in *interpreter) fail(kind error, table, object string) error {
	return &Error{Kind: kind, Table: table, Object: object, Source: in.src}
}

func (in *interpreter) createTable(st *ddl.CreateTable) error {
	if in.s.Table(st.Name) != nil {
		if st.IfNotExists {
			return nil
		}
		return in.fail(ErrDuplicateTable, st.Name, "")
	}

	t := &schema.Table{Name: st.Name}
	for _, def := range st.Columns {
		if t.Column(def.Name) != nil {
			return in.fail(ErrDuplicateColumn, st.Name, def.Name)
		}
		t.AddColumn(newColumn(def))
	}
	for _, c := range st.Constraints {
		if err := in.addConstraint(t, c); err != nil {
			return err
		}
	}
	in.s.AddTable(t)
	// self references may name a primary key declared after the foreign key
	in.resolveReferences(t)
	return nil
}

func newColumn(def ddl.ColumnDef) schema.Column {
	col := schema.Column{Name: def.Name, Type: def.Type, Nullable: !def.NotNull && def.Identity == "", Identity: def.Identity}
	if def.Default != nil {
		d := *def.Default
		col.Default = &d
	}
	return col
}

// addConstraint validates c against t, names it when unnamed and appends it
func (in *interpreter) addConstraint(t *schema.Table, c schema.Constraint) error {
	c = c.Clone()
	for _, col := range slices.Concat(c.Columns, c.Refs) {
		if t.Column(col) == nil {
			return in.fail(ErrUnknownColumn, t.Name, col)
		}
	}
	if c.Kind == schema.PrimaryKey && t.PrimaryKey() != nil {
		return in.fail(ErrDuplicateConstraint, t.Name, "PRIMARY KEY")
	}

	taken := func(name string) bool {
		return t.Constraint(name) != nil || in.s.IndexNameTaken(name) || t.Index(name) != nil
	}
	if c.Name == "" {
		c.Name = schema.ConstraintName(t.Name, c.Kind, c.Columns, taken)
	} else if t.Constraint(c.Name) != nil {
		return in.fail(ErrDuplicateConstraint, t.Name, c.Name)
	}
	if c.Kind == schema.Check {
		c.Columns = nil
	}
	if c.Kind == schema.PrimaryKey {
		for _, col := range c.Columns {
			t.Column(col).Nullable = false
		}
	}
	if c.Kind == schema.ForeignKey && c.References != nil {
		if len(c.References.Columns) == 0 {
			in.resolveReference(t, c.References)
		}
		if in.origins != nil {
			in.origins[schema.ForeignKeyRef{Table: t.Name, Constraint: c.Name}] = in.src
		}
	}
	t.AddConstraint(c)
	return nil
}

// checkReferences resolves foreign keys declared before the table they point
// at and fails on the first one whose target table or columns are missing.
func checkReferences(s *schema.Schema, origins map[schema.ForeignKeyRef]ddl.Source) error {
	for _, t := range s.Tables {
		for i := range t.Constraints {
			c := &t.Constraints[i]
			if c.Kind != schema.ForeignKey || c.References == nil {
				continue
			}
			ref := c.References
			fail := func(kind error, missing string) error {
				owner := schema.ForeignKeyRef{Table: t.Name, Constraint: c.Name}
				return &Error{Kind: kind, Table: t.Name, Object: c.Name, Ref: missing, Source: origins[owner]}
			}

			target := s.Table(ref.Table)
			if target == nil {
				return fail(ErrUnknownTable, ref.Table)
			}
			if len(ref.Columns) == 0 {
				pk := target.PrimaryKey()
				if pk == nil {
					return fail(ErrUnknownColumn, ref.Table+" PRIMARY KEY")
				}
				ref.Columns = slices.Clone(pk.Columns)
			}
			for _, col := range ref.Columns {
				if target.Column(col) == nil {
					return fail(ErrUnknownColumn, ref.Table+"."+col)
				}
			}
		}
	}
	return nil
}

func (in *interpreter) resolveReferences(t *schema.Table) {
	for i := range t.Constraints {
		if ref := t.Constraints[i].References; ref != nil && len(ref.Columns) == 0 {
			in.resolveReference(t, ref)
		}
	}
}

// resolveReference fills in the referenced columns of a foreign key written
// without a column list, using the referenced table's primary key.
func (in *interpreter) resolveReference(owner *schema.Table, ref *schema.Reference) {
	target := in.s.Table(ref.Table)
	if ref.Table == owner.Name {
		target = owner
	}
	if target == nil {
		return
	}
	if pk := target.PrimaryKey(); pk != nil {
		ref.Columns = slices.Clone(pk.Columns)
	}
}

func (in *interpreter) alterTable(st *ddl.AlterTable) error {
	t := in.s.Table(st.Table)
	if t == nil {
		if st.IfExists {
			return nil
		}
		return in.fail(ErrUnknownTable, st.Table, "")
	}

	for _, action := range st.Actions {
		if err := in.alterAction(t, action); err != nil {
			return err
		}
	}
	return nil
}

func (in *interpreter) alterAction(t *schema.Table, action ddl.AlterAction) error {
	switch a := action.(type) {
	case *ddl.AddColumn:
		if t.Column(a.Column.Name) != nil {
			if a.IfNotExists {
				return nil
			}
			return in.fail(ErrDuplicateColumn, t.Name, a.Column.Name)
		}
		t.AddColumn(newColumn(a.Column))
		for _, c := range a.Constraints {
			if err := in.addConstraint(t, c); err != nil {
				return err
			}
		}
		return nil

	case *ddl.DropColumn:
		return in.dropColumn(t, a)

	case *ddl.SetColumnType:
		col := t.Column(a.Column)
		if col == nil {
			return in.fail(ErrUnknownColumn, t.Name, a.Column)
		}
		col.Type = a.Type
		return nil

	case *ddl.SetNotNull:
		col := t.Column(a.Column)
		if col == nil {
			return in.fail(ErrUnknownColumn, t.Name, a.Column)
		}
		col.Nullable = !a.NotNull
		return nil

	case *ddl.SetDefault:
		col := t.Column(a.Column)
		if col == nil {
			return in.fail(ErrUnknownColumn, t.Name, a.Column)
		}
		col.Default = nil
		if a.Default != nil {
			d := *a.Default
			col.Default = &d
		}
		return nil

	case *ddl.AddConstraint:
		return in.addConstraint(t, a.Constraint)

	case *ddl.DropConstraint:
		return in.dropConstraint(t, a)

	case *ddl.RenameColumn:
		if t.Column(a.Old) == nil {
			return in.fail(ErrUnknownColumn, t.Name, a.Old)
		}
		if t.Column(a.New) != nil {
			return in.fail(ErrDuplicateColumn, t.Name, a.New)
		}
		in.s.RenameColumn(t.Name, a.Old, a.New)
		return nil

	case *ddl.RenameTable:
		if in.s.Table(a.New) != nil {
			return in.fail(ErrDuplicateTable, a.New, "")
		}
		in.s.RenameTable(t.Name, a.New)
		return nil

	case *ddl.AddIdentity:
		col := t.Column(a.Column)
		if col == nil {
			return in.fail(ErrUnknownColumn, t.Name, a.Column)
		}
		if col.Identity != "" {
			return in.fail(ErrDuplicateConstraint, t.Name, a.Column+" IDENTITY")
		}
		col.Identity = a.Identity
		col.Nullable = false
		return nil

	case *ddl.SetIdentity:
		col := t.Column(a.Column)
		if col == nil {
			return in.fail(ErrUnknownColumn, t.Name, a.Column)
		}
		if col.Identity == "" {
			return in.fail(ErrUnknownConstraint, t.Name, a.Column+" IDENTITY")
		}
		col.Identity = a.Identity
		return nil

	case *ddl.DropIdentity:
		col := t.Column(a.Column)
		if col == nil {
			return in.fail(ErrUnknownColumn, t.Name, a.Column)
		}
		if col.Identity == "" {
			if a.IfExists {
				return nil
			}
			return in.fail(ErrUnknownConstraint, t.Name, a.Column+" IDENTITY")
		}
		col.Identity = ""
		return nil

	case *ddl.UnsupportedAction:
		return in.fail(ErrUnsupportedStatement, t.Name, "ALTER TABLE "+a.Kind)

	default:
		return in.fail(ErrUnsupportedStatement, t.Name, "unknown ALTER TABLE action")
	}
}

func (in *interpreter) dropColumn(t *schema.Table, a *ddl.DropColumn) error {
	if t.Column(a.Name) == nil {
		if a.IfExists {
			return nil
		}
		return in.fail(ErrUnknownColumn, t.Name, a.Name)
	}

	deps := in.referencing(t.Name, func(ref *schema.Reference) bool {
		return slices.Contains(ref.Columns, a.Name)
	})
	if len(deps) > 0 && !a.Cascade {
		return in.fail(ErrDependentObjects, t.Name, a.Name)
	}
	in.removeForeignKeys(deps)
	t.RemoveColumn(a.Name)
	return nil
}

func (in *interpreter) dropConstraint(t *schema.Table, a *ddl.DropConstraint) error {
	c := t.Constraint(a.Name)
	if c == nil {
		if a.IfExists {
			return nil
		}
		return in.fail(ErrUnknownConstraint, t.Name, a.Name)
	}

	if c.Kind == schema.PrimaryKey || c.Kind == schema.Unique {
		cols := c.Columns
		deps := in.referencing(t.Name, func(ref *schema.Reference) bool {
			return slices.Equal(ref.Columns, cols)
		})
		if len(deps) > 0 && !a.Cascade {
			return in.fail(ErrDependentObjects, t.Name, a.Name)
		}
		in.removeForeignKeys(deps)
	}
	t.RemoveConstraint(a.Name)
	return nil
}

// referencing returns foreign keys pointing at table whose reference matches.
// Self references are included.
func (in *interpreter) referencing(table string, match func(*schema.Reference) bool) []schema.ForeignKeyRef {
	var refs []schema.ForeignKeyRef
	for _, t := range in.s.Tables {
		for _, c := range t.Constraints {
			if c.Kind == schema.ForeignKey && c.References != nil && c.References.Table == table && match(c.References) {
				refs = append(refs, schema.ForeignKeyRef{Table: t.Name, Constraint: c.Name})
			}
		}
	}
	return refs
}

func (in *interpreter) removeForeignKeys(refs []schema.ForeignKeyRef) {
	for _, ref := range refs {
		if t := in.s.Table(ref.Table); t != nil {
			t.RemoveConstraint(ref.Constraint)
		}
	}
}

func (in *interpreter) createIndex(st *ddl.CreateIndex) error {
	idx := st.Index.Clone()
	t := in.s.Table(idx.Table)
	if t == nil {
		return in.fail(ErrUnknownTable, idx.Table, "")
	}
	for _, col := range slices.Concat(idx.Columns, idx.Refs) {
		if strings.HasPrefix(col, "(") {
			continue
		}
		if t.Column(col) == nil {
			return in.fail(ErrUnknownColumn, t.Name, col)
		}
	}

	if idx.Name == "" {
		idx.Name = schema.IndexName(t.Name, idx.Columns, func(name string) bool {
			return in.s.IndexNameTaken(name) || t.Constraint(name) != nil
		})
	} else if in.s.IndexNameTaken(idx.Name) {
		if st.IfNotExists {
			return nil
		}
		return in.fail(ErrDuplicateIndex, t.Name, idx.Name)
	}
	t.AddIndex(idx)
	return nil
}

func (in *interpreter) dropTable(st *ddl.DropTable) error {
	for _, name := range st.Names {
		if in.s.Table(name) == nil {
			if st.IfExists {
				continue
			}
			return in.fail(ErrUnknownTable, name, "")
		}
		var deps []schema.ForeignKeyRef
		for _, ref := range in.s.ReferencesTo(name) {
			if !slices.Contains(st.Names, ref.Table) {
				deps = append(deps, ref)
			}
		}
		if len(deps) > 0 && !st.Cascade {
			return in.fail(ErrDependentObjects, name, "")
		}
		in.removeForeignKeys(deps)
	}
	for _, name := range st.Names {
		in.s.RemoveTable(name)
	}
	return nil
}

func (in *interpreter) dropIndex(st *ddl.DropIndex) error {
	for _, name := range st.Names {
		t, idx := in.s.Index(name)
		if idx == nil {
			if st.IfExists {
				continue
			}
			return in.fail(ErrUnknownIndex, "", name)
		}
		t.RemoveIndex(name)
	}
	return nil
}

func (in *interpreter) createType(st *ddl.CreateType) error {
	if in.s.Type(st.Name) != nil {
		return in.fail(ErrDuplicateType, "", st.Name)
	}
	for i, label := range st.Labels {
		if slices.Contains(st.Labels[:i], label) {
			return in.fail(ErrDuplicateValue, "", st.Name+"."+label)
		}
	}
	in.s.AddType(&schema.EnumType{Name: st.Name, Labels: slices.Clone(st.Labels)})
	return nil
}

func (in *interpreter) addEnumValue(st *ddl.AddEnumValue) error {
	e := in.s.Type(st.Type)
	if e == nil {
		return in.fail(ErrUnknownType, "", st.Type)
	}
	if slices.Contains(e.Labels, st.Label) {
		if st.IfNotExists {
			return nil
		}
		return in.fail(ErrDuplicateValue, "", st.Type+"."+st.Label)
	}

	pos := len(e.Labels)
	switch {
	case st.Before != "":
		pos = slices.Index(e.Labels, st.Before)
		if pos < 0 {
			return in.fail(ErrUnknownValue, "", st.Type+"."+st.Before)
		}
	case st.After != "":
		pos = slices.Index(e.Labels, st.After)
		if pos < 0 {
			return in.fail(ErrUnknownValue, "", st.Type+"."+st.After)
		}
		pos++
	}
	e.Labels = slices.Insert(e.Labels, pos, st.Label)
	return nil
}

func (in *interpreter) renameEnumValue(st *ddl.RenameEnumValue) error {
	e := in.s.Type(st.Type)
	if e == nil {
		return in.fail(ErrUnknownType, "", st.Type)
	}
	i := slices.Index(e.Labels, st.Old)
	if i < 0 {
		return in.fail(ErrUnknownValue, "", st.Type+"."+st.Old)
	}
	if slices.Contains(e.Labels, st.New) {
		return in.fail(ErrDuplicateValue, "", st.Type+"."+st.New)
	}
	e.Labels[i] = st.New
	return nil
}

func (in *interpreter) renameType(st *ddl.RenameType) error {
	if in.s.Type(st.Old) == nil {
		if st.IfExists {
			return nil
		}
		return in.fail(ErrUnknownType, "", st.Old)
	}
	if in.s.Type(st.New) != nil {
		return in.fail(ErrDuplicateType, "", st.New)
	}
	in.s.RenameType(st.Old, st.New)
	return nil
}

// dropType removes enum types. With CASCADE the columns declared with them
// are dropped too, as the database does.
func (in *interpreter) dropType(st *ddl.DropType) error {
	for _, name := range st.Names {
		if in.s.Type(name) == nil {
			if st.IfExists {
				continue
			}
			return in.fail(ErrUnknownType, "", name)
		}
		cols := in.s.ColumnsOfType(name)
		if len(cols) > 0 && !st.Cascade {
			return in.fail(ErrDependentObjects, "", name)
		}
		for _, ref := range cols {
			if err := in.dropColumn(in.s.Table(ref.Table), &ddl.DropColumn{Name: ref.Column, Cascade: true}); err != nil {
				return err
			}
		}
		in.s.RemoveType(name)
	}
	return nil
}

func (in *interpreter) createExtension(st *ddl.CreateExtension) error {
	if in.s.HasExtension(st.Name) {
		if st.IfNotExists {
			return nil
		}
		return in.fail(ErrDuplicateExtension, "", st.Name)
	}
	in.s.AddExtension(st.Name)
	return nil
}

func (in *interpreter) dropExtension(st *ddl.DropExtension) error {
	for _, name := range st.Names {
		if !in.s.RemoveExtension(name) && !st.IfExists {
			return in.fail(ErrUnknownExtension, "", name)
		}
	}
	return nil
}
