package schema

import (
	"slices"
	"strings"
)

// New returns an empty schema
func New() *Schema {
	return &Schema{}
}

// Table looks up a table by name
func (s *Schema) Table(name string) *Table {
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// AddTable appends a table. The caller is responsible for name uniqueness.
func (s *Schema) AddTable(t *Table) {
	s.Tables = append(s.Tables, t)
}

// RemoveTable deletes a table and reports whether it existed
func (s *Schema) RemoveTable(name string) bool {
	for i, t := range s.Tables {
		if t.Name == name {
			s.Tables = slices.Delete(s.Tables, i, i+1)
			return true
		}
	}
	return false
}

// RenameTable renames a table in place, rewriting foreign keys in every table
// that reference it.
func (s *Schema) RenameTable(oldName, newName string) {
	for _, t := range s.Tables {
		if t.Name == oldName {
			t.Name = newName
			for i := range t.Indexes {
				t.Indexes[i].Table = newName
			}
		}
		for i := range t.Constraints {
			if ref := t.Constraints[i].References; ref != nil && ref.Table == oldName {
				ref.Table = newName
			}
		}
	}
}

// Index finds an index by name anywhere in the schema
func (s *Schema) Index(name string) (*Table, *Index) {
	for _, t := range s.Tables {
		if idx := t.Index(name); idx != nil {
			return t, idx
		}
	}
	return nil, nil
}

// IndexNameTaken reports whether any table owns an index with that name
func (s *Schema) IndexNameTaken(name string) bool {
	_, idx := s.Index(name)
	return idx != nil
}

// ReferencesTo returns the foreign keys of other tables that point at the table
func (s *Schema) ReferencesTo(table string) []ForeignKeyRef {
	var refs []ForeignKeyRef
	for _, t := range s.Tables {
		if t.Name == table {
			continue
		}
		for _, c := range t.Constraints {
			if c.Kind == ForeignKey && c.References != nil && c.References.Table == table {
				refs = append(refs, ForeignKeyRef{Table: t.Name, Constraint: c.Name})
			}
		}
	}
	return refs
}

// HasExtension reports whether the extension is installed
func (s *Schema) HasExtension(name string) bool {
	return slices.Contains(s.Extensions, name)
}

// AddExtension records an installed extension
func (s *Schema) AddExtension(name string) {
	s.Extensions = append(s.Extensions, name)
}

// RemoveExtension deletes an extension and reports whether it existed
func (s *Schema) RemoveExtension(name string) bool {
	i := slices.Index(s.Extensions, name)
	if i < 0 {
		return false
	}
	s.Extensions = slices.Delete(s.Extensions, i, i+1)
	return true
}

// Type looks up an enum type by name
func (s *Schema) Type(name string) *EnumType {
	for _, e := range s.Types {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// AddType appends an enum type. The caller is responsible for name uniqueness.
func (s *Schema) AddType(e *EnumType) {
	s.Types = append(s.Types, e)
}

// RemoveType deletes an enum type and reports whether it existed
func (s *Schema) RemoveType(name string) bool {
	for i, e := range s.Types {
		if e.Name == name {
			s.Types = slices.Delete(s.Types, i, i+1)
			return true
		}
	}
	return false
}

// RenameType renames an enum type and rewrites the columns declared with it
func (s *Schema) RenameType(oldName, newName string) {
	e := s.Type(oldName)
	if e == nil {
		return
	}
	for _, t := range s.Tables {
		for i := range t.Columns {
			col := &t.Columns[i]
			if !e.UsedBy(col.Type) {
				continue
			}
			if strings.HasSuffix(col.Type, "[]") {
				col.Type = newName + "[]"
			} else {
				col.Type = newName
			}
		}
	}
	e.Name = newName
}

// ColumnsOfType returns the columns declared with the enum type
func (s *Schema) ColumnsOfType(name string) []ColumnRef {
	e := s.Type(name)
	if e == nil {
		return nil
	}
	var refs []ColumnRef
	for _, t := range s.Tables {
		for _, col := range t.Columns {
			if e.UsedBy(col.Type) {
				refs = append(refs, ColumnRef{Table: t.Name, Column: col.Name, Type: col.Type})
			}
		}
	}
	return refs
}

// ColumnRef identifies a column by owning table and name, along with its
// declared type
type ColumnRef struct {
	Table  string
	Column string
	Type   string
}

// ForeignKeyRef identifies a foreign key constraint by owning table and name
type ForeignKeyRef struct {
	Table      string
	Constraint string
}

// Clone returns a deep copy of the schema
func (s *Schema) Clone() *Schema {
	out := &Schema{
		Extensions: slices.Clone(s.Extensions),
		Types:      make([]*EnumType, 0, len(s.Types)),
		Tables:     make([]*Table, 0, len(s.Tables)),
	}
	for _, e := range s.Types {
		out.Types = append(out.Types, e.Clone())
	}
	for _, t := range s.Tables {
		out.Tables = append(out.Tables, t.Clone())
	}
	return out
}

// Equal reports whether two schemas hold the same extensions, types and
// tables with the same definitions. Declaration order is ignored everywhere
// except for enum labels.
func (s *Schema) Equal(o *Schema) bool {
	if len(s.Tables) != len(o.Tables) || len(s.Types) != len(o.Types) || len(s.Extensions) != len(o.Extensions) {
		return false
	}
	for _, name := range s.Extensions {
		if !o.HasExtension(name) {
			return false
		}
	}
	for _, e := range s.Types {
		oe := o.Type(e.Name)
		if oe == nil || !e.Equal(oe) {
			return false
		}
	}
	for _, t := range s.Tables {
		ot := o.Table(t.Name)
		if ot == nil || !t.Equal(ot) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	out := &Table{
		Name:        t.Name,
		Columns:     make([]Column, len(t.Columns)),
		Constraints: make([]Constraint, len(t.Constraints)),
		Indexes:     make([]Index, len(t.Indexes)),
	}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	for i, c := range t.Constraints {
		out.Constraints[i] = c.Clone()
	}
	for i, idx := range t.Indexes {
		out.Indexes[i] = idx.Clone()
	}
	return out
}

// Equal compares two tables ignoring column, constraint and index order
func (t *Table) Equal(o *Table) bool {
	if t.Name != o.Name || len(t.Columns) != len(o.Columns) ||
		len(t.Constraints) != len(o.Constraints) || len(t.Indexes) != len(o.Indexes) {
		return false
	}
	for _, c := range t.Columns {
		oc := o.Column(c.Name)
		if oc == nil || !c.Equal(*oc) {
			return false
		}
	}
	for _, c := range t.Constraints {
		oc := o.Constraint(c.Name)
		if oc == nil || !c.Equal(*oc) {
			return false
		}
	}
	for _, idx := range t.Indexes {
		oi := o.Index(idx.Name)
		if oi == nil || !idx.Equal(*oi) {
			return false
		}
	}
	return true
}

// Column looks up a column by name
func (t *Table) Column(name string) *Column {
	if i := t.ColumnIndex(name); i >= 0 {
		return &t.Columns[i]
	}
	return nil
}

// ColumnIndex returns the ordinal position of a column, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// AddColumn appends a column at the end of the table
func (t *Table) AddColumn(c Column) {
	t.Columns = append(t.Columns, c)
}

// RemoveColumn deletes a column together with every constraint and index
// that lists it or reads it in an expression.
func (t *Table) RemoveColumn(name string) bool {
	i := t.ColumnIndex(name)
	if i < 0 {
		return false
	}
	t.Columns = slices.Delete(t.Columns, i, i+1)
	t.Constraints = slices.DeleteFunc(t.Constraints, func(c Constraint) bool {
		return c.Involves(name)
	})
	t.Indexes = slices.DeleteFunc(t.Indexes, func(idx Index) bool {
		return idx.Involves(name)
	})
	return true
}

// RenameColumn renames a column and rewrites the column lists of the table's
// constraints and indexes. Foreign keys elsewhere that reference the column are
// rewritten by the schema-level variant.
func (t *Table) RenameColumn(oldName, newName string) {
	if c := t.Column(oldName); c != nil {
		c.Name = newName
	}
	for i := range t.Constraints {
		replaceName(t.Constraints[i].Columns, oldName, newName)
		replaceName(t.Constraints[i].Refs, oldName, newName)
		if ref := t.Constraints[i].References; ref != nil && ref.Table == t.Name {
			replaceName(ref.Columns, oldName, newName)
		}
	}
	for i := range t.Indexes {
		replaceName(t.Indexes[i].Columns, oldName, newName)
		replaceName(t.Indexes[i].Refs, oldName, newName)
	}
}

// RenameColumn renames a column of the table and rewrites foreign keys in
// other tables that reference it.
func (s *Schema) RenameColumn(table, oldName, newName string) {
	t := s.Table(table)
	if t == nil {
		return
	}
	t.RenameColumn(oldName, newName)
	for _, other := range s.Tables {
		if other == t {
			continue
		}
		for i := range other.Constraints {
			if ref := other.Constraints[i].References; ref != nil && ref.Table == table {
				replaceName(ref.Columns, oldName, newName)
			}
		}
	}
}

func replaceName(names []string, oldName, newName string) {
	for i, n := range names {
		if n == oldName {
			names[i] = newName
		}
	}
}

// Constraint looks up a constraint by name
func (t *Table) Constraint(name string) *Constraint {
	for i := range t.Constraints {
		if t.Constraints[i].Name == name {
			return &t.Constraints[i]
		}
	}
	return nil
}

// AddConstraint appends a constraint; its name must already be resolved
func (t *Table) AddConstraint(c Constraint) {
	t.Constraints = append(t.Constraints, c)
}

// RemoveConstraint deletes a constraint by name
func (t *Table) RemoveConstraint(name string) bool {
	for i := range t.Constraints {
		if t.Constraints[i].Name == name {
			t.Constraints = slices.Delete(t.Constraints, i, i+1)
			return true
		}
	}
	return false
}

// PrimaryKey returns the table's primary key constraint, if any
func (t *Table) PrimaryKey() *Constraint {
	for i := range t.Constraints {
		if t.Constraints[i].Kind == PrimaryKey {
			return &t.Constraints[i]
		}
	}
	return nil
}

// Index looks up an index of this table by name
func (t *Table) Index(name string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// AddIndex appends an index
func (t *Table) AddIndex(idx Index) {
	idx.Table = t.Name
	t.Indexes = append(t.Indexes, idx)
}

// RemoveIndex deletes an index by name
func (t *Table) RemoveIndex(name string) bool {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			t.Indexes = slices.Delete(t.Indexes, i, i+1)
			return true
		}
	}
	return false
}

// ForeignKeys returns the table's foreign key constraints in declaration order
func (t *Table) ForeignKeys() []Constraint {
	var fks []Constraint
	for _, c := range t.Constraints {
		if c.Kind == ForeignKey {
			fks = append(fks, c)
		}
	}
	return fks
}

// Clone returns a deep copy of the column
func (c Column) Clone() Column {
	if c.Default != nil {
		d := *c.Default
		c.Default = &d
	}
	return c
}

// Clone returns a deep copy of the constraint
func (c Constraint) Clone() Constraint {
	c.Columns = slices.Clone(c.Columns)
	c.Refs = slices.Clone(c.Refs)
	if c.References != nil {
		ref := *c.References
		ref.Columns = slices.Clone(ref.Columns)
		c.References = &ref
	}
	return c
}

// Clone returns a deep copy of the index
func (i Index) Clone() Index {
	i.Columns = slices.Clone(i.Columns)
	i.Refs = slices.Clone(i.Refs)
	return i
}

// Clone returns a deep copy of the enum type
func (e *EnumType) Clone() *EnumType {
	return &EnumType{Name: e.Name, Labels: slices.Clone(e.Labels)}
}
