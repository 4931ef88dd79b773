package schema

import (
	"slices"
	"strings"
)

// Schema represents a complete database schema.
// Extensions, types and tables are kept in declaration order.
type Schema struct {
	Extensions []string
	Types      []*EnumType
	Tables     []*Table
}

// EnumType is a user-defined enum type. Labels are kept in sort order.
type EnumType struct {
	Name   string
	Labels []string
}

// Table represents a database table
type Table struct {
	Name        string
	Columns     []Column
	Constraints []Constraint
	Indexes     []Index
}

// Column represents a table column. Type and Default are opaque SQL text.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  *string
	Identity string // IdentityAlways, IdentityByDefault or empty
}

// Identity generation of a column
const (
	IdentityAlways    = "ALWAYS"
	IdentityByDefault = "BY DEFAULT"
)

// ConstraintKind identifies the variant of a Constraint
type ConstraintKind int

const (
	PrimaryKey ConstraintKind = iota + 1
	ForeignKey
	Unique
	Check
)

func (k ConstraintKind) String() string {
	switch k {
	case PrimaryKey:
		return "PRIMARY KEY"
	case ForeignKey:
		return "FOREIGN KEY"
	case Unique:
		return "UNIQUE"
	case Check:
		return "CHECK"
	default:
		return "UNKNOWN"
	}
}

// Constraint represents a table constraint.
//
// Columns is used by PrimaryKey, ForeignKey and Unique. References is set only
// for ForeignKey, Expression and Refs only for Check. Refs lists the columns
// the expression reads and is derived from it, so comparisons ignore it.
type Constraint struct {
	Name       string
	Kind       ConstraintKind
	Columns    []string
	References *Reference
	Expression string
	Refs       []string
}

// Reference is the target side of a foreign key. Tables are referenced by name
// and resolved against the owning Schema on lookup.
type Reference struct {
	Table    string
	Columns  []string
	OnDelete string // empty when not declared
	OnUpdate string // empty when not declared
}

// Index represents a database index.
// Expression entries in Columns are stored wrapped in parentheses. Refs lists
// the columns read by those expressions and by Where; like Constraint.Refs it
// is derived and left out of comparisons.
type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
	Method  string // empty for the default access method
	Where   string // partial index predicate
	Refs    []string
}

// Equal reports whether two columns have the same definition
func (c Column) Equal(o Column) bool {
	return c.Name == o.Name && c.Type == o.Type && c.Nullable == o.Nullable &&
		c.Identity == o.Identity && equalDefault(c.Default, o.Default)
}

// DefaultEqual reports whether the columns carry the same default expression
func (c Column) DefaultEqual(o Column) bool {
	return equalDefault(c.Default, o.Default)
}

func equalDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Equal reports whether two constraints are structurally identical, name included
func (c Constraint) Equal(o Constraint) bool {
	return c.Name == o.Name && c.SameShape(o)
}

// SameShape compares everything except the name
func (c Constraint) SameShape(o Constraint) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case Check:
		return c.Expression == o.Expression
	case ForeignKey:
		if !slices.Equal(c.Columns, o.Columns) {
			return false
		}
		if c.References == nil || o.References == nil {
			return c.References == o.References
		}
		return c.References.Table == o.References.Table &&
			slices.Equal(c.References.Columns, o.References.Columns) &&
			c.References.OnDelete == o.References.OnDelete &&
			c.References.OnUpdate == o.References.OnUpdate
	default:
		return slices.Equal(c.Columns, o.Columns)
	}
}

// Involves reports whether the constraint lists the column among its own
// columns or reads it in its check expression
func (c Constraint) Involves(column string) bool {
	return slices.Contains(c.Columns, column) || slices.Contains(c.Refs, column)
}

// Equal reports whether two indexes are structurally identical
func (i Index) Equal(o Index) bool {
	return i.Name == o.Name && i.Table == o.Table && i.Unique == o.Unique &&
		i.Method == o.Method && i.Where == o.Where && slices.Equal(i.Columns, o.Columns)
}

// Involves reports whether the index covers the column, directly or through
// an expression or its predicate
func (i Index) Involves(column string) bool {
	return slices.Contains(i.Columns, column) || slices.Contains(i.Refs, column)
}

// Equal reports whether two enum types have the same name and labels
func (e *EnumType) Equal(o *EnumType) bool {
	return e.Name == o.Name && slices.Equal(e.Labels, o.Labels)
}

// UsedBy reports whether a column type names the enum, directly or as an array
func (e *EnumType) UsedBy(typ string) bool {
	typ = strings.TrimPrefix(strings.TrimSuffix(typ, "[]"), "public.")
	return typ == e.Name || typ == `"`+e.Name+`"`
}
