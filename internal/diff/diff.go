// Package diff compares two schema models and produces the ordered list of
// operations that turns one into the other.
package diff

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tordrt/sqlschema/internal/schema"
)

// ErrUnresolvableDependency is wrapped by DependencyError
var ErrUnresolvableDependency = errors.New("unresolvable dependency")

// DependencyError lists operations that could not be ordered
type DependencyError struct {
	Objects []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s between %s", ErrUnresolvableDependency, strings.Join(e.Objects, ", "))
}

func (e *DependencyError) Unwrap() error {
	return ErrUnresolvableDependency
}

// Diff returns the operations that transform current into target, in an
// order where every intermediate schema is valid.
func Diff(current, target *schema.Schema) ([]Operation, error) {
	var ops []Operation

	for _, name := range target.Extensions {
		if !current.HasExtension(name) {
			ops = append(ops, Operation{Kind: CreateExtension, Extension: name})
		}
	}
	for _, name := range current.Extensions {
		if !target.HasExtension(name) {
			ops = append(ops, Operation{Kind: DropExtension, Extension: name})
		}
	}

	for _, e := range target.Types {
		if cur := current.Type(e.Name); cur != nil {
			ops = append(ops, diffType(current, cur, e)...)
		} else {
			ops = append(ops, Operation{Kind: CreateType, Type: e.Clone()})
		}
	}
	for _, e := range current.Types {
		if target.Type(e.Name) == nil {
			ops = append(ops, Operation{Kind: DropType, Type: e.Clone()})
		}
	}

	for _, t := range target.Tables {
		if cur := current.Table(t.Name); cur != nil {
			ops = append(ops, diffTable(cur, t)...)
		} else {
			ops = append(ops, createTable(t)...)
		}
	}
	for _, t := range current.Tables {
		if target.Table(t.Name) == nil {
			ops = append(ops, dropTable(t)...)
		}
	}
	return order(ops, target)
}

// diffType adds the new labels of an enum in place when the existing ones
// keep their relative order. Removing or reordering labels replaces the
// type and converts the columns that use it.
func diffType(current *schema.Schema, cur, tgt *schema.EnumType) []Operation {
	if slices.Equal(cur.Labels, tgt.Labels) {
		return nil
	}
	if !isSubsequence(cur.Labels, tgt.Labels) {
		return []Operation{{Kind: ReplaceType, Type: tgt.Clone(), OldType: cur.Clone(), Columns: current.ColumnsOfType(cur.Name)}}
	}

	var ops []Operation
	state := cur.Clone()
	for i, label := range tgt.Labels {
		if slices.Contains(cur.Labels, label) {
			continue
		}
		before := ""
		for _, next := range tgt.Labels[i+1:] {
			if slices.Contains(cur.Labels, next) {
				before = next
				break
			}
		}

		old := state.Clone()
		pos := len(state.Labels)
		if before != "" {
			pos = slices.Index(state.Labels, before)
		}
		state.Labels = slices.Insert(state.Labels, pos, label)
		ops = append(ops, Operation{Kind: AddEnumValue, Type: state.Clone(), OldType: old, Label: label, Before: before})
	}
	return ops
}

// isSubsequence reports whether every element of sub appears in seq in the
// same relative order
func isSubsequence(sub, seq []string) bool {
	i := 0
	for _, s := range seq {
		if i < len(sub) && sub[i] == s {
			i++
		}
	}
	return i == len(sub)
}

// createTable emits the table itself, then its foreign keys and indexes as
// separate operations so they can be ordered against other tables.
func createTable(t *schema.Table) []Operation {
	def := tableDef(t)
	ops := []Operation{{Kind: CreateTable, Table: t.Name, Def: def}}
	for _, c := range t.ForeignKeys() {
		c := c.Clone()
		ops = append(ops, Operation{Kind: AddConstraint, Table: t.Name, Constraint: &c})
	}
	for _, idx := range t.Indexes {
		idx := idx.Clone()
		ops = append(ops, Operation{Kind: CreateIndex, Table: t.Name, Index: &idx})
	}
	return ops
}

func dropTable(t *schema.Table) []Operation {
	var ops []Operation
	for _, c := range t.ForeignKeys() {
		c := c.Clone()
		ops = append(ops, Operation{Kind: DropConstraint, Table: t.Name, Constraint: &c})
	}
	return append(ops, Operation{Kind: DropTable, Table: t.Name, Def: tableDef(t)})
}

// tableDef is the part of a table rendered by CREATE TABLE: columns and
// every constraint except foreign keys.
func tableDef(t *schema.Table) *schema.Table {
	def := t.Clone()
	def.Indexes = nil
	kept := def.Constraints[:0]
	for _, c := range def.Constraints {
		if c.Kind != schema.ForeignKey {
			kept = append(kept, c)
		}
	}
	def.Constraints = kept
	return def
}

func diffTable(cur, tgt *schema.Table) []Operation {
	var ops []Operation
	name := tgt.Name

	for _, col := range tgt.Columns {
		old := cur.Column(col.Name)
		if old == nil {
			c := col.Clone()
			ops = append(ops, Operation{Kind: AddColumn, Table: name, Column: &c})
			continue
		}
		ops = append(ops, diffColumn(name, *old, col)...)
	}
	for _, col := range cur.Columns {
		if tgt.Column(col.Name) == nil {
			c := col.Clone()
			ops = append(ops, Operation{Kind: DropColumn, Table: name, Column: &c})
		}
	}

	for _, c := range tgt.Constraints {
		old := cur.Constraint(c.Name)
		if old != nil && old.Equal(c) {
			continue
		}
		if old != nil {
			o := old.Clone()
			ops = append(ops, Operation{Kind: DropConstraint, Table: name, Constraint: &o})
		}
		n := c.Clone()
		ops = append(ops, Operation{Kind: AddConstraint, Table: name, Constraint: &n})
	}
	for _, c := range cur.Constraints {
		if tgt.Constraint(c.Name) == nil {
			o := c.Clone()
			ops = append(ops, Operation{Kind: DropConstraint, Table: name, Constraint: &o})
		}
	}

	for _, idx := range tgt.Indexes {
		old := cur.Index(idx.Name)
		if old != nil && old.Equal(idx) {
			continue
		}
		if old != nil {
			o := old.Clone()
			ops = append(ops, Operation{Kind: DropIndex, Table: name, Index: &o})
		}
		n := idx.Clone()
		ops = append(ops, Operation{Kind: CreateIndex, Table: name, Index: &n})
	}
	for _, idx := range cur.Indexes {
		if tgt.Index(idx.Name) == nil {
			o := idx.Clone()
			ops = append(ops, Operation{Kind: DropIndex, Table: name, Index: &o})
		}
	}
	return ops
}

// diffColumn emits one operation per changed facet. Each operation carries
// the column state before and after it, applying type, nullability and
// default changes in that order. An identity is dropped before the other
// facets change and added after them.
func diffColumn(table string, old, tgt schema.Column) []Operation {
	var ops []Operation
	state := old.Clone()

	step := func(kind Kind, apply func(*schema.Column)) {
		before := state.Clone()
		apply(&state)
		after := state.Clone()
		ops = append(ops, Operation{Kind: kind, Table: table, Column: &after, OldColumn: &before})
	}

	dropIdentity := old.Identity != "" && tgt.Identity == ""
	if dropIdentity {
		step(AlterColumnIdentity, func(c *schema.Column) { c.Identity = "" })
	}
	if old.Type != tgt.Type {
		step(AlterColumnType, func(c *schema.Column) { c.Type = tgt.Type })
	}
	if old.Nullable != tgt.Nullable {
		step(AlterColumnNullability, func(c *schema.Column) { c.Nullable = tgt.Nullable })
	}
	if !old.DefaultEqual(tgt) {
		step(AlterColumnDefault, func(c *schema.Column) { c.Default = tgt.Clone().Default })
	}
	if !dropIdentity && old.Identity != tgt.Identity {
		step(AlterColumnIdentity, func(c *schema.Column) { c.Identity = tgt.Identity })
	}
	return ops
}
