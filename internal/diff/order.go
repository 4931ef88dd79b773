package diff

import (
	"cmp"
	"slices"

	"github.com/tordrt/sqlschema/internal/schema"
)

// Operations are ordered topologically over the dependency edges below.
// Whenever several operations are ready, the one with the smallest key wins:
// tier, then group (the table, type or extension name), then position
// (column position in the target table, or label position in the target
// enum), then object name, then kind.
//
//	tier 0   CreateExtension
//	tier 1   CreateType, AddEnumValue, ReplaceType
//	tier 2   CreateTable
//	tier 3   AddColumn
//	tier 4   AlterColumnType, AlterColumnNullability, AlterColumnDefault, AlterColumnIdentity
//	tier 5   AddConstraint, CreateIndex
//	tier 6   DropConstraint, DropIndex
//	tier 7   DropColumn
//	tier 8   DropTable
//	tier 9   DropType
//	tier 10  DropExtension
func tier(k Kind) int {
	switch k {
	case CreateExtension:
		return 0
	case CreateType, AddEnumValue, ReplaceType:
		return 1
	case CreateTable:
		return 2
	case AddColumn:
		return 3
	case AlterColumnType, AlterColumnNullability, AlterColumnDefault, AlterColumnIdentity:
		return 4
	case AddConstraint, CreateIndex:
		return 5
	case DropConstraint, DropIndex:
		return 6
	case DropColumn:
		return 7
	case DropTable:
		return 8
	case DropType:
		return 9
	default:
		return 10
	}
}

type node struct {
	op       Operation
	tier     int
	group    string
	position int
	seq      int
}

func compareNodes(a, b *node) int {
	return cmp.Or(
		cmp.Compare(a.tier, b.tier),
		cmp.Compare(a.group, b.group),
		cmp.Compare(a.position, b.position),
		cmp.Compare(a.op.Object(), b.op.Object()),
		cmp.Compare(a.op.Kind, b.op.Kind),
		cmp.Compare(a.seq, b.seq),
	)
}

func order(ops []Operation, target *schema.Schema) ([]Operation, error) {
	nodes := make([]*node, len(ops))
	for i, op := range ops {
		n := &node{op: op, tier: tier(op.Kind), group: op.Table, seq: i}
		switch {
		case op.Type != nil:
			n.group = op.Type.Name
		case op.Extension != "":
			n.group = op.Extension
		}
		switch op.Kind {
		case AddColumn:
			if t := target.Table(op.Table); t != nil {
				n.position = t.ColumnIndex(op.Column.Name)
			}
		case AddEnumValue:
			if e := target.Type(op.Type.Name); e != nil {
				n.position = slices.Index(e.Labels, op.Label)
			}
		}
		nodes[i] = n
	}
	return sortNodes(nodes, dependencies(ops))
}

// sortNodes is Kahn's algorithm with a deterministic choice among ready nodes.
// edges[i] lists the nodes that must come after node i.
func sortNodes(nodes []*node, edges [][]int) ([]Operation, error) {
	indegree := make([]int, len(nodes))
	for _, succ := range edges {
		for _, j := range succ {
			indegree[j]++
		}
	}

	var ready []int
	for i := range nodes {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]Operation, 0, len(nodes))
	for len(ready) > 0 {
		best := 0
		for k := 1; k < len(ready); k++ {
			if compareNodes(nodes[ready[k]], nodes[ready[best]]) < 0 {
				best = k
			}
		}
		i := ready[best]
		ready = slices.Delete(ready, best, best+1)
		out = append(out, nodes[i].op)

		for _, j := range edges[i] {
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	if len(out) != len(nodes) {
		var objects []string
		for i, n := range nodes {
			if indegree[i] > 0 {
				objects = append(objects, n.op.String())
			}
		}
		return nil, &DependencyError{Objects: objects}
	}
	return out, nil
}

// dependencies returns, for each operation, the operations that must follow it
func dependencies(ops []Operation) [][]int {
	edges := make([][]int, len(ops))
	seen := make(map[[2]int]bool)
	before := func(i, j int) {
		if i == j || seen[[2]int{i, j}] {
			return
		}
		seen[[2]int{i, j}] = true
		edges[i] = append(edges[i], j)
	}

	for i, a := range ops {
		for j, b := range ops {
			if i != j && mustPrecede(a, b) {
				before(i, j)
			}
		}
	}
	return edges
}

// mustPrecede reports whether a has to run before b
func mustPrecede(a, b Operation) bool {
	if typePrecedes(a, b) {
		return true
	}
	switch a.Kind {
	case CreateTable:
		// the table exists before anything is added to it or references it
		if isAdd(b.Kind) && b.Table == a.Table {
			return true
		}
		return b.Kind == AddConstraint && b.IsForeignKey() && b.Constraint.References.Table == a.Table

	case AddColumn, AlterColumnType, AlterColumnNullability, AlterColumnDefault, AlterColumnIdentity:
		col := a.Column.Name
		switch {
		case a.Kind == AlterColumnIdentity && a.Column.Identity == "" && isAlterColumn(b.Kind) && b.Table == a.Table && b.Column.Name == col:
			// a column stops being an identity before its other facets change
			return true
		case b.Kind == AddConstraint && b.Table == a.Table && b.Constraint.Involves(col):
			return true
		case b.Kind == CreateIndex && b.Table == a.Table && b.Index.Involves(col):
			return true
		case b.Kind == AddConstraint && b.IsForeignKey() && referencesColumn(b.Constraint, a.Table, col):
			return true
		}
		return false

	case AddConstraint, CreateIndex:
		// keys referenced by a new foreign key are created first
		if b.Kind != AddConstraint || !b.IsForeignKey() || b.Constraint.References.Table != a.Table {
			return false
		}
		key := keyColumns(a)
		return len(key) > 0 && slices.Equal(key, b.Constraint.References.Columns)

	case DropConstraint, DropIndex:
		return dropPrecedes(a, b)
	}
	return false
}

func dropPrecedes(a, b Operation) bool {
	// a name is freed before it is reused
	if isAdd(b.Kind) && b.Kind != CreateTable && b.Kind != AddColumn && a.Object() == b.Object() {
		return true
	}

	if a.Kind == DropConstraint && a.Constraint.Kind == schema.PrimaryKey {
		if b.Kind == AddConstraint && b.Table == a.Table && b.Constraint.Kind == schema.PrimaryKey {
			return true
		}
		if b.Kind == AlterColumnNullability && b.Table == a.Table && b.Column.Nullable && a.Constraint.Involves(b.Column.Name) {
			return true
		}
	}

	if a.IsForeignKey() {
		ref := a.Constraint.References
		switch b.Kind {
		case DropTable:
			return b.Table == a.Table || b.Table == ref.Table
		case DropColumn:
			if b.Table == a.Table && a.Constraint.Involves(b.Column.Name) {
				return true
			}
			return b.Table == ref.Table && slices.Contains(ref.Columns, b.Column.Name)
		case DropConstraint, DropIndex:
			return b.Table == ref.Table && len(keyColumns(b)) > 0 && slices.Equal(keyColumns(b), ref.Columns)
		}
		return false
	}

	if b.Kind == DropColumn && b.Table == a.Table {
		if a.Kind == DropConstraint {
			return a.Constraint.Involves(b.Column.Name)
		}
		return a.Index.Involves(b.Column.Name)
	}
	return false
}

// typePrecedes keeps an enum type in place for as long as a column uses it
func typePrecedes(a, b Operation) bool {
	switch {
	case a.Kind == CreateType:
		return usesType(b, a.Type, false)
	case b.Kind == DropType:
		return usesType(a, b.Type, true)
	}
	return false
}

// usesType reports whether the operation leaves a column of type e behind,
// or with before set, whether it removes or changes one.
func usesType(op Operation, e *schema.EnumType, before bool) bool {
	typed := func(c schema.Column) bool { return e.UsedBy(c.Type) }
	switch op.Kind {
	case CreateTable:
		return !before && op.Def != nil && slices.ContainsFunc(op.Def.Columns, typed)
	case DropTable:
		return before && op.Def != nil && slices.ContainsFunc(op.Def.Columns, typed)
	case AddColumn:
		return !before && typed(*op.Column)
	case DropColumn:
		return before && typed(*op.Column)
	case AlterColumnType:
		if before {
			return typed(*op.OldColumn)
		}
		return typed(*op.Column)
	}
	return false
}

func isAlterColumn(k Kind) bool {
	switch k {
	case AlterColumnType, AlterColumnNullability, AlterColumnDefault, AlterColumnIdentity:
		return true
	}
	return false
}

func isAdd(k Kind) bool {
	switch k {
	case CreateTable, AddColumn, AddConstraint, CreateIndex:
		return true
	}
	return false
}

// keyColumns returns the columns of a primary key, unique constraint or
// unique index, which a foreign key may reference.
func keyColumns(op Operation) []string {
	switch {
	case op.Constraint != nil && (op.Constraint.Kind == schema.PrimaryKey || op.Constraint.Kind == schema.Unique):
		return op.Constraint.Columns
	case op.Index != nil && op.Index.Unique:
		return op.Index.Columns
	}
	return nil
}

func referencesColumn(c *schema.Constraint, table, column string) bool {
	return c.References != nil && c.References.Table == table && slices.Contains(c.References.Columns, column)
}
