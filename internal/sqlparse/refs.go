package sqlparse

import (
	"slices"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// columnRefs returns the distinct column names read by the expressions, in
// the order they first appear. Qualified references contribute their last
// part.
func columnRefs(exprs ...*pg_query.Node) []string {
	var refs []string
	var walk func(m protoreflect.Message)
	walk = func(m protoreflect.Message) {
		if ref, ok := m.Interface().(*pg_query.ColumnRef); ok {
			if name := columnRefName(ref); name != "" && !slices.Contains(refs, name) {
				refs = append(refs, name)
			}
			return
		}
		m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
			if fd.Kind() != protoreflect.MessageKind || fd.IsMap() {
				return true
			}
			if fd.IsList() {
				list := v.List()
				for i := 0; i < list.Len(); i++ {
					walk(list.Get(i).Message())
				}
				return true
			}
			walk(v.Message())
			return true
		})
	}
	for _, n := range exprs {
		if n != nil {
			walk(n.ProtoReflect())
		}
	}
	return refs
}

func columnRefName(ref *pg_query.ColumnRef) string {
	if len(ref.Fields) == 0 {
		return ""
	}
	if s := ref.Fields[len(ref.Fields)-1].GetString_(); s != nil {
		return s.Sval
	}
	return ""
}

// ExprColumns returns the columns read by a scalar expression, such as a
// check clause read from a database catalog.
func ExprColumns(expr string) ([]string, error) {
	tree, err := pg_query.Parse(exprPrefix + expr)
	if err != nil {
		return nil, err
	}
	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil || len(sel.TargetList) != 1 || sel.TargetList[0].GetResTarget() == nil {
		return nil, nil
	}
	return columnRefs(sel.TargetList[0].GetResTarget().Val), nil
}
