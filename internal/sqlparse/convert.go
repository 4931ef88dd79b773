package sqlparse

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/tordrt/sqlschema/internal/ddl"
	"github.com/tordrt/sqlschema/internal/schema"
)

// unsupportedError marks a statement shape with no ddl equivalent
type unsupportedError struct {
	kind string
}

func (e *unsupportedError) Error() string {
	return "unsupported " + e.kind
}

func unsupported(format string, args ...any) error {
	return &unsupportedError{kind: fmt.Sprintf(format, args...)}
}

func convert(src ddl.Source, n *pg_query.Node) ddl.Statement {
	var (
		stmt ddl.Statement
		err  error
	)
	switch node := n.GetNode().(type) {
	case *pg_query.Node_CreateStmt:
		stmt, err = convertCreateTable(src, node.CreateStmt)
	case *pg_query.Node_AlterTableStmt:
		stmt, err = convertAlterTable(src, node.AlterTableStmt)
	case *pg_query.Node_RenameStmt:
		stmt, err = convertRename(src, node.RenameStmt)
	case *pg_query.Node_IndexStmt:
		stmt, err = convertCreateIndex(src, node.IndexStmt)
	case *pg_query.Node_DropStmt:
		stmt, err = convertDrop(src, node.DropStmt)
	case *pg_query.Node_CreateEnumStmt:
		stmt = &ddl.CreateType{
			Src:    src,
			Name:   qualifiedName(stringList(node.CreateEnumStmt.TypeName)...),
			Labels: stringList(node.CreateEnumStmt.Vals),
		}
	case *pg_query.Node_AlterEnumStmt:
		stmt = convertAlterEnum(src, node.AlterEnumStmt)
	case *pg_query.Node_CreateExtensionStmt:
		// options such as SCHEMA and VERSION do not change the model
		stmt = &ddl.CreateExtension{Src: src, Name: node.CreateExtensionStmt.Extname, IfNotExists: node.CreateExtensionStmt.IfNotExists}
	default:
		return &ddl.Unsupported{Src: src, Kind: kindOf(n)}
	}
	if err != nil {
		kind := err.Error()
		if u, ok := err.(*unsupportedError); ok {
			kind = u.kind
		}
		return &ddl.Unsupported{Src: src, Kind: kind}
	}
	return stmt
}

func convertCreateTable(src ddl.Source, cs *pg_query.CreateStmt) (ddl.Statement, error) {
	switch {
	case len(cs.InhRelations) > 0:
		return nil, unsupported("CREATE TABLE ... INHERITS")
	case cs.Partspec != nil || cs.Partbound != nil:
		return nil, unsupported("partitioned CREATE TABLE")
	case cs.OfTypename != nil:
		return nil, unsupported("CREATE TABLE ... OF type")
	}

	name := relationName(cs.Relation)
	out := &ddl.CreateTable{Src: src, Name: name, IfNotExists: cs.IfNotExists}
	for _, elt := range cs.TableElts {
		switch e := elt.GetNode().(type) {
		case *pg_query.Node_ColumnDef:
			col, cons, err := convertColumn(e.ColumnDef)
			if err != nil {
				return nil, err
			}
			out.Columns = append(out.Columns, col)
			out.Constraints = append(out.Constraints, cons...)
		case *pg_query.Node_Constraint:
			c, err := convertTableConstraint(e.Constraint)
			if err != nil {
				return nil, err
			}
			out.Constraints = append(out.Constraints, c)
		default:
			return nil, unsupported("CREATE TABLE element %s", kindOf(elt))
		}
	}
	return out, nil
}

// convertColumn returns the column and its inline constraints, hoisted to
// table constraints over that single column.
func convertColumn(cd *pg_query.ColumnDef) (ddl.ColumnDef, []schema.Constraint, error) {
	if cd.TypeName == nil {
		return ddl.ColumnDef{}, nil, unsupported("column %s without a type", cd.Colname)
	}
	typ, err := typeText(cd.TypeName)
	if err != nil {
		return ddl.ColumnDef{}, nil, err
	}
	col := ddl.ColumnDef{Name: cd.Colname, Type: typ, NotNull: cd.IsNotNull}
	if cd.CollClause != nil {
		return col, nil, unsupported("COLLATE on column %s", cd.Colname)
	}
	if cd.RawDefault != nil {
		d, err := exprText(cd.RawDefault)
		if err != nil {
			return col, nil, err
		}
		col.Default = &d
	}

	var cons []schema.Constraint
	for _, n := range cd.Constraints {
		c := n.GetConstraint()
		if c == nil {
			return col, nil, unsupported("column element %s", kindOf(n))
		}
		switch c.Contype {
		case pg_query.ConstrType_CONSTR_NOTNULL:
			col.NotNull = true
		case pg_query.ConstrType_CONSTR_NULL:
			col.NotNull = false
		case pg_query.ConstrType_CONSTR_DEFAULT:
			d, err := exprText(c.RawExpr)
			if err != nil {
				return col, nil, err
			}
			col.Default = &d
		case pg_query.ConstrType_CONSTR_PRIMARY:
			cons = append(cons, schema.Constraint{Name: c.Conname, Kind: schema.PrimaryKey, Columns: []string{cd.Colname}})
		case pg_query.ConstrType_CONSTR_UNIQUE:
			cons = append(cons, schema.Constraint{Name: c.Conname, Kind: schema.Unique, Columns: []string{cd.Colname}})
		case pg_query.ConstrType_CONSTR_FOREIGN:
			ref, err := convertReference(c)
			if err != nil {
				return col, nil, err
			}
			cons = append(cons, schema.Constraint{Name: c.Conname, Kind: schema.ForeignKey, Columns: []string{cd.Colname}, References: ref})
		case pg_query.ConstrType_CONSTR_CHECK:
			expr, err := exprText(c.RawExpr)
			if err != nil {
				return col, nil, err
			}
			// the column is kept for naming only
			cons = append(cons, schema.Constraint{
				Name:       c.Conname,
				Kind:       schema.Check,
				Columns:    []string{cd.Colname},
				Expression: expr,
				Refs:       columnRefs(c.RawExpr),
			})
		case pg_query.ConstrType_CONSTR_IDENTITY:
			if len(c.Options) > 0 {
				return col, nil, unsupported("identity sequence options on column %s", cd.Colname)
			}
			identity, err := identityKind(c.GeneratedWhen)
			if err != nil {
				return col, nil, err
			}
			col.Identity = identity
		default:
			return col, nil, unsupported("column constraint %s", constraintKind(c.Contype))
		}
	}
	return col, cons, nil
}

func convertTableConstraint(c *pg_query.Constraint) (schema.Constraint, error) {
	if c.Deferrable || c.Initdeferred {
		return schema.Constraint{}, unsupported("DEFERRABLE constraint")
	}
	switch c.Contype {
	case pg_query.ConstrType_CONSTR_PRIMARY:
		return schema.Constraint{Name: c.Conname, Kind: schema.PrimaryKey, Columns: stringList(c.Keys)}, nil
	case pg_query.ConstrType_CONSTR_UNIQUE:
		return schema.Constraint{Name: c.Conname, Kind: schema.Unique, Columns: stringList(c.Keys)}, nil
	case pg_query.ConstrType_CONSTR_FOREIGN:
		ref, err := convertReference(c)
		if err != nil {
			return schema.Constraint{}, err
		}
		return schema.Constraint{Name: c.Conname, Kind: schema.ForeignKey, Columns: stringList(c.FkAttrs), References: ref}, nil
	case pg_query.ConstrType_CONSTR_CHECK:
		expr, err := exprText(c.RawExpr)
		if err != nil {
			return schema.Constraint{}, err
		}
		return schema.Constraint{Name: c.Conname, Kind: schema.Check, Expression: expr, Refs: columnRefs(c.RawExpr)}, nil
	default:
		return schema.Constraint{}, unsupported("table constraint %s", constraintKind(c.Contype))
	}
}

func convertReference(c *pg_query.Constraint) (*schema.Reference, error) {
	if c.Deferrable || c.Initdeferred {
		return nil, unsupported("DEFERRABLE constraint")
	}
	if c.FkMatchtype == "f" || c.FkMatchtype == "p" {
		return nil, unsupported("MATCH FULL foreign key")
	}
	if c.Pktable == nil {
		return nil, unsupported("foreign key without a referenced table")
	}
	return &schema.Reference{
		Table:    relationName(c.Pktable),
		Columns:  stringList(c.PkAttrs),
		OnDelete: fkAction(c.FkDelAction),
		OnUpdate: fkAction(c.FkUpdAction),
	}, nil
}

// fkAction maps the parser's action codes. NO ACTION is the default and is
// treated as unset.
func fkAction(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default:
		return ""
	}
}

func identityKind(when string) (string, error) {
	switch when {
	case "a":
		return schema.IdentityAlways, nil
	case "d":
		return schema.IdentityByDefault, nil
	default:
		return "", unsupported("identity generation %q", when)
	}
}

func constraintKind(t pg_query.ConstrType) string {
	return strings.TrimPrefix(t.String(), "CONSTR_")
}

func convertAlterTable(src ddl.Source, at *pg_query.AlterTableStmt) (ddl.Statement, error) {
	if at.Objtype != pg_query.ObjectType_OBJECT_TABLE {
		return nil, unsupported("ALTER %s", objectKind(at.Objtype))
	}
	out := &ddl.AlterTable{Src: src, Table: relationName(at.Relation), IfExists: at.MissingOk}
	for _, n := range at.Cmds {
		cmd := n.GetAlterTableCmd()
		if cmd == nil {
			return nil, unsupported("ALTER TABLE element %s", kindOf(n))
		}
		action, err := convertAlterCmd(cmd)
		if err != nil {
			return nil, err
		}
		out.Actions = append(out.Actions, action)
	}
	return out, nil
}

func convertAlterCmd(cmd *pg_query.AlterTableCmd) (ddl.AlterAction, error) {
	cascade := cmd.Behavior == pg_query.DropBehavior_DROP_CASCADE
	switch cmd.Subtype {
	case pg_query.AlterTableType_AT_AddColumn:
		cd := cmd.Def.GetColumnDef()
		if cd == nil {
			return nil, unsupported("ADD COLUMN without definition")
		}
		col, cons, err := convertColumn(cd)
		if err != nil {
			return nil, err
		}
		return &ddl.AddColumn{Column: col, Constraints: cons, IfNotExists: cmd.MissingOk}, nil
	case pg_query.AlterTableType_AT_DropColumn:
		return &ddl.DropColumn{Name: cmd.Name, IfExists: cmd.MissingOk, Cascade: cascade}, nil
	case pg_query.AlterTableType_AT_AlterColumnType:
		cd := cmd.Def.GetColumnDef()
		if cd == nil || cd.TypeName == nil {
			return nil, unsupported("ALTER COLUMN TYPE without a type")
		}
		typ, err := typeText(cd.TypeName)
		if err != nil {
			return nil, err
		}
		return &ddl.SetColumnType{Column: cmd.Name, Type: typ}, nil
	case pg_query.AlterTableType_AT_SetNotNull:
		return &ddl.SetNotNull{Column: cmd.Name, NotNull: true}, nil
	case pg_query.AlterTableType_AT_DropNotNull:
		return &ddl.SetNotNull{Column: cmd.Name, NotNull: false}, nil
	case pg_query.AlterTableType_AT_ColumnDefault:
		if cmd.Def == nil {
			return &ddl.SetDefault{Column: cmd.Name}, nil
		}
		d, err := exprText(cmd.Def)
		if err != nil {
			return nil, err
		}
		return &ddl.SetDefault{Column: cmd.Name, Default: &d}, nil
	case pg_query.AlterTableType_AT_AddConstraint:
		c := cmd.Def.GetConstraint()
		if c == nil {
			return nil, unsupported("ADD CONSTRAINT without definition")
		}
		con, err := convertTableConstraint(c)
		if err != nil {
			return nil, err
		}
		return &ddl.AddConstraint{Constraint: con}, nil
	case pg_query.AlterTableType_AT_DropConstraint:
		return &ddl.DropConstraint{Name: cmd.Name, IfExists: cmd.MissingOk, Cascade: cascade}, nil
	case pg_query.AlterTableType_AT_AddIdentity:
		c := cmd.Def.GetConstraint()
		if c == nil || c.Contype != pg_query.ConstrType_CONSTR_IDENTITY {
			return nil, unsupported("ADD GENERATED without identity definition")
		}
		if len(c.Options) > 0 {
			return nil, unsupported("identity sequence options on column %s", cmd.Name)
		}
		identity, err := identityKind(c.GeneratedWhen)
		if err != nil {
			return nil, err
		}
		return &ddl.AddIdentity{Column: cmd.Name, Identity: identity}, nil
	case pg_query.AlterTableType_AT_SetIdentity:
		return convertSetIdentity(cmd)
	case pg_query.AlterTableType_AT_DropIdentity:
		return &ddl.DropIdentity{Column: cmd.Name, IfExists: cmd.MissingOk}, nil
	default:
		return &ddl.UnsupportedAction{Kind: strings.TrimPrefix(cmd.Subtype.String(), "AT_")}, nil
	}
}

// convertSetIdentity accepts SET GENERATED only; sequence options such as
// RESTART have no place in the model.
func convertSetIdentity(cmd *pg_query.AlterTableCmd) (ddl.AlterAction, error) {
	list := cmd.Def.GetList()
	if list == nil || len(list.Items) != 1 {
		return nil, unsupported("ALTER COLUMN %s identity options", cmd.Name)
	}
	opt := list.Items[0].GetDefElem()
	if opt == nil || opt.Defname != "generated" || opt.Arg.GetInteger() == nil {
		return nil, unsupported("ALTER COLUMN %s identity options", cmd.Name)
	}
	identity, err := identityKind(string(rune(opt.Arg.GetInteger().Ival)))
	if err != nil {
		return nil, err
	}
	return &ddl.SetIdentity{Column: cmd.Name, Identity: identity}, nil
}

func convertAlterEnum(src ddl.Source, es *pg_query.AlterEnumStmt) ddl.Statement {
	name := qualifiedName(stringList(es.TypeName)...)
	if es.OldVal != "" {
		return &ddl.RenameEnumValue{Src: src, Type: name, Old: es.OldVal, New: es.NewVal}
	}
	out := &ddl.AddEnumValue{Src: src, Type: name, Label: es.NewVal, IfNotExists: es.SkipIfNewValExists}
	if es.NewValNeighbor != "" {
		if es.NewValIsAfter {
			out.After = es.NewValNeighbor
		} else {
			out.Before = es.NewValNeighbor
		}
	}
	return out
}

func convertRename(src ddl.Source, rs *pg_query.RenameStmt) (ddl.Statement, error) {
	if rs.RenameType == pg_query.ObjectType_OBJECT_TYPE {
		list := rs.Object.GetList()
		if list == nil {
			return nil, unsupported("RENAME TYPE without a name")
		}
		return &ddl.RenameType{Src: src, Old: qualifiedName(stringList(list.Items)...), New: rs.Newname, IfExists: rs.MissingOk}, nil
	}

	out := &ddl.AlterTable{Src: src, IfExists: rs.MissingOk}
	if rs.Relation != nil {
		out.Table = relationName(rs.Relation)
	}
	switch rs.RenameType {
	case pg_query.ObjectType_OBJECT_COLUMN:
		if rs.RelationType != pg_query.ObjectType_OBJECT_TABLE {
			return nil, unsupported("RENAME COLUMN on %s", objectKind(rs.RelationType))
		}
		out.Actions = []ddl.AlterAction{&ddl.RenameColumn{Old: rs.Subname, New: rs.Newname}}
	case pg_query.ObjectType_OBJECT_TABLE:
		out.Actions = []ddl.AlterAction{&ddl.RenameTable{New: rs.Newname}}
	default:
		return nil, unsupported("RENAME %s", objectKind(rs.RenameType))
	}
	return out, nil
}

func convertCreateIndex(src ddl.Source, is *pg_query.IndexStmt) (ddl.Statement, error) {
	if len(is.IndexIncludingParams) > 0 {
		return nil, unsupported("CREATE INDEX ... INCLUDE")
	}
	idx := schema.Index{
		Name:   is.Idxname,
		Table:  relationName(is.Relation),
		Unique: is.Unique,
	}
	if is.AccessMethod != "" && is.AccessMethod != "btree" {
		idx.Method = is.AccessMethod
	}
	var exprs []*pg_query.Node
	for _, n := range is.IndexParams {
		elem := n.GetIndexElem()
		if elem == nil {
			return nil, unsupported("index element %s", kindOf(n))
		}
		if elem.Ordering != pg_query.SortByDir_SORTBY_DEFAULT ||
			elem.NullsOrdering != pg_query.SortByNulls_SORTBY_NULLS_DEFAULT ||
			len(elem.Opclass) > 0 || len(elem.Collation) > 0 {
			return nil, unsupported("index column ordering, operator class or collation")
		}
		if elem.Name != "" {
			idx.Columns = append(idx.Columns, elem.Name)
			continue
		}
		expr, err := exprText(elem.Expr)
		if err != nil {
			return nil, err
		}
		idx.Columns = append(idx.Columns, "("+expr+")")
		exprs = append(exprs, elem.Expr)
	}
	if is.WhereClause != nil {
		where, err := exprText(is.WhereClause)
		if err != nil {
			return nil, err
		}
		idx.Where = where
		exprs = append(exprs, is.WhereClause)
	}
	idx.Refs = columnRefs(exprs...)
	return &ddl.CreateIndex{Src: src, Index: idx, IfNotExists: is.IfNotExists}, nil
}

func convertDrop(src ddl.Source, ds *pg_query.DropStmt) (ddl.Statement, error) {
	names := make([]string, 0, len(ds.Objects))
	for _, obj := range ds.Objects {
		switch {
		case obj.GetList() != nil:
			names = append(names, qualifiedName(stringList(obj.GetList().Items)...))
		case obj.GetTypeName() != nil:
			names = append(names, qualifiedName(stringList(obj.GetTypeName().Names)...))
		case obj.GetString_() != nil:
			names = append(names, obj.GetString_().Sval)
		default:
			return nil, unsupported("DROP %s", objectKind(ds.RemoveType))
		}
	}
	cascade := ds.Behavior == pg_query.DropBehavior_DROP_CASCADE
	switch ds.RemoveType {
	case pg_query.ObjectType_OBJECT_TABLE:
		return &ddl.DropTable{
			Src:      src,
			Names:    names,
			IfExists: ds.MissingOk,
			Cascade:  cascade,
		}, nil
	case pg_query.ObjectType_OBJECT_INDEX:
		return &ddl.DropIndex{Src: src, Names: names, IfExists: ds.MissingOk}, nil
	case pg_query.ObjectType_OBJECT_TYPE:
		return &ddl.DropType{Src: src, Names: names, IfExists: ds.MissingOk, Cascade: cascade}, nil
	case pg_query.ObjectType_OBJECT_EXTENSION:
		return &ddl.DropExtension{Src: src, Names: names, IfExists: ds.MissingOk, Cascade: cascade}, nil
	default:
		return nil, unsupported("DROP %s", objectKind(ds.RemoveType))
	}
}

func objectKind(t pg_query.ObjectType) string {
	return strings.ReplaceAll(strings.TrimPrefix(t.String(), "OBJECT_"), "_", " ")
}

// relationName renders a range var as name or schema.name. The public
// schema is the default and is left implicit.
func relationName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return ""
	}
	return qualifiedName(rv.Schemaname, rv.Relname)
}

func qualifiedName(parts ...string) string {
	if len(parts) > 1 && (parts[0] == "" || parts[0] == "public") {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}

func stringList(nodes []*pg_query.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := n.GetString_(); s != nil {
			out = append(out, s.Sval)
		}
	}
	return out
}
