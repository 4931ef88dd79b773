package sqlparse

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Opaque type and expression text is produced by the deparser, so equivalent
// spellings ("integer", "int4") and formatting collapse to one canonical form.

const (
	typePrefix = "CREATE TABLE t (c "
	exprPrefix = "SELECT "
)

func typeText(tn *pg_query.TypeName) (string, error) {
	stmt := &pg_query.CreateStmt{
		Relation: &pg_query.RangeVar{Relname: "t", Inh: true, Relpersistence: "p"},
		TableElts: []*pg_query.Node{{
			Node: &pg_query.Node_ColumnDef{ColumnDef: &pg_query.ColumnDef{Colname: "c", TypeName: tn, IsLocal: true}},
		}},
		Oncommit: pg_query.OnCommitAction_ONCOMMIT_NOOP,
	}
	out, err := deparse(&pg_query.Node{Node: &pg_query.Node_CreateStmt{CreateStmt: stmt}})
	if err != nil {
		return "", fmt.Errorf("failed to render type: %w", err)
	}
	if !strings.HasPrefix(out, typePrefix) || !strings.HasSuffix(out, ")") {
		return "", fmt.Errorf("failed to render type: unexpected output %q", out)
	}
	return strings.TrimSuffix(strings.TrimPrefix(out, typePrefix), ")"), nil
}

func exprText(n *pg_query.Node) (string, error) {
	if n == nil {
		return "", fmt.Errorf("failed to render expression: missing expression")
	}
	stmt := &pg_query.SelectStmt{
		TargetList:  []*pg_query.Node{{Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: n}}}},
		LimitOption: pg_query.LimitOption_LIMIT_OPTION_DEFAULT,
		Op:          pg_query.SetOperation_SETOP_NONE,
	}
	out, err := deparse(&pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: stmt}})
	if err != nil {
		return "", fmt.Errorf("failed to render expression: %w", err)
	}
	if !strings.HasPrefix(out, exprPrefix) {
		return "", fmt.Errorf("failed to render expression: unexpected output %q", out)
	}
	return strings.TrimPrefix(out, exprPrefix), nil
}

func deparse(n *pg_query.Node) (string, error) {
	return pg_query.Deparse(&pg_query.ParseResult{Stmts: []*pg_query.RawStmt{{Stmt: n}}})
}

// NormalizeType returns the canonical spelling of a column type, as used in
// the schema model. It is applied to types read from a live database.
func NormalizeType(typ string) (string, error) {
	tree, err := pg_query.Parse(typePrefix + typ + ")")
	if err != nil {
		return "", fmt.Errorf("failed to parse type %q: %w", typ, err)
	}
	cs := tree.Stmts[0].Stmt.GetCreateStmt()
	if cs == nil || len(cs.TableElts) != 1 || cs.TableElts[0].GetColumnDef() == nil {
		return "", fmt.Errorf("failed to parse type %q", typ)
	}
	return typeText(cs.TableElts[0].GetColumnDef().TypeName)
}

// NormalizeExpr returns the canonical text of a scalar expression
func NormalizeExpr(expr string) (string, error) {
	tree, err := pg_query.Parse(exprPrefix + expr)
	if err != nil {
		return "", fmt.Errorf("failed to parse expression %q: %w", expr, err)
	}
	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil || len(sel.TargetList) != 1 || sel.TargetList[0].GetResTarget() == nil {
		return "", fmt.Errorf("failed to parse expression %q", expr)
	}
	return exprText(sel.TargetList[0].GetResTarget().Val)
}

// IsKeyword reports whether word is a postgres keyword that cannot be used
// as a bare column or table name.
func IsKeyword(word string) bool {
	res, err := pg_query.Scan(word)
	if err != nil || len(res.Tokens) != 1 {
		return false
	}
	switch res.Tokens[0].KeywordKind {
	case pg_query.KeywordKind_NO_KEYWORD, pg_query.KeywordKind_UNRESERVED_KEYWORD:
		return false
	default:
		return true
	}
}
