// Package sqlparse turns SQL text into ddl statements using the postgres
// parser from pg_query_go.
package sqlparse

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/pganalyze/pg_query_go/v6/parser"

	"github.com/tordrt/sqlschema/internal/ddl"
)

// ParseError reports a syntax error with its location in the input
type ParseError struct {
	File    string
	Line    int
	Column  int
	Cursor  int // byte offset into the input, 0 when unknown
	Message string
}

func (e *ParseError) Error() string {
	loc := fmt.Sprintf("%d:%d", e.Line, e.Column)
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: syntax error: %s", loc, e.Message)
}

// Parse parses every statement in sql
func Parse(sql string) ([]ddl.Statement, error) {
	return ParseFile("", sql)
}

// ParseFile parses sql read from the named file. The name is only used in
// diagnostics.
func ParseFile(name, sql string) ([]ddl.Statement, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, newParseError(name, sql, err)
	}

	stmts := make([]ddl.Statement, 0, len(tree.Stmts))
	for _, raw := range tree.Stmts {
		src := sourceOf(name, sql, raw)
		if _, ok := raw.Stmt.GetNode().(*pg_query.Node_TransactionStmt); ok {
			// BEGIN and COMMIT wrap migration files but carry no schema change
			continue
		}
		stmts = append(stmts, convert(src, raw.Stmt))
	}
	return stmts, nil
}

func newParseError(name, sql string, err error) error {
	var perr *parser.Error
	if !errors.As(err, &perr) {
		return &ParseError{File: name, Line: 1, Column: 1, Message: err.Error()}
	}
	cursor := perr.Cursorpos - 1
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(sql) {
		cursor = len(sql)
	}
	line, col := lineColumn(sql, cursor)
	return &ParseError{File: name, Line: line, Column: col, Cursor: cursor, Message: perr.Message}
}

// lineColumn converts a byte offset into a 1-based line and column
func lineColumn(sql string, offset int) (int, int) {
	before := sql[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndex(before, "\n")
	return line, col
}

func sourceOf(name, sql string, raw *pg_query.RawStmt) ddl.Source {
	start := int(raw.StmtLocation)
	end := len(sql)
	if raw.StmtLen > 0 {
		end = start + int(raw.StmtLen)
	}
	if start > len(sql) || end > len(sql) || start > end {
		return ddl.Source{File: name, Line: 1}
	}
	text := sql[start:end]
	trimmed := strings.TrimLeft(text, " \t\r\n")
	start += len(text) - len(trimmed)
	line, _ := lineColumn(sql, start)
	return ddl.Source{File: name, Line: line, Text: strings.TrimSpace(trimmed)}
}

// kindOf names the node type for unsupported statement diagnostics
func kindOf(n *pg_query.Node) string {
	if n == nil || n.GetNode() == nil {
		return "empty statement"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", n.GetNode()), "*pg_query.Node_")
}
