package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/sqlschema/internal/schema"
	"github.com/tordrt/sqlschema/internal/sqlparse"
)

// MySQLExtractor handles schema extraction from MySQL 8
type MySQLExtractor struct {
	db         *sql.DB
	schemaName string
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(db *sql.DB, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		db:         db,
		schemaName: schemaName,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the schema
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	s := schema.New()

	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, s, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		s.AddTable(table)
	}

	return s, nil
}

// getTableNames returns the list of tables to extract
func (e *MySQLExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// extractTable extracts all information for a single table
func (e *MySQLExtractor) extractTable(ctx context.Context, s *schema.Schema, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	// MySQL names every primary key PRIMARY; the model uses <table>_pkey
	keys, err := e.extractKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract constraints: %w", err)
	}
	backing := make(map[string]bool)
	for _, c := range keys {
		backing[c.Name] = true
		if c.Kind == schema.PrimaryKey {
			c.Name = schema.ConstraintName(tableName, schema.PrimaryKey, c.Columns, nameTaken(s, table))
		}
		table.AddConstraint(c)
	}

	checks, err := e.extractChecks(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract check constraints: %w", err)
	}
	for _, c := range checks {
		table.AddConstraint(c)
	}

	indexes, err := e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	for _, idx := range indexes {
		// unique constraints and foreign keys own an index of the same name
		if !backing[idx.Name] {
			table.AddIndex(idx)
		}
	}

	return table, nil
}

// extractColumns extracts column information for a table
func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_default,
			c.extra
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var columnType, nullable, extra string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &columnType, &nullable, &defaultVal, &extra); err != nil {
			return nil, err
		}

		col.Type = normalizeType(columnType)
		col.Nullable = (nullable == "YES")
		if defaultVal.Valid {
			col.Default = mysqlDefault(defaultVal.String, extra)
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// mysqlDefault turns information_schema's unquoted default into SQL text.
// Expression defaults are flagged DEFAULT_GENERATED in the extra column.
func mysqlDefault(value, extra string) *string {
	if strings.Contains(extra, "DEFAULT_GENERATED") {
		return normalizeDefault(&value)
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return &value
	}
	quoted := "'" + strings.ReplaceAll(value, "'", "''") + "'"
	return &quoted
}

// extractKeys extracts primary key, unique and foreign key constraints
func (e *MySQLExtractor) extractKeys(ctx context.Context, tableName string) ([]schema.Constraint, error) {
	query := `
		SELECT
			tc.constraint_name,
			tc.constraint_type,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = tc.constraint_schema
			AND kcu.table_name = tc.table_name
			AND kcu.constraint_name = tc.constraint_name
		LEFT JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = tc.constraint_schema
			AND rc.table_name = tc.table_name
			AND rc.constraint_name = tc.constraint_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
		ORDER BY tc.constraint_type = 'FOREIGN KEY', tc.constraint_name, kcu.ordinal_position
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []schema.Constraint
	for rows.Next() {
		var name, kind, column string
		var refTable, refColumn, onUpdate, onDelete sql.NullString

		if err := rows.Scan(&name, &kind, &column, &refTable, &refColumn, &onUpdate, &onDelete); err != nil {
			return nil, err
		}

		n := len(constraints)
		if n == 0 || constraints[n-1].Name != name {
			c := schema.Constraint{Name: name}
			switch kind {
			case "PRIMARY KEY":
				c.Kind = schema.PrimaryKey
			case "UNIQUE":
				c.Kind = schema.Unique
			default:
				c.Kind = schema.ForeignKey
				c.References = &schema.Reference{
					Table:    refTable.String,
					OnDelete: referentialAction(onDelete.String),
					OnUpdate: referentialAction(onUpdate.String),
				}
			}
			constraints = append(constraints, c)
			n++
		}
		c := &constraints[n-1]
		c.Columns = append(c.Columns, column)
		if c.References != nil {
			c.References.Columns = append(c.References.Columns, refColumn.String)
		}
	}

	return constraints, rows.Err()
}

// referentialAction maps a referential_constraints rule to the model.
// NO ACTION is the default and stored as empty.
func referentialAction(rule string) string {
	if rule == "NO ACTION" {
		return ""
	}
	return rule
}

// extractChecks extracts check constraints
func (e *MySQLExtractor) extractChecks(ctx context.Context, tableName string) ([]schema.Constraint, error) {
	query := `
		SELECT cc.constraint_name, cc.check_clause
		FROM information_schema.check_constraints cc
		JOIN information_schema.table_constraints tc
			ON tc.constraint_schema = cc.constraint_schema
			AND tc.constraint_name = cc.constraint_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type = 'CHECK'
		ORDER BY cc.constraint_name
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []schema.Constraint
	for rows.Next() {
		var name, clause string
		if err := rows.Scan(&name, &clause); err != nil {
			return nil, err
		}
		expr := mysqlExpr(clause)
		refs, _ := sqlparse.ExprColumns(expr)
		checks = append(checks, schema.Constraint{Name: name, Kind: schema.Check, Expression: expr, Refs: refs})
	}

	return checks, rows.Err()
}

// mysqlExpr rewrites backquoted identifiers so the expression can be
// normalized by the postgres parser
func mysqlExpr(expr string) string {
	text := strings.ReplaceAll(expr, "`", `"`)
	if out, err := sqlparse.NormalizeExpr(text); err == nil {
		return out
	}
	return expr
}

// extractIndexes extracts index information, including functional key parts
func (e *MySQLExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT
			s.index_name,
			s.non_unique,
			s.column_name,
			s.expression,
			s.index_type
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		ORDER BY s.index_name, s.seq_in_index
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var name, indexType string
		var nonUnique int
		var column, expression sql.NullString

		if err := rows.Scan(&name, &nonUnique, &column, &expression, &indexType); err != nil {
			return nil, err
		}

		n := len(indexes)
		if n == 0 || indexes[n-1].Name != name {
			idx := schema.Index{Name: name, Table: tableName, Unique: nonUnique == 0}
			if indexType != "BTREE" {
				idx.Method = strings.ToLower(indexType)
			}
			indexes = append(indexes, idx)
			n++
		}
		part := column.String
		if !column.Valid {
			part = "(" + mysqlExpr(expression.String) + ")"
		}
		indexes[n-1].Columns = append(indexes[n-1].Columns, part)
	}

	return indexes, rows.Err()
}
