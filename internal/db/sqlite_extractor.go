package db

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/tordrt/sqlschema/internal/ddl"
	"github.com/tordrt/sqlschema/internal/schema"
	"github.com/tordrt/sqlschema/internal/sqlparse"
)

// SQLiteExtractor handles schema extraction from SQLite. SQLite does not
// name primary keys, unique constraints or foreign keys, so they receive the
// generated names the interpreter would give them.
type SQLiteExtractor struct {
	db *sql.DB
}

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(db *sql.DB) *SQLiteExtractor {
	return &SQLiteExtractor{db: db}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the database
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
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
	resolveImplicitReferences(s)

	return s, nil
}

// getTableNames returns the list of tables to extract
func (e *SQLiteExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

// extractTable extracts all information for a single table
func (e *SQLiteExtractor) extractTable(ctx context.Context, s *schema.Schema, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}
	taken := nameTaken(s, table)

	pk, err := e.extractColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(pk) > 0 {
		table.AddConstraint(schema.Constraint{
			Name:    schema.ConstraintName(tableName, schema.PrimaryKey, pk, taken),
			Kind:    schema.PrimaryKey,
			Columns: pk,
		})
	}

	if err := e.extractIndexes(ctx, table, taken); err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}

	if err := e.extractChecks(ctx, table, taken); err != nil {
		return nil, fmt.Errorf("failed to extract check constraints: %w", err)
	}

	if err := e.extractForeignKeys(ctx, table, taken); err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}

	return table, nil
}

// extractColumns fills the table's columns and returns the primary key
// columns in key order
func (e *SQLiteExtractor) extractColumns(ctx context.Context, table *schema.Table) ([]string, error) {
	query := `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := e.db.QueryContext(ctx, query, table.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pkColumn struct {
		name  string
		order int
	}
	var pkColumns []pkColumn

	for rows.Next() {
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		col := schema.Column{
			Name:     name,
			Type:     normalizeType(colType),
			Nullable: notNull == 0 && pk == 0,
		}
		if defaultValue.Valid {
			col.Default = normalizeDefault(&defaultValue.String)
		}
		if pk > 0 {
			pkColumns = append(pkColumns, pkColumn{name, pk})
		}

		table.AddColumn(col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(pkColumns, func(a, b pkColumn) int { return a.order - b.order })
	var pk []string
	for _, c := range pkColumns {
		pk = append(pk, c.name)
	}
	return pk, nil
}

// extractIndexes reads unique constraints and user-created indexes.
// Created indexes are parsed from their stored CREATE INDEX text so that
// expressions and partial predicates survive.
func (e *SQLiteExtractor) extractIndexes(ctx context.Context, table *schema.Table, taken func(string) bool) error {
	query := `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`

	type indexInfo struct {
		name   string
		unique bool
		origin string
	}
	var list []indexInfo

	rows, err := e.db.QueryContext(ctx, query, table.Name)
	if err != nil {
		return err
	}
	for rows.Next() {
		var info indexInfo
		if err := rows.Scan(&info.name, &info.unique, &info.origin); err != nil {
			rows.Close()
			return err
		}
		list = append(list, info)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, info := range list {
		switch info.origin {
		case "pk":
			continue
		case "u":
			columns, err := e.indexColumns(ctx, info.name)
			if err != nil {
				return err
			}
			table.AddConstraint(schema.Constraint{
				Name:    schema.ConstraintName(table.Name, schema.Unique, columns, taken),
				Kind:    schema.Unique,
				Columns: columns,
			})
		default:
			idx, err := e.createdIndex(ctx, info.name)
			if err != nil {
				return err
			}
			idx.Unique = info.unique
			table.AddIndex(idx)
		}
	}
	return nil
}

func (e *SQLiteExtractor) createdIndex(ctx context.Context, name string) (schema.Index, error) {
	var def sql.NullString
	err := e.db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?`, name).Scan(&def)
	if err != nil {
		return schema.Index{}, err
	}
	if def.Valid {
		if idx, err := indexFromDefinition(def.String); err == nil {
			return idx, nil
		}
	}
	columns, err := e.indexColumns(ctx, name)
	if err != nil {
		return schema.Index{}, err
	}
	return schema.Index{Name: name, Columns: columns}, nil
}

func (e *SQLiteExtractor) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if !name.Valid {
			return nil, fmt.Errorf("index %s has expression columns", index)
		}
		columns = append(columns, name.String)
	}
	return columns, rows.Err()
}

// extractChecks recovers check constraints from the stored CREATE TABLE
// text, which is the only place SQLite keeps them. Tables whose text the
// parser does not accept are left without checks.
func (e *SQLiteExtractor) extractChecks(ctx context.Context, table *schema.Table, taken func(string) bool) error {
	var def sql.NullString
	err := e.db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table.Name).Scan(&def)
	if err != nil || !def.Valid {
		return err
	}
	stmts, err := sqlparse.Parse(def.String)
	if err != nil || len(stmts) != 1 {
		return nil
	}
	ct, ok := stmts[0].(*ddl.CreateTable)
	if !ok {
		return nil
	}
	for _, c := range ct.Constraints {
		if c.Kind != schema.Check {
			continue
		}
		if c.Name == "" {
			c.Name = schema.ConstraintName(table.Name, schema.Check, c.Columns, taken)
		}
		c.Columns = nil
		table.AddConstraint(c)
	}
	return nil
}

// extractForeignKeys groups the rows of pragma_foreign_key_list by key id
func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, table *schema.Table, taken func(string) bool) error {
	query := `SELECT id, "table", "from", "to", on_update, on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`

	rows, err := e.db.QueryContext(ctx, query, table.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	var keys []schema.Constraint
	lastID := -1
	for rows.Next() {
		var id int
		var targetTable, fromCol, onUpdate, onDelete string
		var toCol sql.NullString

		if err := rows.Scan(&id, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete); err != nil {
			return err
		}
		if id != lastID {
			keys = append(keys, schema.Constraint{
				Kind: schema.ForeignKey,
				References: &schema.Reference{
					Table:    targetTable,
					OnDelete: referentialAction(onDelete),
					OnUpdate: referentialAction(onUpdate),
				},
			})
			lastID = id
		}
		fk := &keys[len(keys)-1]
		fk.Columns = append(fk.Columns, fromCol)
		if toCol.Valid {
			fk.References.Columns = append(fk.References.Columns, toCol.String)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// pragma_foreign_key_list lists keys in reverse declaration order
	slices.Reverse(keys)
	for _, fk := range keys {
		fk.Name = schema.ConstraintName(table.Name, schema.ForeignKey, fk.Columns, taken)
		table.AddConstraint(fk)
	}
	return nil
}

// resolveImplicitReferences fills in the referenced columns of foreign keys
// declared as REFERENCES t, which point at t's primary key
func resolveImplicitReferences(s *schema.Schema) {
	for _, t := range s.Tables {
		for i := range t.Constraints {
			ref := t.Constraints[i].References
			if ref == nil || len(ref.Columns) > 0 {
				continue
			}
			if target := s.Table(ref.Table); target != nil {
				if pk := target.PrimaryKey(); pk != nil {
					ref.Columns = slices.Clone(pk.Columns)
				}
			}
		}
	}
}
