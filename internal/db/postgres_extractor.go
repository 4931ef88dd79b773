package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/sqlschema/internal/schema"
)

// PostgresClient wraps the pgx connection used to read the catalog
type PostgresClient struct {
	conn *pgx.Conn
}

// NewPostgresClient connects and pings the server
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresClient{conn: conn}, nil
}

func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// GetConnection returns the underlying connection
func (c *PostgresClient) GetConnection() *pgx.Conn {
	return c.conn
}

// PostgresExtractor handles schema extraction from PostgreSQL
type PostgresExtractor struct {
	client *PostgresClient
	schema string
}

// NewPostgresExtractor creates a new schema extractor
func NewPostgresExtractor(client *PostgresClient, schemaName string) *PostgresExtractor {
	return &PostgresExtractor{
		client: client,
		schema: schemaName,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the schema
func (e *PostgresExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	s := schema.New()

	extensions, err := e.extractExtensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to extract extensions: %w", err)
	}
	s.Extensions = extensions

	types, err := e.extractTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to extract types: %w", err)
	}
	s.Types = types

	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		s.AddTable(table)
	}

	return s, nil
}

// extractExtensions lists installed extensions. plpgsql ships with every
// database and is left out.
func (e *PostgresExtractor) extractExtensions(ctx context.Context) ([]string, error) {
	rows, err := e.client.GetConnection().Query(ctx, `
		SELECT extname FROM pg_extension WHERE extname <> 'plpgsql' ORDER BY extname
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// extractTypes reads the enum types of the schema with their labels in
// sort order
func (e *PostgresExtractor) extractTypes(ctx context.Context) ([]*schema.EnumType, error) {
	query := `
		SELECT t.typname, en.enumlabel
		FROM pg_type t
		JOIN pg_enum en ON en.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, en.enumsortorder
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*schema.EnumType
	for rows.Next() {
		var name, label string
		if err := rows.Scan(&name, &label); err != nil {
			return nil, err
		}
		if len(types) == 0 || types[len(types)-1].Name != name {
			types = append(types, &schema.EnumType{Name: name})
		}
		last := types[len(types)-1]
		last.Labels = append(last.Labels, label)
	}

	return types, rows.Err()
}

// getTableNames returns the list of tables to extract
func (e *PostgresExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
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
func (e *PostgresExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	constraints, err := e.extractConstraints(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract constraints: %w", err)
	}
	table.Constraints = constraints

	indexes, err := e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	for _, idx := range indexes {
		table.AddIndex(idx)
	}

	return table, nil
}

// extractColumns extracts column information for a table. Types come from
// format_type so that modifiers such as varchar lengths are kept.
func (e *PostgresExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			a.attidentity::text
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1
			AND c.relname = $2
			AND a.attnum > 0
			AND NOT a.attisdropped
		ORDER BY a.attnum
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var dataType string
		var notNull bool
		var defaultVal *string
		var identity string

		if err := rows.Scan(&col.Name, &dataType, &notNull, &defaultVal, &identity); err != nil {
			return nil, err
		}

		col.Type = normalizeType(dataType)
		col.Nullable = !notNull
		col.Default = normalizeDefault(defaultVal)
		switch identity {
		case "a":
			col.Identity = schema.IdentityAlways
		case "d":
			col.Identity = schema.IdentityByDefault
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// extractConstraints reads primary key, unique, foreign key and check
// constraints through pg_get_constraintdef
func (e *PostgresExtractor) extractConstraints(ctx context.Context, tableName string) ([]schema.Constraint, error) {
	query := `
		SELECT con.conname, pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
			AND c.relname = $2
			AND con.contype IN ('p', 'u', 'f', 'c')
		ORDER BY con.contype = 'f', con.conname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []schema.Constraint
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		c, err := constraintFromDefinition(tableName, name, def)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", name, err)
		}
		constraints = append(constraints, c)
	}

	return constraints, rows.Err()
}

// extractIndexes extracts indexes that do not back a constraint
func (e *PostgresExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT i.relname, pg_get_indexdef(ix.indexrelid)
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind = 'r'
			AND n.nspname = $1
			AND t.relname = $2
			AND NOT EXISTS (
				SELECT 1 FROM pg_constraint con
				WHERE con.conindid = ix.indexrelid
					AND con.conrelid = ix.indrelid
					AND con.contype IN ('p', 'u', 'x')
			)
		ORDER BY i.relname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		idx, err := indexFromDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", name, err)
		}
		idx.Table = tableName
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}
