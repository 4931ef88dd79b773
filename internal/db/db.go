// Package db reads the schema of a live database into the schema model.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/sqlschema/internal/ddl"
	"github.com/tordrt/sqlschema/internal/schema"
	"github.com/tordrt/sqlschema/internal/sqlparse"
)

// Extractor reads tables from a connected database
type Extractor interface {
	// ExtractSchema extracts the named tables, or every table when tables is empty
	ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error)
}

// ParseDatabaseURL detects the database type and returns the driver connection string
func ParseDatabaseURL(url string) (dbType, connectionStr string, err error) {
	if url == "" {
		return "", "", fmt.Errorf("database URL is required")
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres", url, nil
	}

	if strings.HasPrefix(url, "mysql://") {
		// the Go MySQL driver takes a bare DSN
		return "mysql", strings.TrimPrefix(url, "mysql://"), nil
	}

	if strings.HasPrefix(url, "sqlite://") {
		return "sqlite", strings.TrimPrefix(url, "sqlite://"), nil
	}

	return "", "", fmt.Errorf("invalid database URL scheme (must start with postgres://, mysql://, or sqlite://)")
}

// ParseDatabaseName returns the database selected by a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("no database selected in DSN")
	}
	return cfg.DBName, nil
}

// Open connects to the database at url and returns an extractor for it with
// a function that closes the connection. schemaName defaults to "public" for
// postgres and to the DSN's database for mysql; sqlite ignores it.
func Open(ctx context.Context, url, schemaName string) (Extractor, func() error, error) {
	dbType, connStr, err := ParseDatabaseURL(url)
	if err != nil {
		return nil, nil, err
	}

	switch dbType {
	case "postgres":
		client, err := NewPostgresClient(ctx, connStr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if schemaName == "" {
			schemaName = "public"
		}
		return NewPostgresExtractor(client, schemaName), func() error { return client.Close(context.Background()) }, nil
	case "mysql":
		if schemaName == "" {
			schemaName, err = ParseDatabaseName(connStr)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to determine database name: %w (please specify a schema name)", err)
			}
		}
		conn, err := openSQL(ctx, "mysql", connStr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		return NewMySQLExtractor(conn, schemaName), conn.Close, nil
	default:
		conn, err := openSQL(ctx, "sqlite3", connStr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to SQLite: %w", err)
		}
		return NewSQLiteExtractor(conn), conn.Close, nil
	}
}

// openSQL opens a database/sql handle and checks that it is reachable
func openSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// normalizeType brings a catalog type name into the spelling the DDL
// interpreter produces. Types the parser does not know are kept as is.
func normalizeType(typ string) string {
	if out, err := sqlparse.NormalizeType(typ); err == nil {
		return out
	}
	return typ
}

var literalCastRe = regexp.MustCompile(`^('(?:[^']|'')*')::[A-Za-z_][\w ]*(?:\(\d+(?:,\s*\d+)?\))?(?:\[\])?$`)

// normalizeDefault drops the cast postgres adds to literal defaults and
// brings the expression into canonical form.
func normalizeDefault(expr *string) *string {
	if expr == nil {
		return nil
	}
	text := *expr
	if m := literalCastRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if out, err := sqlparse.NormalizeExpr(text); err == nil {
		text = out
	}
	return &text
}

// constraintFromDefinition parses a catalog constraint definition such as
// "FOREIGN KEY (a) REFERENCES t(id)" with the same parser used for schema files.
func constraintFromDefinition(table, name, def string) (schema.Constraint, error) {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", quote(table), quote(name), def)
	stmts, err := sqlparse.Parse(stmt)
	if err != nil {
		return schema.Constraint{}, err
	}
	if len(stmts) == 1 {
		if at, ok := stmts[0].(*ddl.AlterTable); ok && len(at.Actions) == 1 {
			if add, ok := at.Actions[0].(*ddl.AddConstraint); ok {
				c := add.Constraint
				if c.Kind == schema.Check {
					c.Columns = nil
				}
				return c, nil
			}
		}
	}
	return schema.Constraint{}, fmt.Errorf("unsupported constraint definition %q", def)
}

// indexFromDefinition parses a CREATE INDEX statement read from the catalog
func indexFromDefinition(def string) (schema.Index, error) {
	stmts, err := sqlparse.Parse(def)
	if err != nil {
		return schema.Index{}, err
	}
	if len(stmts) == 1 {
		if ci, ok := stmts[0].(*ddl.CreateIndex); ok {
			return ci.Index, nil
		}
	}
	return schema.Index{}, fmt.Errorf("unsupported index definition %q", def)
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// nameTaken reports names already used by t's constraints or by indexes of s
func nameTaken(s *schema.Schema, t *schema.Table) func(string) bool {
	return func(name string) bool {
		return t.Constraint(name) != nil || t.Index(name) != nil || s.IndexNameTaken(name)
	}
}
