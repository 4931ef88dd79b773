package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tordrt/sqlschema/internal/interpret"
	"github.com/tordrt/sqlschema/internal/sqlparse"
)

const sqliteFixture = `
CREATE TABLE users (
  id INTEGER PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT DEFAULT 'anon',
  age INTEGER CHECK (age >= 0)
);
CREATE TABLE posts (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  body TEXT
);
CREATE INDEX posts_user_id_idx ON posts (user_id);
`

func TestSQLiteExtraction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	conn, err := openSQL(ctx, "sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, sqliteFixture); err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}

	got, err := NewSQLiteExtractor(conn).ExtractSchema(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to extract schema: %v", err)
	}

	stmts, err := sqlparse.Parse(sqliteFixture)
	if err != nil {
		t.Fatal(err)
	}
	want, err := interpret.Build(stmts)
	if err != nil {
		t.Fatal(err)
	}

	if !got.Equal(want) {
		for _, table := range got.Tables {
			t.Logf("extracted %s: %+v", table.Name, *table)
		}
		t.Error("extracted schema differs from the interpreted fixture")
	}
}

func TestSQLiteSpecificTables(t *testing.T) {
	ctx := context.Background()
	conn, err := openSQL(ctx, "sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, sqliteFixture); err != nil {
		t.Fatal(err)
	}

	s, err := NewSQLiteExtractor(conn).ExtractSchema(ctx, []string{"users"})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Tables) != 1 || s.Table("users") == nil {
		t.Errorf("expected only users, got %d tables", len(s.Tables))
	}
}
