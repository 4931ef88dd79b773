package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tordrt/sqlschema/internal/interpret"
	"github.com/tordrt/sqlschema/internal/schema"
	"github.com/tordrt/sqlschema/internal/sqlparse"
)

func fixture(t *testing.T) *schema.Schema {
	t.Helper()
	stmts, err := sqlparse.Parse(`
CREATE TABLE users (id text PRIMARY KEY, email text NOT NULL UNIQUE);
CREATE TABLE posts (id text PRIMARY KEY, user_id text REFERENCES users ON DELETE CASCADE, status text DEFAULT 'draft');
CREATE INDEX ON posts (user_id);
`)
	if err != nil {
		t.Fatal(err)
	}
	s, err := interpret.Build(stmts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextFormatter(&buf).Format(fixture(t)); err != nil {
		t.Fatal(err)
	}

	want := `TABLE users (PK: id)
  id: text NOT NULL
  email: text NOT NULL

  CONSTRAINTS:
    users_email_key UNIQUE (email)

  REFERENCED BY:
    ← posts.user_id (posts_user_id_fkey)

TABLE posts (PK: id)
  id: text NOT NULL
  user_id: text
  status: text DEFAULT 'draft'

  CONSTRAINTS:
    posts_user_id_fkey (user_id) → users (id) ON DELETE CASCADE

  INDEXES:
    posts_user_id_idx (user_id)
`
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMarkdownFormatter(&buf).Format(fixture(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Database Schema",
		"## users",
		"- **id:** `text`, PK, NOT NULL",
		"- **status:** `text`, DEFAULT `'draft'`",
		"- posts_user_id_fkey: `(user_id) → users (id) ON DELETE CASCADE`",
		"### Referenced by",
		"- posts_user_id_idx on `(user_id)`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
}

func TestFormatTypes(t *testing.T) {
	stmts, err := sqlparse.Parse(`
CREATE EXTENSION citext;
CREATE TYPE mood AS ENUM ('sad', 'ok');
CREATE TABLE users (id integer GENERATED BY DEFAULT AS IDENTITY, mood mood);
`)
	if err != nil {
		t.Fatal(err)
	}
	s, err := interpret.Build(stmts)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := NewTextFormatter(&buf).Format(s); err != nil {
		t.Fatal(err)
	}
	want := `EXTENSIONS citext
TYPE mood ENUM (sad, ok)

TABLE users
  id: integer NOT NULL GENERATED BY DEFAULT AS IDENTITY
  mood: mood
`
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	buf.Reset()
	if err := NewMarkdownFormatter(&buf).Format(s); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"## Extensions\n\n- citext\n",
		"- **mood:** enum `sad`, `ok`",
		"- **id:** `integer`, NOT NULL, GENERATED BY DEFAULT AS IDENTITY",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("markdown is missing %q:\n%s", want, buf.String())
		}
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"text", "markdown"} {
		if _, err := New(format, &bytes.Buffer{}); err != nil {
			t.Errorf("New(%q) error = %v", format, err)
		}
	}
	if _, err := New("html", &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestMultiFileFormatter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	if err := NewMultiFileFormatter(dir, "markdown").Format(fixture(t)); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(overview), "- **posts** (references: users)") {
		t.Errorf("unexpected overview:\n%s", overview)
	}
	for _, name := range []string{"users.md", "posts.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}
