package migration

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tordrt/sqlschema/internal/diff"
	"github.com/tordrt/sqlschema/internal/schema"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0002_users.up.sql"), "CREATE TABLE users (id text);")
	writeFile(t, filepath.Join(dir, "0001_init.up.sql"), "CREATE TABLE a (id text);")
	writeFile(t, filepath.Join(dir, "0001_init.down.sql"), "DROP TABLE a;")
	writeFile(t, filepath.Join(dir, "0003_posts", "up.sql"), "CREATE TABLE posts (id text);")
	writeFile(t, filepath.Join(dir, "0003_posts", "down.sql"), "DROP TABLE posts;")
	writeFile(t, filepath.Join(dir, "README.md"), "notes")
	writeFile(t, filepath.Join(dir, "notes", "todo.txt"), "later")

	h, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var ids []string
	for _, m := range h.Migrations {
		ids = append(ids, m.ID)
	}
	want := []string{"0001_init.up.sql", "0002_users.up.sql", "0003_posts"}
	if !slices.Equal(ids, want) {
		t.Errorf("migrations = %v, want %v", ids, want)
	}
	if got := h.Migrations[0].DownPath; got != filepath.Join(dir, "0001_init.down.sql") {
		t.Errorf("down path = %q", got)
	}
	if got := h.Migrations[1].DownPath; got != "" {
		t.Errorf("expected no down path, got %q", got)
	}
	if got := h.Migrations[2].UpPath; got != filepath.Join(dir, "0003_posts", "up.sql") {
		t.Errorf("directory up path = %q", got)
	}
	if !h.HasDown {
		t.Error("expected HasDown")
	}
	if len(h.Skipped) != 2 {
		t.Errorf("skipped = %v, want README.md and notes", h.Skipped)
	}

	tmpl := h.Template()
	if !tmpl.Dir || tmpl.Kind != Counter || tmpl.Last != "0003" {
		t.Errorf("template = %+v", tmpl)
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	h, err := Load(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(h.Migrations) != 0 || h.HasDown {
		t.Errorf("expected empty history, got %+v", h)
	}
	if h.Template() != DefaultTemplate() {
		t.Errorf("expected the default template, got %+v", h.Template())
	}
}

func TestTemplateResolve(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)

	tests := []struct {
		last     string
		withDown bool
		kind     NumberKind
		want     Paths
	}{
		{"1700000000_init.sql", false, EpochSeconds, Paths{Up: "1709634030_add_users.sql"}},
		{"1700000000_init.up.sql", false, EpochSeconds, Paths{Up: "1709634030_add_users.sql"}},
		{"1700000000000_init.up.sql", true, EpochMillis, Paths{Up: "1709634030000_add_users.up.sql", Down: "1709634030000_add_users.down.sql"}},
		{"1800000000_init.sql", false, EpochSeconds, Paths{Up: "1800000001_add_users.sql"}},
		{"20240101120000_init.sql", false, DateTime, Paths{Up: "20240305102030_add_users.sql"}},
		{"20250101000000_init.sql", false, DateTime, Paths{Up: "20250101000001_add_users.sql"}},
		{"2024-01-01_init.sql", false, DateTime, Paths{Up: "2024-03-05_add_users.sql"}},
		{"0007_init.sql", false, Counter, Paths{Up: "0008_add_users.sql"}},
		{"9_init.sql", false, Counter, Paths{Up: "10_add_users.sql"}},
		{"V1.2.3__init.sql", false, SemVer, Paths{Up: "V1.3.0__add_users.sql"}},
		{"0001-init.do.sql", true, Counter, Paths{Up: "0002-add_users.do.sql", Down: "0002-add_users.undo.sql"}},
		{"0003_init/up.sql", true, Counter, Paths{Up: "0004_add_users/up.sql", Down: "0004_add_users/down.sql"}},
		{"0003_init/up.sql", false, Counter, Paths{Up: "0004_add_users/up.sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.last, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.last)
			if err != nil {
				t.Fatalf("ParseTemplate() error = %v", err)
			}
			if tmpl.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tmpl.Kind, tt.kind)
			}
			if got := tmpl.Resolve("Add users", now, tt.withDown); got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseTemplateErrors(t *testing.T) {
	for _, rel := range []string{"init.sql", "0001_init.txt", "0001_init/down.sql", "a/b/up.sql"} {
		if _, err := ParseTemplate(rel); !errors.Is(err, ErrUnrecognizedName) {
			t.Errorf("ParseTemplate(%q) error = %v", rel, err)
		}
	}
}

func TestDefaultTemplate(t *testing.T) {
	now := time.Unix(1709634030, 0)
	got := DefaultTemplate().Resolve("generated_migration", now, true)
	want := Paths{Up: "1709634030_generated_migration.up.sql", Down: "1709634030_generated_migration.down.sql"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGenerateName(t *testing.T) {
	col := func(name string) *schema.Column { return &schema.Column{Name: name, Type: "text", Nullable: true} }
	fk := &schema.Constraint{Name: "posts_user_id_fkey", Kind: schema.ForeignKey, Columns: []string{"user_id"},
		References: &schema.Reference{Table: "users", Columns: []string{"id"}}}
	idx := &schema.Index{Name: "users_email_idx", Table: "users", Columns: []string{"email"}}
	mood := &schema.EnumType{Name: "mood", Labels: []string{"sad", "meh", "happy"}}

	tests := []struct {
		name string
		ops  []diff.Operation
		want string
	}{
		{
			"create table with its constraints",
			[]diff.Operation{
				{Kind: diff.CreateTable, Table: "posts"},
				{Kind: diff.AddConstraint, Table: "posts", Constraint: fk},
			},
			"create_posts",
		},
		{
			"add column",
			[]diff.Operation{{Kind: diff.AddColumn, Table: "users", Column: col("email")}},
			"alter_users_add_email",
		},
		{
			"column facets collapse",
			[]diff.Operation{
				{Kind: diff.AlterColumnType, Table: "users", Column: col("age"), OldColumn: col("age")},
				{Kind: diff.AlterColumnDefault, Table: "users", Column: col("age"), OldColumn: col("age")},
				{Kind: diff.DropColumn, Table: "users", Column: col("nick")},
			},
			"alter_users_alter_age_drop_nick",
		},
		{
			"many columns",
			[]diff.Operation{
				{Kind: diff.AddColumn, Table: "users", Column: col("a")},
				{Kind: diff.AddColumn, Table: "users", Column: col("b")},
				{Kind: diff.AddColumn, Table: "users", Column: col("c")},
			},
			"alter_users",
		},
		{
			"indexes",
			[]diff.Operation{
				{Kind: diff.CreateIndex, Table: "users", Index: idx},
				{Kind: diff.DropIndex, Table: "users", Index: &schema.Index{Name: "old_idx", Table: "users"}},
			},
			"create_users_users_email_idx__drop_index_old_idx",
		},
		{
			"drop table with its foreign keys",
			[]diff.Operation{
				{Kind: diff.DropConstraint, Table: "posts", Constraint: fk},
				{Kind: diff.DropTable, Table: "posts"},
			},
			"drop_posts",
		},
		{
			"trimmed",
			[]diff.Operation{
				{Kind: diff.CreateTable, Table: "foo"},
				{Kind: diff.CreateTable, Table: "bar"},
				{Kind: diff.CreateTable, Table: "baz"},
				{Kind: diff.CreateTable, Table: "some_really_long_name"},
			},
			"create_foo__create_bar__create_baz__etc",
		},
		{
			"types and extensions",
			[]diff.Operation{
				{Kind: diff.CreateExtension, Extension: "citext"},
				{Kind: diff.AddEnumValue, Type: mood, Label: "meh"},
				{Kind: diff.AddEnumValue, Type: mood, Label: "happy"},
				{Kind: diff.DropType, Type: &schema.EnumType{Name: "status"}},
			},
			"create_extension_citext__alter_type_mood__drop_type_status",
		},
		{
			"identity",
			[]diff.Operation{{Kind: diff.AlterColumnIdentity, Table: "users", Column: col("id"), OldColumn: col("id")}},
			"alter_users_alter_id",
		},
		{"empty", nil, FallbackName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateName(tt.ops, 0); got != tt.want {
				t.Errorf("GenerateName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, "0001_init/up.sql", "CREATE TABLE a (id text);\n")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "CREATE TABLE a") {
		t.Errorf("unexpected contents %q", data)
	}

	if _, err := Write(dir, "0001_init/up.sql", "x"); err == nil {
		t.Error("expected an error when the file already exists")
	}
}
