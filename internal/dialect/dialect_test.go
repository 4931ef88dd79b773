package dialect

import (
	"errors"
	"testing"

	"github.com/tordrt/sqlschema/internal/schema"
)

func ptr(s string) *string { return &s }

func TestGet(t *testing.T) {
	for _, name := range []string{"postgres", "PostgreSQL", "mysql", "sqlite3", ""} {
		if _, err := Get(name); err != nil {
			t.Errorf("Get(%q) error = %v", name, err)
		}
	}
	if _, err := Get("oracle"); err == nil {
		t.Error("expected error for unknown dialect")
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		d    Dialect
		in   string
		want string
	}{
		{Postgres{}, "users", "users"},
		{Postgres{}, "user", `"user"`},
		{Postgres{}, "Users", `"Users"`},
		{Postgres{}, "audit.events", "audit.events"},
		{Postgres{}, `we"ird`, `"we""ird"`},
		{MySQL{}, "users", "`users`"},
		{MySQL{}, "a`b", "`a``b`"},
		{SQLite{}, "order", `"order"`},
		{SQLite{}, "orders", "orders"},
	}
	for _, tt := range tests {
		if got := tt.d.QuoteIdent(tt.in); got != tt.want {
			t.Errorf("%s.QuoteIdent(%q) = %q, want %q", tt.d.Name(), tt.in, got, tt.want)
		}
	}
}

func TestConstraintDefinition(t *testing.T) {
	tests := []struct {
		name string
		c    schema.Constraint
		want string
	}{
		{
			"primary key",
			schema.Constraint{Name: "t_pkey", Kind: schema.PrimaryKey, Columns: []string{"a", "b"}},
			"CONSTRAINT t_pkey PRIMARY KEY (a, b)",
		},
		{
			"check",
			schema.Constraint{Name: "t_check", Kind: schema.Check, Expression: "a > 0"},
			"CONSTRAINT t_check CHECK (a > 0)",
		},
		{
			"foreign key without actions",
			schema.Constraint{Name: "t_u_fkey", Kind: schema.ForeignKey, Columns: []string{"u"},
				References: &schema.Reference{Table: "users", Columns: []string{"id"}}},
			"CONSTRAINT t_u_fkey FOREIGN KEY (u) REFERENCES users (id)",
		},
		{
			"foreign key with actions",
			schema.Constraint{Name: "t_u_fkey", Kind: schema.ForeignKey, Columns: []string{"u"},
				References: &schema.Reference{Table: "users", Columns: []string{"id"}, OnDelete: "CASCADE", OnUpdate: "SET NULL"}},
			"CONSTRAINT t_u_fkey FOREIGN KEY (u) REFERENCES users (id) ON DELETE CASCADE ON UPDATE SET NULL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConstraintDefinition(Postgres{}, tt.c)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestColumnStatements(t *testing.T) {
	col := schema.Column{Name: "age", Type: "bigint", Nullable: false, Default: ptr("0")}

	tests := []struct {
		name string
		fn   func(string, schema.Column) (string, error)
		want string
	}{
		{"postgres type", Postgres{}.AlterColumnType, "ALTER TABLE users ALTER COLUMN age TYPE bigint"},
		{"postgres nullability", Postgres{}.AlterColumnNullability, "ALTER TABLE users ALTER COLUMN age SET NOT NULL"},
		{"postgres default", Postgres{}.AlterColumnDefault, "ALTER TABLE users ALTER COLUMN age SET DEFAULT 0"},
		{"mysql type", MySQL{}.AlterColumnType, "ALTER TABLE `users` MODIFY COLUMN `age` bigint NOT NULL DEFAULT 0"},
		{"mysql default", MySQL{}.AlterColumnDefault, "ALTER TABLE `users` ALTER COLUMN `age` SET DEFAULT 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn("users", col)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	nullable := schema.Column{Name: "age", Type: "bigint", Nullable: true}
	if got, _ := (Postgres{}).AlterColumnNullability("users", nullable); got != "ALTER TABLE users ALTER COLUMN age DROP NOT NULL" {
		t.Errorf("drop not null = %q", got)
	}
	if got, _ := (Postgres{}).AlterColumnDefault("users", nullable); got != "ALTER TABLE users ALTER COLUMN age DROP DEFAULT" {
		t.Errorf("drop default = %q", got)
	}
}

func TestMySQLDropConstraint(t *testing.T) {
	tests := []struct {
		kind schema.ConstraintKind
		want string
	}{
		{schema.PrimaryKey, "ALTER TABLE `t` DROP PRIMARY KEY"},
		{schema.ForeignKey, "ALTER TABLE `t` DROP FOREIGN KEY `c`"},
		{schema.Unique, "ALTER TABLE `t` DROP INDEX `c`"},
		{schema.Check, "ALTER TABLE `t` DROP CHECK `c`"},
	}
	for _, tt := range tests {
		got, err := MySQL{}.DropConstraint("t", schema.Constraint{Name: "c", Kind: tt.kind})
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestIndexes(t *testing.T) {
	idx := schema.Index{Name: "users_email_idx", Table: "users", Columns: []string{"email", "(lower(name))"}, Unique: true, Where: "deleted_at IS NULL"}

	got, err := Postgres{}.CreateIndex(idx)
	if err != nil {
		t.Fatal(err)
	}
	if want := "CREATE UNIQUE INDEX users_email_idx ON users (email, (lower(name))) WHERE deleted_at IS NULL"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := (MySQL{}).CreateIndex(idx); !errors.Is(err, ErrUnsupported) {
		t.Errorf("mysql partial index error = %v", err)
	}
	if got, _ := (MySQL{}).DropIndex(idx); got != "DROP INDEX `users_email_idx` ON `users`" {
		t.Errorf("mysql drop index = %q", got)
	}

	gin := schema.Index{Name: "docs_tags_idx", Table: "docs", Columns: []string{"tags"}, Method: "gin"}
	if got, _ := (Postgres{}).CreateIndex(gin); got != "CREATE INDEX docs_tags_idx ON docs USING gin (tags)" {
		t.Errorf("gin index = %q", got)
	}
}

func TestSQLiteUnsupported(t *testing.T) {
	col := schema.Column{Name: "a", Type: "text"}
	if _, err := (SQLite{}).AlterColumnType("t", col); !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v", err)
	}
	if _, err := (SQLite{}).AddConstraint("t", schema.Constraint{Name: "c", Kind: schema.Unique}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v", err)
	}
}

func TestEnumTypes(t *testing.T) {
	mood := schema.EnumType{Name: "mood", Labels: []string{"sad", "it's ok"}}
	d := Postgres{}

	tests := []struct {
		name   string
		render func() (string, error)
		want   string
	}{
		{"create", func() (string, error) { return d.CreateType(mood) }, "CREATE TYPE mood AS ENUM ('sad', 'it''s ok')"},
		{"drop", func() (string, error) { return d.DropType(mood) }, "DROP TYPE mood"},
		{"append", func() (string, error) { return d.AddEnumValue("mood", "happy", "") }, "ALTER TYPE mood ADD VALUE 'happy'"},
		{"insert", func() (string, error) { return d.AddEnumValue("mood", "meh", "sad") }, "ALTER TYPE mood ADD VALUE 'meh' BEFORE 'sad'"},
		{"extension", func() (string, error) { return d.CreateExtension("uuid-ossp") }, `CREATE EXTENSION "uuid-ossp"`},
		{"drop extension", func() (string, error) { return d.DropExtension("citext") }, "DROP EXTENSION citext"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.render()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReplaceType(t *testing.T) {
	old := schema.EnumType{Name: "mood", Labels: []string{"sad", "ok"}}
	e := schema.EnumType{Name: "mood", Labels: []string{"ok"}}
	cols := []schema.ColumnRef{
		{Table: "users", Column: "mood", Type: "mood"},
		{Table: "users", Column: "history", Type: "mood[]"},
	}

	got, err := Postgres{}.ReplaceType(old, e, cols)
	if err != nil {
		t.Fatal(err)
	}
	want := "ALTER TYPE mood RENAME TO mood_old;\n" +
		"CREATE TYPE mood AS ENUM ('ok');\n" +
		"ALTER TABLE users ALTER COLUMN mood TYPE mood USING mood::text::mood;\n" +
		"ALTER TABLE users ALTER COLUMN history TYPE mood[] USING history::text[]::mood[];\n" +
		"DROP TYPE mood_old"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	audit := schema.EnumType{Name: "audit.level", Labels: []string{"info"}}
	got, _ = Postgres{}.ReplaceType(audit, audit, nil)
	if want := "ALTER TYPE audit.level RENAME TO level_old;\nCREATE TYPE audit.level AS ENUM ('info');\nDROP TYPE audit.level_old"; got != want {
		t.Errorf("qualified replace = %q", got)
	}

	for _, d := range []Dialect{MySQL{}, SQLite{}} {
		if _, err := d.CreateType(e); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s create type error = %v", d.Name(), err)
		}
		if _, err := d.CreateExtension("citext"); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s create extension error = %v", d.Name(), err)
		}
	}
}

func TestIdentity(t *testing.T) {
	plain := schema.Column{Name: "id", Type: "integer"}
	always := schema.Column{Name: "id", Type: "integer", Identity: schema.IdentityAlways}
	byDefault := schema.Column{Name: "id", Type: "integer", Identity: schema.IdentityByDefault}

	defs := []struct {
		d    Dialect
		want string
	}{
		{Postgres{}, "id integer NOT NULL GENERATED ALWAYS AS IDENTITY"},
		{MySQL{}, "`id` integer NOT NULL AUTO_INCREMENT"},
		{SQLite{}, "id integer NOT NULL"},
	}
	for _, tt := range defs {
		if got := ColumnDefinition(tt.d, always); got != tt.want {
			t.Errorf("%s definition = %q, want %q", tt.d.Name(), got, tt.want)
		}
	}

	alters := []struct {
		old, col schema.Column
		want     string
	}{
		{plain, always, "ALTER TABLE t ALTER COLUMN id ADD GENERATED ALWAYS AS IDENTITY"},
		{always, byDefault, "ALTER TABLE t ALTER COLUMN id SET GENERATED BY DEFAULT"},
		{byDefault, plain, "ALTER TABLE t ALTER COLUMN id DROP IDENTITY"},
	}
	for _, tt := range alters {
		got, err := Postgres{}.AlterColumnIdentity("t", tt.old, tt.col)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}

	if got, _ := (MySQL{}).AlterColumnIdentity("t", plain, always); got != "ALTER TABLE `t` MODIFY COLUMN `id` integer NOT NULL AUTO_INCREMENT" {
		t.Errorf("mysql identity = %q", got)
	}
	if _, err := (SQLite{}).AlterColumnIdentity("t", plain, always); !errors.Is(err, ErrUnsupported) {
		t.Errorf("sqlite identity error = %v", err)
	}
	if (SQLite{}).SupportsAddConstraint() || !(Postgres{}).SupportsAddConstraint() {
		t.Error("unexpected constraint support")
	}
}
