package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/tordrt/sqlschema/internal/dialect"
	"github.com/tordrt/sqlschema/internal/diff"
	"github.com/tordrt/sqlschema/internal/interpret"
	"github.com/tordrt/sqlschema/internal/schema"
	"github.com/tordrt/sqlschema/internal/sqlparse"
)

func model(t *testing.T, sql string) *schema.Schema {
	t.Helper()
	stmts, err := sqlparse.Parse(sql)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	s, err := interpret.Build(stmts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return s
}

func renderDiff(t *testing.T, current, target *schema.Schema) string {
	t.Helper()
	ops, err := diff.Diff(current, target)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	out, err := Render(ops, dialect.Postgres{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return out
}

func TestRenderAddNotNullColumn(t *testing.T) {
	current := model(t, "CREATE TABLE users (id integer);")
	target := model(t, "CREATE TABLE users (id integer, email text NOT NULL);")

	if got, want := renderDiff(t, current, target), "ALTER TABLE users ADD COLUMN email text NOT NULL;\n"; got != want {
		t.Errorf("up = %q, want %q", got, want)
	}
	if got, want := renderDiff(t, target, current), "ALTER TABLE users DROP COLUMN email;\n"; got != want {
		t.Errorf("down = %q, want %q", got, want)
	}
}

func TestRenderNewTableWithForeignKey(t *testing.T) {
	current := model(t, "CREATE TABLE users (id text PRIMARY KEY);")
	target := model(t, `CREATE TABLE users (id text PRIMARY KEY);
CREATE TABLE posts (id text, user_id text NOT NULL REFERENCES users (id) ON DELETE CASCADE);
CREATE INDEX ON posts (user_id);`)

	want := `CREATE TABLE posts (
  id text,
  user_id text NOT NULL
);

ALTER TABLE posts ADD CONSTRAINT posts_user_id_fkey FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE;

CREATE INDEX posts_user_id_idx ON posts (user_id);
`
	if got := renderDiff(t, current, target); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	wantDown := `ALTER TABLE posts DROP CONSTRAINT posts_user_id_fkey;

DROP TABLE posts;
`
	if got := renderDiff(t, target, current); got != wantDown {
		t.Errorf("down got:\n%s\nwant:\n%s", got, wantDown)
	}
}

func TestRenderEmpty(t *testing.T) {
	s := model(t, "CREATE TABLE users (id text);")
	if got := renderDiff(t, s, s); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

const roundTripSchema = `
CREATE TABLE users (
  id text PRIMARY KEY,
  "Email" text NOT NULL,
  "user" text DEFAULT 'x',
  age numeric CHECK (age >= 0),
  UNIQUE ("Email")
);
CREATE TABLE posts (
  id text,
  author_id text REFERENCES users ON UPDATE CASCADE,
  body text,
  CONSTRAINT posts_pkey PRIMARY KEY (id),
  CONSTRAINT posts_body_check CHECK (length(body) < 1000)
);
CREATE UNIQUE INDEX posts_lower_body_idx ON posts (lower(body)) WHERE body IS NOT NULL;
CREATE INDEX ON posts USING hash (author_id);
`

func TestRenderSchemaRoundTrip(t *testing.T) {
	original := model(t, roundTripSchema)

	sql, err := RenderSchema(original, dialect.Postgres{})
	if err != nil {
		t.Fatalf("RenderSchema() error = %v", err)
	}
	again := model(t, sql)
	if !original.Equal(again) {
		t.Errorf("re-interpreting the rendered schema changed the model:\n%s", sql)
	}

	sql2, err := RenderSchema(again, dialect.Postgres{})
	if err != nil {
		t.Fatal(err)
	}
	if sql != sql2 {
		t.Errorf("rendering is not stable:\n%s\n---\n%s", sql, sql2)
	}
}

func TestRenderRoundTripThroughMigration(t *testing.T) {
	current := model(t, roundTripSchema)
	target := model(t, `
CREATE TABLE users (
  id text PRIMARY KEY,
  "Email" text,
  age integer
);
CREATE TABLE tags (name text PRIMARY KEY, user_id text REFERENCES users (id));
CREATE INDEX ON tags (user_id);
`)

	up := renderDiff(t, current, target)
	replayed, err := sqlparse.Parse(up)
	if err != nil {
		t.Fatalf("rendered migration does not parse: %v\n%s", err, up)
	}
	got := current.Clone()
	if err := interpret.ApplyAll(got, replayed); err != nil {
		t.Fatalf("rendered migration does not apply: %v\n%s", err, up)
	}
	if !got.Equal(target) {
		t.Errorf("applying the up migration does not yield the target:\n%s", up)
	}

	down := renderDiff(t, target, current)
	replayed, err = sqlparse.Parse(down)
	if err != nil {
		t.Fatalf("rendered down migration does not parse: %v\n%s", err, down)
	}
	if err := interpret.ApplyAll(got, replayed); err != nil {
		t.Fatalf("rendered down migration does not apply: %v\n%s", err, down)
	}
	if !got.Equal(current) {
		t.Errorf("applying the down migration does not restore the current schema:\n%s", down)
	}
}

func TestRenderDeterministic(t *testing.T) {
	first := renderDiff(t, schema.New(), model(t, roundTripSchema))
	for range 5 {
		if again := renderDiff(t, schema.New(), model(t, roundTripSchema)); again != first {
			t.Fatal("output differs between runs")
		}
	}
}

func TestRenderErrors(t *testing.T) {
	_, err := RenderOperation(diff.Operation{Kind: diff.AddColumn, Table: "t"}, dialect.Postgres{})
	if !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("missing column: error = %v", err)
	}
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Op.Kind != diff.AddColumn {
		t.Errorf("error does not carry the operation: %v", err)
	}

	col := &schema.Column{Name: "a", Type: "text"}
	op := diff.Operation{Kind: diff.AlterColumnType, Table: "t", Column: col, OldColumn: col}
	if _, err := Render([]diff.Operation{op}, dialect.SQLite{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("sqlite alter column: error = %v", err)
	}
}

func TestRenderMySQL(t *testing.T) {
	current := model(t, "CREATE TABLE users (id text, name text);")
	target := model(t, "CREATE TABLE users (id text, name varchar(10) NOT NULL);")

	ops, err := diff.Diff(current, target)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Render(ops, dialect.MySQL{})
	if err != nil {
		t.Fatal(err)
	}
	want := "ALTER TABLE `users` MODIFY COLUMN `name` varchar(10);\n\n" +
		"ALTER TABLE `users` MODIFY COLUMN `name` varchar(10) NOT NULL;\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderSQLiteForeignKeys(t *testing.T) {
	current := model(t, "CREATE TABLE users (id text PRIMARY KEY);")
	target := model(t, `CREATE TABLE users (id text PRIMARY KEY);
CREATE TABLE posts (id text, user_id text NOT NULL REFERENCES users (id) ON DELETE CASCADE);
CREATE INDEX ON posts (user_id);`)

	render := func(from, to *schema.Schema) (string, []diff.Operation, error) {
		ops, err := diff.Diff(from, to)
		if err != nil {
			t.Fatalf("Diff() error = %v", err)
		}
		out, err := Render(ops, dialect.SQLite{})
		return out, ops, err
	}

	up, ops, err := render(current, target)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := `CREATE TABLE posts (
  id text,
  user_id text NOT NULL,
  CONSTRAINT posts_user_id_fkey FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);

CREATE INDEX posts_user_id_idx ON posts (user_id);
`
	if up != want {
		t.Errorf("up got:\n%s\nwant:\n%s", up, want)
	}
	if len(ops[0].Def.Constraints) != 0 {
		t.Error("rendering changed the operations it was given")
	}

	down, _, err := render(target, current)
	if err != nil {
		t.Fatalf("Render() down error = %v", err)
	}
	if down != "DROP TABLE posts;\n" {
		t.Errorf("down = %q", down)
	}

	// a foreign key on a table that already exists needs a rebuild
	existing := model(t, "CREATE TABLE users (id text PRIMARY KEY);\nCREATE TABLE posts (id text, user_id text NOT NULL);")
	withKey := model(t, "CREATE TABLE users (id text PRIMARY KEY);\nCREATE TABLE posts (id text, user_id text NOT NULL REFERENCES users);")
	if _, _, err := render(existing, withKey); !errors.Is(err, ErrUnsupported) {
		t.Errorf("foreign key on existing table: error = %v", err)
	}
}

const moodsV1 = `
CREATE TYPE mood AS ENUM ('sad', 'ok');
CREATE TABLE users (id integer PRIMARY KEY, mood mood NOT NULL, history mood[]);
`

const moodsV2 = `
CREATE EXTENSION citext;
CREATE TYPE mood AS ENUM ('sad', 'meh', 'ok', 'happy');
CREATE TYPE status AS ENUM ('active', 'gone');
CREATE TABLE users (
  id integer GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  mood mood NOT NULL,
  history mood[],
  status status,
  email citext
);
`

func TestRenderTypesAndIdentity(t *testing.T) {
	current := model(t, moodsV1)
	target := model(t, moodsV2)

	up := renderDiff(t, current, target)
	want := `CREATE EXTENSION citext;

ALTER TYPE mood ADD VALUE 'meh' BEFORE 'ok';

ALTER TYPE mood ADD VALUE 'happy';

CREATE TYPE status AS ENUM ('active', 'gone');

ALTER TABLE users ADD COLUMN status status;

ALTER TABLE users ADD COLUMN email citext;

ALTER TABLE users ALTER COLUMN id ADD GENERATED ALWAYS AS IDENTITY;
`
	if up != want {
		t.Errorf("up got:\n%s\nwant:\n%s", up, want)
	}

	down := renderDiff(t, target, current)
	wantDown := `ALTER TYPE mood RENAME TO mood_old;
CREATE TYPE mood AS ENUM ('sad', 'ok');
ALTER TABLE users ALTER COLUMN mood TYPE mood USING mood::text::mood;
ALTER TABLE users ALTER COLUMN history TYPE mood[] USING history::text[]::mood[];
DROP TYPE mood_old;

ALTER TABLE users ALTER COLUMN id DROP IDENTITY;

ALTER TABLE users DROP COLUMN email;

ALTER TABLE users DROP COLUMN status;

DROP TYPE status;

DROP EXTENSION citext;
`
	if down != wantDown {
		t.Errorf("down got:\n%s\nwant:\n%s", down, wantDown)
	}

	for name, tt := range map[string]struct {
		sql      string
		from, to *schema.Schema
	}{
		"up":   {up, current, target},
		"down": {down, target, current},
	} {
		t.Run(name, func(t *testing.T) {
			stmts, err := sqlparse.Parse(tt.sql)
			if err != nil {
				t.Fatalf("rendered migration does not parse: %v", err)
			}
			got := tt.from.Clone()
			if err := interpret.ApplyAll(got, stmts); err != nil {
				t.Fatalf("rendered migration does not apply: %v", err)
			}
			if !got.Equal(tt.to) {
				t.Error("replaying the migration does not yield the expected schema")
			}
		})
	}
}

func TestRenderSchemaWithTypes(t *testing.T) {
	original := model(t, moodsV2)
	sql, err := RenderSchema(original, dialect.Postgres{})
	if err != nil {
		t.Fatalf("RenderSchema() error = %v", err)
	}
	if !strings.HasPrefix(sql, "CREATE EXTENSION citext;\n\nCREATE TYPE mood AS ENUM ('sad', 'meh', 'ok', 'happy');\n\nCREATE TYPE status") {
		t.Errorf("extensions and types should lead:\n%s", sql)
	}
	if !strings.Contains(sql, "id integer NOT NULL GENERATED ALWAYS AS IDENTITY") {
		t.Errorf("identity missing:\n%s", sql)
	}
	if again := model(t, sql); !original.Equal(again) {
		t.Errorf("re-interpreting the rendered schema changed the model:\n%s", sql)
	}

	if _, err := RenderSchema(original, dialect.MySQL{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("mysql error = %v", err)
	}
}

func TestRenderInvalidTypeOperations(t *testing.T) {
	for _, op := range []diff.Operation{
		{Kind: diff.CreateExtension},
		{Kind: diff.CreateType},
		{Kind: diff.AddEnumValue, Type: &schema.EnumType{Name: "mood"}},
		{Kind: diff.AlterColumnIdentity, Table: "t", Column: &schema.Column{Name: "id"}},
	} {
		if _, err := RenderOperation(op, dialect.Postgres{}); !errors.Is(err, ErrInvalidOperation) {
			t.Errorf("%s: error = %v", op.Kind, err)
		}
	}
}
