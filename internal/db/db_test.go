package db

import (
	"slices"
	"testing"

	"github.com/tordrt/sqlschema/internal/schema"
)

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		url      string
		wantType string
		wantConn string
		wantErr  bool
	}{
		{"postgres://u:p@localhost/db", "postgres", "postgres://u:p@localhost/db", false},
		{"postgresql://localhost/db", "postgres", "postgresql://localhost/db", false},
		{"mysql://u:p@tcp(localhost:3306)/db", "mysql", "u:p@tcp(localhost:3306)/db", false},
		{"sqlite://data/app.db", "sqlite", "data/app.db", false},
		{"", "", "", true},
		{"oracle://x", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			dbType, conn, err := ParseDatabaseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if dbType != tt.wantType || conn != tt.wantConn {
				t.Errorf("got (%q, %q), want (%q, %q)", dbType, conn, tt.wantType, tt.wantConn)
			}
		})
	}
}

func TestParseDatabaseName(t *testing.T) {
	name, err := ParseDatabaseName("u:p@tcp(localhost:3306)/shop?parseTime=true")
	if err != nil || name != "shop" {
		t.Errorf("got (%q, %v), want shop", name, err)
	}
	if _, err := ParseDatabaseName("u:p@tcp(localhost:3306)/"); err == nil {
		t.Error("expected an error when no database is selected")
	}
}

func TestNormalizeDefault(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"'draft'::text", "'draft'"},
		{"'a''b'::character varying", "'a''b'"},
		{"0", "0"},
		{"now()", "now()"},
	}
	for _, tt := range tests {
		if got := normalizeDefault(&tt.in); got == nil || *got != tt.want {
			t.Errorf("normalizeDefault(%q) = %v, want %q", tt.in, got, tt.want)
		}
	}
	if normalizeDefault(nil) != nil {
		t.Error("nil default should stay nil")
	}
}

func TestNormalizeType(t *testing.T) {
	if got := normalizeType("character varying(20)"); got != "varchar(20)" {
		t.Errorf("got %q", got)
	}
	if got := normalizeType("bigint unsigned"); got != "bigint unsigned" {
		t.Errorf("unknown types should be kept, got %q", got)
	}
}

func TestConstraintFromDefinition(t *testing.T) {
	fk, err := constraintFromDefinition("posts", "posts_user_fk", "FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE")
	if err != nil {
		t.Fatal(err)
	}
	if fk.Name != "posts_user_fk" || fk.Kind != schema.ForeignKey || fk.References.Table != "users" ||
		!slices.Equal(fk.References.Columns, []string{"id"}) || fk.References.OnDelete != "CASCADE" {
		t.Errorf("unexpected foreign key %+v", fk)
	}

	check, err := constraintFromDefinition("t", "t_check", "CHECK ((price > 0))")
	if err != nil {
		t.Fatal(err)
	}
	if check.Kind != schema.Check || check.Expression != "price > 0" || check.Columns != nil {
		t.Errorf("unexpected check %+v", check)
	}

	if _, err := constraintFromDefinition("t", "t_x", "EXCLUDE USING gist (a WITH =)"); err == nil {
		t.Error("expected an error for an unsupported constraint")
	}
}

func TestIndexFromDefinition(t *testing.T) {
	idx, err := indexFromDefinition("CREATE UNIQUE INDEX users_email_idx ON public.users USING btree (lower(email)) WHERE (deleted_at IS NULL)")
	if err != nil {
		t.Fatal(err)
	}
	want := schema.Index{
		Name:    "users_email_idx",
		Table:   "users",
		Columns: []string{"(lower(email))"},
		Unique:  true,
		Where:   "deleted_at IS NULL",
	}
	if !idx.Equal(want) || idx.Table != "users" {
		t.Errorf("got %+v, want %+v", idx, want)
	}
}

func TestMySQLDefault(t *testing.T) {
	tests := []struct {
		value, extra, want string
	}{
		{"0", "", "0"},
		{"draft", "", "'draft'"},
		{"it's", "", "'it''s'"},
		{"CURRENT_TIMESTAMP", "DEFAULT_GENERATED", "CURRENT_TIMESTAMP"},
	}
	for _, tt := range tests {
		if got := mysqlDefault(tt.value, tt.extra); *got != tt.want {
			t.Errorf("mysqlDefault(%q, %q) = %q, want %q", tt.value, tt.extra, *got, tt.want)
		}
	}
}

func TestMySQLExpr(t *testing.T) {
	if got := mysqlExpr("(`price` > 0)"); got != "price > 0" {
		t.Errorf("got %q", got)
	}
}
