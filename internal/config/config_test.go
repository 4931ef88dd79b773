package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SchemaPath != DefaultSchemaPath || cfg.MigrationsDir != DefaultMigrationsDir || cfg.Dialect != DefaultDialect {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.IncludeDown != nil {
		t.Errorf("include_down should be unset, got %v", *cfg.IncludeDown)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := "schema_path: db/schema.sql\ninclude_down: false\ndialect: mysql\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SQLSCHEMA_DIALECT", "sqlite")

	v := New()
	used, err := ReadFile(v, path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if used != path {
		t.Errorf("config file used = %q, want %q", used, path)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SchemaPath != "db/schema.sql" {
		t.Errorf("schema path = %q", cfg.SchemaPath)
	}
	if cfg.Dialect != "sqlite" {
		t.Errorf("environment should override the file, dialect = %q", cfg.Dialect)
	}
	if cfg.IncludeDown == nil || *cfg.IncludeDown {
		t.Errorf("include_down = %v, want explicit false", cfg.IncludeDown)
	}
}

func TestReadFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	used, err := ReadFile(New(), "")
	if err != nil || used != "" {
		t.Errorf("missing default file: used = %q, error = %v", used, err)
	}
	if _, err := ReadFile(New(), "does-not-exist.yaml"); err == nil {
		t.Error("expected an error for an explicit missing file")
	}
}
