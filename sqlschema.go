// Package sqlschema generates SQL migrations from a declarative schema file.
//
// The schema file holds the desired state as plain DDL. The migrations
// directory holds the history that produced the current state. Both are
// interpreted into the same in-memory model, compared, and the difference is
// rendered as a new migration script in the target dialect.
//
// # Quick Start
//
//	res, err := sqlschema.Generate(ctx, &sqlschema.Options{
//		SchemaPath:    "schema/schema.sql",
//		MigrationsDir: "schema/migrations",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if !res.Empty() {
//		files, err := sqlschema.WriteMigration("schema/migrations", res)
//		...
//	}
//
// # Drift
//
// DetectDrift compares a live database (postgres://, mysql:// or sqlite://
// URL) against the migrations' model and returns the statements that would
// bring the database in line. It never executes them.
package sqlschema

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tordrt/sqlschema/internal/codegen"
	"github.com/tordrt/sqlschema/internal/db"
	"github.com/tordrt/sqlschema/internal/ddl"
	"github.com/tordrt/sqlschema/internal/dialect"
	"github.com/tordrt/sqlschema/internal/diff"
	"github.com/tordrt/sqlschema/internal/formatter"
	"github.com/tordrt/sqlschema/internal/interpret"
	"github.com/tordrt/sqlschema/internal/migration"
	"github.com/tordrt/sqlschema/internal/schema"
	"github.com/tordrt/sqlschema/internal/sqlparse"
)

// Options configures where the schema file and migrations live and how new
// migrations are rendered.
//
// All fields except SchemaPath and MigrationsDir are optional:
//   - Dialect: "postgres" when empty
//   - Name: generated from the operations when empty
//   - IncludeDown: nil follows the directory (down scripts are written when
//     any exist already)
//   - Logger: progress is discarded when nil
//   - Now: time.Now when nil
type Options struct {
	SchemaPath    string
	MigrationsDir string
	Dialect       string
	Name          string
	IncludeDown   *bool
	Logger        *slog.Logger
	Now           func() time.Time
}

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Result is a rendered migration that has not been written yet
type Result struct {
	Name string
	// Paths are relative to the migrations directory; Paths.Down is empty
	// when no down script is rendered.
	Paths          migration.Paths
	Up             string
	Down           string
	Operations     []diff.Operation
	DownOperations []diff.Operation
}

// Empty reports whether the schema file matches the migrations
func (r *Result) Empty() bool {
	return len(r.Operations) == 0
}

// LoadHistory reads the migrations directory
func LoadHistory(dir string) (*migration.History, error) {
	h, err := migration.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	return h, nil
}

// BuildCurrent replays every up script of h, in order, into a fresh model
func BuildCurrent(h *migration.History, logger *slog.Logger) (*schema.Schema, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, name := range h.Skipped {
		logger.Info("skipping", "path", name)
	}

	s := schema.New()
	for _, m := range h.Migrations {
		logger.Info("parsing", "path", m.UpPath)
		stmts, err := parseFile(m.UpPath)
		if err != nil {
			return nil, err
		}
		if err := interpret.ApplyAll(s, stmts); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", m.UpPath, err)
		}
	}
	return s, nil
}

// BuildTarget interprets the schema file at path
func BuildTarget(path string, logger *slog.Logger) (*schema.Schema, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("parsing", "path", path)
	stmts, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	s, err := interpret.Build(stmts)
	if err != nil {
		return nil, fmt.Errorf("failed to interpret %s: %w", path, err)
	}
	return s, nil
}

func parseFile(path string) ([]ddl.Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	stmts, err := sqlparse.ParseFile(path, string(data))
	if err != nil {
		return nil, err
	}
	return stmts, nil
}

// Generate compares the schema file with the migrations directory and
// renders the migration that closes the gap. Nothing is written.
func Generate(ctx context.Context, opts *Options) (*Result, error) {
	d, err := dialect.Get(opts.Dialect)
	if err != nil {
		return nil, err
	}
	logger := opts.logger()

	h, err := LoadHistory(opts.MigrationsDir)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var current, target *schema.Schema
	var g errgroup.Group
	g.Go(func() error {
		var err error
		current, err = BuildCurrent(h, logger)
		return err
	})
	g.Go(func() error {
		var err error
		target, err = BuildTarget(opts.SchemaPath, logger)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	res.Operations, err = diff.Diff(current, target)
	if err != nil {
		return nil, fmt.Errorf("failed to diff schemas: %w", err)
	}
	if res.Empty() {
		return res, nil
	}
	res.Up, err = codegen.Render(res.Operations, d)
	if err != nil {
		return nil, fmt.Errorf("failed to render migration: %w", err)
	}

	withDown := h.HasDown
	if opts.IncludeDown != nil {
		withDown = *opts.IncludeDown
	}
	if withDown {
		res.DownOperations, err = diff.Diff(target, current)
		if err != nil {
			return nil, fmt.Errorf("failed to diff schemas for down migration: %w", err)
		}
		res.Down, err = codegen.Render(res.DownOperations, d)
		if err != nil {
			return nil, fmt.Errorf("failed to render down migration: %w", err)
		}
	}

	res.Name = opts.Name
	if res.Name == "" {
		res.Name = migration.GenerateName(res.Operations, migration.DefaultNameLength)
	}
	res.Paths = h.Template().Resolve(res.Name, opts.now(), withDown)
	return res, nil
}

// WriteMigration writes the scripts of r into dir and returns the files it
// created. Existing files are never overwritten.
func WriteMigration(dir string, r *Result) ([]string, error) {
	up, err := migration.Write(dir, r.Paths.Up, r.Up)
	if err != nil {
		return nil, err
	}
	files := []string{up}
	if r.Paths.Down != "" {
		down, err := migration.Write(dir, r.Paths.Down, r.Down)
		if err != nil {
			return files, err
		}
		files = append(files, down)
	}
	return files, nil
}

// RegenerateSchema renders the model produced by the migrations as a schema
// file: one CREATE TABLE per table followed by its indexes.
func RegenerateSchema(opts *Options) (string, error) {
	d, err := dialect.Get(opts.Dialect)
	if err != nil {
		return "", err
	}
	h, err := LoadHistory(opts.MigrationsDir)
	if err != nil {
		return "", err
	}
	s, err := BuildCurrent(h, opts.logger())
	if err != nil {
		return "", err
	}
	return codegen.RenderSchema(s, d)
}

// Inspect writes the migrations' model in a human-readable format ("text"
// or "markdown"). With outputDir set it writes an overview plus one file per
// table there instead of writing to w.
func Inspect(opts *Options, format string, w io.Writer, outputDir string) error {
	h, err := LoadHistory(opts.MigrationsDir)
	if err != nil {
		return err
	}
	s, err := BuildCurrent(h, opts.logger())
	if err != nil {
		return err
	}

	if outputDir != "" {
		return formatter.NewMultiFileFormatter(outputDir, format).Format(s)
	}
	f, err := formatter.New(format, w)
	if err != nil {
		return err
	}
	return f.Format(s)
}

// DriftOptions selects what DetectDrift compares.
//
// Tables limits the comparison to the named tables on both sides; nil
// compares every table. ExcludeTables drops tables from both sides, which is
// how bookkeeping tables of a migration runner (e.g. schema_migrations) are
// kept out of the result. SchemaName selects the database schema as
// described in db.Open.
type DriftOptions struct {
	Tables        []string
	ExcludeTables []string
	SchemaName    string
}

// Drift is the difference between a live database and the migrations
type Drift struct {
	Operations []diff.Operation
	SQL        string
}

// DetectDrift extracts the schema of the database at databaseURL and returns
// the statements that would turn it into the migrations' model.
func DetectDrift(ctx context.Context, databaseURL string, driftOpts *DriftOptions, opts *Options) (*Drift, error) {
	if driftOpts == nil {
		driftOpts = &DriftOptions{}
	}
	d, err := dialect.Get(opts.Dialect)
	if err != nil {
		return nil, err
	}
	h, err := LoadHistory(opts.MigrationsDir)
	if err != nil {
		return nil, err
	}
	want, err := BuildCurrent(h, opts.logger())
	if err != nil {
		return nil, err
	}

	extractor, closeFn, err := db.Open(ctx, databaseURL, driftOpts.SchemaName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeFn() }()

	live, err := extractor.ExtractSchema(ctx, driftOpts.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to extract schema: %w", err)
	}

	if len(driftOpts.Tables) > 0 {
		keepTables(want, driftOpts.Tables)
	}
	filterExcludedTables(live, driftOpts.ExcludeTables)
	filterExcludedTables(want, driftOpts.ExcludeTables)

	drift := &Drift{}
	drift.Operations, err = diff.Diff(live, want)
	if err != nil {
		return nil, fmt.Errorf("failed to diff schemas: %w", err)
	}
	drift.SQL, err = codegen.Render(drift.Operations, d)
	if err != nil {
		return nil, fmt.Errorf("failed to render drift: %w", err)
	}
	return drift, nil
}

func keepTables(s *schema.Schema, names []string) {
	s.Tables = slices.DeleteFunc(s.Tables, func(t *schema.Table) bool {
		return !slices.Contains(names, t.Name)
	})
}

func filterExcludedTables(s *schema.Schema, excludeList []string) {
	if len(excludeList) == 0 {
		return
	}
	s.Tables = slices.DeleteFunc(s.Tables, func(t *schema.Table) bool {
		return slices.Contains(excludeList, t.Name)
	})
}
