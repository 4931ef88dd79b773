package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tordrt/sqlschema"
	"github.com/tordrt/sqlschema/internal/config"
	"github.com/tordrt/sqlschema/internal/dialect"
)

var version = "dev"

// cli holds the state shared by every command of one invocation
type cli struct {
	v       *viper.Viper
	cfgFile string
	quiet   bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "sqlschema",
		Short: "Generate SQL migrations from a declarative schema file",
		Long: `sqlschema keeps a plain DDL schema file and a directory of migrations in sync.
Edit the schema file, then run "sqlschema migration" to write the migration that
takes the database from the state the existing migrations produce to the state the
schema file describes.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is ./sqlschema.yaml)")
	flags.StringP("schema-path", "s", config.DefaultSchemaPath, "path to the schema file")
	flags.StringP("migrations-dir", "m", config.DefaultMigrationsDir, "path to the migrations directory")
	flags.StringP("dialect", "d", config.DefaultDialect, "output dialect: "+strings.Join(dialect.Names(), ", "))
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "only log warnings and errors")
	c.bind(flags.Lookup("schema-path"), config.KeySchemaPath)
	c.bind(flags.Lookup("migrations-dir"), config.KeyMigrationsDir)
	c.bind(flags.Lookup("dialect"), config.KeyDialect)

	rootCmd.AddCommand(
		c.migrationCmd(),
		c.schemaCmd(),
		c.inspectCmd(),
		c.driftCmd(),
		versionCmd(),
	)
	return rootCmd
}

func (c *cli) bind(flag *pflag.Flag, key string) {
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", flag.Name, err))
	}
}

// setup reads the configuration and builds the logger before any command runs
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if c.quiet {
		level = slog.LevelWarn
	}
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	used, err := config.ReadFile(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	if used != "" {
		c.logger.Info("using config file", "path", used)
	}

	c.cfg, err = config.Load(c.v)
	return err
}

func (c *cli) options() *sqlschema.Options {
	return &sqlschema.Options{
		SchemaPath:    c.cfg.SchemaPath,
		MigrationsDir: c.cfg.MigrationsDir,
		Dialect:       c.cfg.Dialect,
		Name:          c.cfg.Name,
		IncludeDown:   c.cfg.IncludeDown,
		Logger:        c.logger,
	}
}

// ensureLayout creates an empty schema file and the migrations directory
// when they do not exist yet
func (c *cli) ensureLayout() error {
	path := c.cfg.SchemaPath
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create schema directory: %w", err)
		}
		c.logger.Info("creating", "path", path)
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return fmt.Errorf("failed to create schema file: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to stat schema file: %w", err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("schema path must be a file: %s", path)
	}

	if err := os.MkdirAll(c.cfg.MigrationsDir, 0755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "sqlschema", version)
		},
	}
}

// parseTableList splits a comma-separated flag value
func parseTableList(tables string) []string {
	if tables == "" {
		return nil
	}
	list := strings.Split(tables, ",")
	for i, t := range list {
		list[i] = strings.TrimSpace(t)
	}
	return list
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
