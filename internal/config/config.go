// Package config reads sqlschema settings from an optional sqlschema.yaml,
// SQLSCHEMA_* environment variables and bound command flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultSchemaPath    = "./schema/schema.sql"
	DefaultMigrationsDir = "./schema/migrations"
	DefaultDialect       = "postgres"
)

// Keys
const (
	KeySchemaPath    = "schema_path"
	KeyMigrationsDir = "migrations_dir"
	KeyDialect       = "dialect"
	KeyIncludeDown   = "include_down"
	KeyName          = "name"
	KeyDatabaseURL   = "database_url"
	KeyDBSchema      = "db_schema"
)

type Config struct {
	SchemaPath    string `mapstructure:"schema_path"`
	MigrationsDir string `mapstructure:"migrations_dir"`
	Dialect       string `mapstructure:"dialect"`
	Name          string `mapstructure:"name"`
	DatabaseURL   string `mapstructure:"database_url"`
	DBSchema      string `mapstructure:"db_schema"`

	// IncludeDown is nil when down migrations should follow the directory
	IncludeDown *bool `mapstructure:"-"`
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeySchemaPath, DefaultSchemaPath)
	v.SetDefault(KeyMigrationsDir, DefaultMigrationsDir)
	v.SetDefault(KeyDialect, DefaultDialect)
	v.SetEnvPrefix("sqlschema")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile loads cfgFile, or sqlschema.yaml from the current directory when
// cfgFile is empty. A missing default file is not an error. It returns the
// file that was used, if any.
func ReadFile(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("sqlschema")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes the settings held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v.IsSet(KeyIncludeDown) {
		down := v.GetBool(KeyIncludeDown)
		cfg.IncludeDown = &down
	}
	if cfg.SchemaPath == "" {
		return nil, fmt.Errorf("%s must not be empty", KeySchemaPath)
	}
	if cfg.MigrationsDir == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyMigrationsDir)
	}
	return &cfg, nil
}
