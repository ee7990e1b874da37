// Package config resolves crude's global options by layering, in
// precedence order: command-line flag, environment variable, the
// project's .crude.toml file, then a built-in default.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// DefaultMigrationsDir is used when no flag, env var, or config file
// entry supplies one.
const DefaultMigrationsDir = "./db/migrations"

// fileConfig is the shape of .crude.toml. Every field is optional: the
// file may set any subset of the global options.
type fileConfig struct {
	URL           string `toml:"url"`
	MigrationsDir string `toml:"migrations_dir"`
	SchemaFile    string `toml:"schema_file"`
}

// Config holds the resolved global options shared by every subcommand.
type Config struct {
	URL           string
	MigrationsDir string
	SchemaFile    string
}

// Load resolves Config from viper (which already has flags bound and env
// vars enabled by the caller) and, if present, configPath's TOML
// contents, applied beneath the flag/env layer and above the built-in
// default.
func Load(v *viper.Viper, configPath string) (Config, error) {
	var file fileConfig
	if configPath != "" {
		if _, err := toml.DecodeFile(configPath, &file); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading %s: %w", configPath, err)
		}
	}

	cfg := Config{
		URL:           firstNonEmpty(v.GetString("url"), file.URL),
		MigrationsDir: firstNonEmpty(v.GetString("migrations-dir"), file.MigrationsDir, DefaultMigrationsDir),
		SchemaFile:    firstNonEmpty(v.GetString("schema"), file.SchemaFile),
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// New builds the viper instance crude's root command binds its
// persistent flags to, with DATABASE_URL/MIGRATIONS_DIR/SCHEMA_FILE
// honored as environment variable overrides.
func New() *viper.Viper {
	v := viper.New()
	v.BindEnv("url", "DATABASE_URL")
	v.BindEnv("migrations-dir", "MIGRATIONS_DIR")
	v.BindEnv("schema", "SCHEMA_FILE")
	return v
}
