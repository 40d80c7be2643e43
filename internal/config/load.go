package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TASKTRACKER_DATABASE_URL overrides database.url.
const EnvPrefix = "TASKTRACKER"

// defaults lists every configuration key with its default value. Every key
// must be registered here so that environment overrides reach Unmarshal.
var defaults = map[string]any{
	"server.port":                         8080,
	"server.log_level":                    "info",
	"server.shutdown_timeout_seconds":     10,
	"database.url":                        "",
	"database.max_open_conns":             10,
	"database.max_idle_conns":             5,
	"database.conn_max_lifetime_minutes":  5,
	"database.auto_migrate":               true,
	"storage.driver":                      "postgres",
	"auth.jwt_secret":                     "",
	"auth.token_lifetime_minutes":         60,
	"auth.refresh_token_lifetime_minutes": 10080,
	"auth.bcrypt_cost":                    10,
	"auth.bootstrap_admin_username":       "",
	"scheduler.overdue.enabled":           true,
	"scheduler.overdue.cron":              "0 0 * * * *",
}

// Load reads configuration from defaults, an optional config.yaml in the
// working directory, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file path. An empty path looks
// for config.yaml in the working directory and tolerates its absence.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-section rules tags can't express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Storage.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("invalid configuration: database.url is required for the postgres storage driver")
	}

	return nil
}
