package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig contains all database-related configuration settings.
// URL is only required when the postgres storage driver is selected.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=1"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// StorageConfig selects the task and user store implementation.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes" validate:"required,min=1,max=1440"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,min=1,gtfield=TokenLifetimeMinutes"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	// BootstrapAdminUsername, when set, is promoted to ADMIN on registration.
	BootstrapAdminUsername string `mapstructure:"bootstrap_admin_username"`
}

// SchedulerConfig groups background scheduler settings.
type SchedulerConfig struct {
	Overdue OverdueSchedulerConfig `mapstructure:"overdue" validate:"required"`
}

// OverdueSchedulerConfig controls the recurring overdue sweep.
// Cron uses six fields with seconds ("0 0 * * * *" is the top of every hour)
// or a descriptor such as "@every 15m".
type OverdueSchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron" validate:"required"`
}
