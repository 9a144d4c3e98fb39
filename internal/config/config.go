// Package config provides configuration management for folio using Viper
// for loading from files, environment variables, and command-line flags.
//
// A single *Config is resolved once at startup and passed explicitly to the
// store, logger and server. Nothing reads viper during request handling.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	// InMemoryDSN names a shared-cache in-memory sqlite database so every
	// pooled connection sees the same schema.
	InMemoryDSN = "file:folio?mode=memory&cache=shared"

	appDirName = "folio"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" json:"database" mapstructure:"database"`
	Log      LogConfig      `yaml:"log" json:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" json:"port" mapstructure:"port"`
	Host            string        `yaml:"host" json:"host" mapstructure:"host"`
	Environment     string        `yaml:"environment" json:"environment" mapstructure:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" json:"driver" mapstructure:"driver"`
	DSN             string        `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	InMemory        bool          `yaml:"in_memory" json:"in_memory" mapstructure:"in_memory"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	Dir    string `yaml:"dir" json:"dir" mapstructure:"dir"`
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if !viper.IsSet("server.port") && config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Environment == "" {
		config.Server.Environment = "development"
	}
	if config.Server.ShutdownTimeout <= 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}

	if config.Database.Driver == "" {
		config.Database.Driver = DriverSQLite
	}
	if config.Database.InMemory && config.Database.Driver == DriverSQLite {
		config.Database.DSN = InMemoryDSN
	}
	if config.Database.DSN == "" && config.Database.Driver == DriverSQLite {
		config.Database.DSN = DefaultDatabasePath()
	}
	if config.Database.MaxOpenConns <= 0 {
		config.Database.MaxOpenConns = 4
	}
	if config.Database.MaxIdleConns <= 0 {
		config.Database.MaxIdleConns = min(2, config.Database.MaxOpenConns)
	}
	if config.Database.ConnMaxLifetime <= 0 {
		config.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// DefaultDatabasePath returns folio.db inside the user's config directory,
// falling back to the working directory when that cannot be resolved.
func DefaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "folio.db"
	}
	return filepath.Join(dir, appDirName, "folio.db")
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateDatabaseConfig(&config.Database); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// 0 lets the OS pick a port (tests)
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %q", char)
			}
		}
	}

	switch config.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("unknown environment %q (expected development or production)", config.Environment)
	}

	return nil
}

func validateDatabaseConfig(config *DatabaseConfig) error {
	switch config.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if config.InMemory {
			return fmt.Errorf("in_memory is only supported by the %s driver", DriverSQLite)
		}
		if config.DSN == "" {
			return fmt.Errorf("dsn is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported driver %q (expected %s or %s)", config.Driver, DriverSQLite, DriverPostgres)
	}

	if config.MaxIdleConns > config.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", config.MaxIdleConns, config.MaxOpenConns)
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level %q", config.Level)
	}

	switch config.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q (expected text or json)", config.Format)
	}

	if config.Dir != "" {
		if err := validatePath(config.Dir); err != nil {
			return fmt.Errorf("invalid dir '%s': %w", config.Dir, err)
		}
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// Keys lists every configuration key, in viper's dotted form.
var Keys = []string{
	"server.host",
	"server.port",
	"server.environment",
	"server.shutdown_timeout",
	"database.driver",
	"database.dsn",
	"database.in_memory",
	"database.max_open_conns",
	"database.max_idle_conns",
	"database.conn_max_lifetime",
	"log.level",
	"log.format",
	"log.dir",
}

// BindEnv registers every key with viper's environment lookup so that
// variables like FOLIO_DATABASE_DSN are honoured by Load even when no flag
// or file mentions the key. The env prefix must already be set.
func BindEnv() error {
	for _, key := range Keys {
		if err := viper.BindEnv(key); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
