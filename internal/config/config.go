// Package config loads tasking settings from defaults, an optional
// tasking.yaml file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the resolved configuration.
type Config struct {
	DB   DBConfig
	HTTP HTTPConfig
	Log  LogConfig
}

// DBConfig selects and addresses the task store.
type DBConfig struct {
	Driver string

	// Path is the SQLite database file.
	Path string

	// URL is a complete PostgreSQL connection string. When set it wins
	// over the individual connection settings.
	URL string

	// PostgreSQL connection settings.
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// HTTPConfig configures tasking serve.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"db.driver":             "DB_DRIVER",
	"db.path":               "DB_PATH",
	"db.url":                "DATABASE_URL",
	"db.host":               "DB_HOST",
	"db.port":               "DB_PORT",
	"db.user":               "DB_USER",
	"db.password":           "DB_PASSWORD",
	"db.name":               "DB_NAME",
	"db.sslmode":            "DB_SSLMODE",
	"http.addr":             "HTTP_ADDR",
	"http.shutdown_timeout": "HTTP_SHUTDOWN_TIMEOUT",
	"log.level":             "LOG_LEVEL",
	"log.format":            "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.path", "tasking.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "airport")
	v.SetDefault("db.password", "airport")
	v.SetDefault("db.name", "airport")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load resolves the configuration. An empty path searches for tasking.yaml
// in the working directory and tolerates its absence; an explicit path must
// exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tasking")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		DB: DBConfig{
			Driver:   strings.ToLower(v.GetString("db.driver")),
			Path:     v.GetString("db.path"),
			URL:      v.GetString("db.url"),
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("db.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.URL == "" && (c.DB.Host == "" || c.DB.Name == "") {
			return fmt.Errorf("db.host and db.name are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db.driver %q (want %s or %s)", c.DB.Driver, DriverSQLite, DriverPostgres)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q (want text or json)", c.Log.Format)
	}
	return nil
}

// DSN returns the connection string for the configured driver: the file
// path for SQLite, a postgres:// URL for PostgreSQL.
func (c *Config) DSN() string {
	if c.DB.Driver != DriverPostgres {
		return c.DB.Path
	}
	if c.DB.URL != "" {
		return c.DB.URL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DB.User, c.DB.Password),
		Host:   net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
		Path:   "/" + c.DB.Name,
	}
	if c.DB.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.DB.SSLMode}}.Encode()
	}
	return u.String()
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger builds a logger writing to w. verbose forces debug level.
func (l LogConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
