package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/xlog"
	"github.com/joho/godotenv"

	"github.com/unclebandit/customer-support-mcp/internal/db"
)

// Environment variables that override file settings.
const (
	EnvHost     = "SUPPORT_HOST"
	EnvPort     = "SUPPORT_PORT"
	EnvDBDriver = "SUPPORT_DB_DRIVER"
	EnvDBDSN    = "SUPPORT_DB_DSN"
	EnvAMQPURL  = "SUPPORT_AMQP_URL"
	EnvLogLevel = "SUPPORT_LOG_LEVEL"
)

// Config is the server configuration
type Config struct {
	ServerName    string `json:"server_name" yaml:"server_name"`
	ServerVersion string `json:"server_version" yaml:"server_version"`
	Host          string `json:"host" yaml:"host"`
	Port          int    `json:"port" yaml:"port"`
	// LogLevel is one of trace, debug, info, notice, warning, error
	LogLevel string `json:"log_level" yaml:"log_level"`

	Store  StoreConfig  `json:"store" yaml:"store"`
	Events EventsConfig `json:"events" yaml:"events"`
	CORS   CORSConfig   `json:"cors" yaml:"cors"`
}

// StoreConfig specifies the relational store
type StoreConfig struct {
	// Driver is sqlite or postgres
	Driver       string `json:"driver" yaml:"driver"`
	DSN          string `json:"dsn" yaml:"dsn"`
	MaxOpenConns int    `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns int    `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	// Migrate creates missing tables on start
	Migrate bool `json:"migrate" yaml:"migrate"`
}

// EventsConfig specifies where support events are published.
// Without AMQPURL events stay in-process.
type EventsConfig struct {
	AMQPURL  string `json:"amqp_url,omitempty" yaml:"amqp_url,omitempty"`
	Exchange string `json:"exchange" yaml:"exchange"`
	Queue    string `json:"queue" yaml:"queue"`
}

// CORSConfig specifies allowed browser origins. Empty allows any.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerName:    "customer-support-mcp-server",
		ServerVersion: "1.0.0",
		Host:          "127.0.0.1",
		Port:          5000,
		LogLevel:      "info",
		Store: StoreConfig{
			Driver:  string(db.SQLite),
			DSN:     "support.db",
			Migrate: true,
		},
		Events: EventsConfig{
			Exchange: "support.events",
			Queue:    "support",
		},
	}
}

// Load returns the defaults overlaid with file, if given
func Load(file string) (*Config, error) {
	cfg := Default()
	if file == "" {
		return cfg, nil
	}
	if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", file)
	}
	return cfg, nil
}

// Resolve loads .env, then file, then SUPPORT_* environment variables
func Resolve(file string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := Load(file)
	if err != nil {
		return nil, err
	}
	if err = cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment
// without overriding variables already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// ApplyEnv overrides settings from SUPPORT_* environment variables
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvHost); ok {
		c.Host = v
	}
	if v, ok := os.LookupEnv(EnvPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Errorf("invalid %s: %q", EnvPort, v)
		}
		c.Port = port
	}
	if v, ok := os.LookupEnv(EnvDBDriver); ok {
		c.Store.Driver = v
	}
	if v, ok := os.LookupEnv(EnvDBDSN); ok {
		c.Store.DSN = v
	}
	if v, ok := os.LookupEnv(EnvAMQPURL); ok {
		c.Events.AMQPURL = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return errors.New("server_name is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("invalid port: %d", c.Port)
	}
	if !db.Dialect(c.Store.Driver).Valid() {
		return errors.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return errors.New("store DSN is required")
	}
	if c.Events.AMQPURL != "" && (c.Events.Exchange == "" || c.Events.Queue == "") {
		return errors.New("events exchange and queue are required with amqp_url")
	}
	if _, err := c.XLogLevel(); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DBConfig returns the store connection settings
func (c *Config) DBConfig() db.Config {
	return db.Config{
		Dialect:      db.Dialect(c.Store.Driver),
		DSN:          c.Store.DSN,
		MaxOpenConns: c.Store.MaxOpenConns,
		MaxIdleConns: c.Store.MaxIdleConns,
	}
}

// XLogLevel maps LogLevel to the logger level
func (c *Config) XLogLevel() (xlog.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "trace":
		return xlog.TRACE, nil
	case "debug":
		return xlog.DEBUG, nil
	case "", "info":
		return xlog.INFO, nil
	case "notice":
		return xlog.NOTICE, nil
	case "warn", "warning":
		return xlog.WARNING, nil
	case "error":
		return xlog.ERROR, nil
	}
	return xlog.INFO, errors.Errorf("invalid log level: %q", c.LogLevel)
}
