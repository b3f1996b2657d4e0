package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
)

// FileName is the config file written by init and read by every command.
const FileName = "pocketledger.yaml"

// Environment variables applied over the file by ApplyEnv.
const (
	EnvDBDriver = "POCKETLEDGER_DB_DRIVER"
	EnvDBDSN    = "POCKETLEDGER_DB_DSN"
	EnvAddr     = "POCKETLEDGER_ADDR"
	EnvAMQPURL  = "POCKETLEDGER_AMQP_URL"
	EnvLogLevel = "POCKETLEDGER_LOG_LEVEL"
	EnvParty    = "POCKETLEDGER_PARTY"
)

// Config represents the top-level pocketledger.yaml configuration.
type Config struct {
	// DefaultParty is the party CLI commands act on when --party is omitted.
	DefaultParty string `yaml:"default_party,omitempty"`

	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
	Recurring RecurringConfig `yaml:"recurring"`
	Rollover  RolloverConfig  `yaml:"rollover"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Address     string   `yaml:"address"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
}

// EventsConfig configures the AMQP publisher. An empty URL disables it.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// RecurringConfig controls the background materializer started by serve.
type RecurringConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RolloverConfig holds budget defaults.
type RolloverConfig struct {
	DefaultPolicy      model.RolloverPolicy `yaml:"default_policy"`
	ThresholdPercent   int                  `yaml:"threshold_percent"`
	AuditRetentionDays int                  `yaml:"audit_retention_days"`
}

// Load reads a pocketledger.yaml file from disk. Missing keys keep their
// Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "pocketledger.db",
		},
		Events: EventsConfig{
			Exchange: "pocketledger",
			Queue:    "ledger_events",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Recurring: RecurringConfig{
			Interval: time.Hour,
		},
		Rollover: RolloverConfig{
			DefaultPolicy:      model.RolloverRemaining,
			ThresholdPercent:   75,
			AuditRetentionDays: 730,
		},
	}
}

// ApplyEnv overrides file values with the POCKETLEDGER_* variables that
// lookup reports as set. Pass os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvDBDriver, &c.Database.Driver)
	set(EnvDBDSN, &c.Database.DSN)
	set(EnvAddr, &c.Server.Address)
	set(EnvAMQPURL, &c.Events.AMQPURL)
	set(EnvLogLevel, &c.Log.Level)
	set(EnvParty, &c.DefaultParty)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Address == "" {
		add("server.address is required")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		add("database.driver %q: must be sqlite or postgres", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		add("database.dsn is required")
	}

	if c.Events.AMQPURL != "" {
		if u, err := url.Parse(c.Events.AMQPURL); err != nil {
			add("events.amqp_url: %v", err)
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			add("events.amqp_url scheme %q: must be amqp or amqps", u.Scheme)
		}
		if c.Events.Exchange == "" {
			add("events.exchange is required when amqp_url is set")
		}
		if c.Events.Queue == "" {
			add("events.queue is required when amqp_url is set")
		}
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add("log.format %q: must be text or json", c.Log.Format)
	}

	if c.Recurring.Interval < time.Second {
		add("recurring.interval %s: must be at least 1s", c.Recurring.Interval)
	}
	if !c.Rollover.DefaultPolicy.Valid() {
		add("rollover.default_policy %q: must be NONE, REMAINING, OVERSPEND or BOTH", c.Rollover.DefaultPolicy)
	}
	if c.Rollover.ThresholdPercent < 1 || c.Rollover.ThresholdPercent > 99 {
		add("rollover.threshold_percent %d: must be between 1 and 99", c.Rollover.ThresholdPercent)
	}
	if c.Rollover.AuditRetentionDays < 0 {
		add("rollover.audit_retention_days %d: must not be negative", c.Rollover.AuditRetentionDays)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Logger builds the structured logger described by the log section.
func (c *Config) Logger() *log.Logger {
	lc := log.DefaultConfig()
	if lvl, err := log.ParseLevel(c.Log.Level); err == nil {
		lc.Level = lvl
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return log.New(lc)
}
