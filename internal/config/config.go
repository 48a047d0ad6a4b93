// Package config handles searchmeta server configuration: defaults, an
// optional YAML file, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the searchmeta server
type Config struct {
	GRPCAddr            string        `yaml:"grpc_addr"`
	ObservabilityPort   int           `yaml:"observability_port"`
	DefaultIndexManager string        `yaml:"default_index_manager"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
	Catalog             CatalogConfig `yaml:"catalog"`
	Log                 LogConfig     `yaml:"log"`
}

// CatalogConfig selects the snapshot catalog database. An empty driver
// disables the catalog.
type CatalogConfig struct {
	Driver         string `yaml:"driver"` // sqlite or pgx
	DSN            string `yaml:"dsn"`
	PublishOnStart bool   `yaml:"publish_on_start"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LoadDefaults populates c with development defaults
func (c *Config) LoadDefaults() {
	c.GRPCAddr = ":50061"
	c.ObservabilityPort = 9091
	c.DefaultIndexManager = "local"
	c.ShutdownTimeout = 10 * time.Second
	c.Catalog = CatalogConfig{
		Driver:         "sqlite",
		DSN:            "searchmeta.db",
		PublishOnStart: true,
	}
	c.Log = LogConfig{Level: "info", Pretty: true}
}

// Load builds a Config from defaults, the YAML file named by -config (if
// any) and finally the remaining flags in args
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	// First pass only finds the config file
	var path string
	pre := newFlagSet(&Config{}, &path)
	if err := pre.Parse(args); err != nil {
		return nil, err
	}

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	// Second pass overrides file values with explicit flags
	fs := newFlagSet(cfg, &path)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(cfg *Config, path *string) *flag.FlagSet {
	fs := flag.NewFlagSet("searchmeta", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(path, "config", *path, "path to a YAML config file")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC listen address")
	fs.IntVar(&cfg.ObservabilityPort, "observability-port", cfg.ObservabilityPort, "HTTP port for metrics, health and pprof")
	fs.StringVar(&cfg.DefaultIndexManager, "index-manager", cfg.DefaultIndexManager, "index manager used when a request names none")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	fs.StringVar(&cfg.Catalog.Driver, "catalog-driver", cfg.Catalog.Driver, "catalog driver (sqlite, pgx), empty to disable")
	fs.StringVar(&cfg.Catalog.DSN, "catalog-dsn", cfg.Catalog.DSN, "catalog data source name")
	fs.BoolVar(&cfg.Catalog.PublishOnStart, "publish-on-start", cfg.Catalog.PublishOnStart, "publish metadata snapshots on startup")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Log.Pretty, "log-pretty", cfg.Log.Pretty, "human-readable console logs")
	return fs
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges and driver names
func (c *Config) Validate() error {
	var errs []error
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("config: grpc_addr is required"))
	}
	if c.ObservabilityPort < 0 || c.ObservabilityPort > 65535 {
		errs = append(errs, fmt.Errorf("config: observability_port %d out of range", c.ObservabilityPort))
	}
	if c.DefaultIndexManager == "" {
		errs = append(errs, errors.New("config: default_index_manager is required"))
	}
	switch c.Catalog.Driver {
	case "", "sqlite", "pgx", "postgres":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported catalog driver %q", c.Catalog.Driver))
	}
	if c.Catalog.Driver != "" && c.Catalog.DSN == "" {
		errs = append(errs, errors.New("config: catalog dsn is required"))
	}
	return errors.Join(errs...)
}
