package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type config struct {
	port     int
	env      string
	logLevel string
	storage  struct {
		backend     string
		dsn         string
		sqlitePath  string
		timeout     time.Duration
		maxConns    int
		maxIdleTime time.Duration
	}
	breaker struct {
		enabled   bool
		threshold int
		recovery  time.Duration
	}
	limiter struct {
		enabled bool
		rps     float64
		burst   int
	}
	shutdown struct {
		timeout time.Duration
	}
}

// fileConfig is the optional YAML configuration. Flags given on the command
// line take precedence over it.
type fileConfig struct {
	Port     int    `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	Storage  struct {
		Backend     string        `yaml:"backend"`
		DSN         string        `yaml:"dsn"`
		SQLitePath  string        `yaml:"sqlite_path"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxConns    int           `yaml:"max_conns"`
		MaxIdleTime time.Duration `yaml:"max_idle_time"`
	} `yaml:"storage"`
	Breaker struct {
		Enabled   *bool         `yaml:"enabled"`
		Threshold int           `yaml:"threshold"`
		Recovery  time.Duration `yaml:"recovery"`
	} `yaml:"breaker"`
	Limiter struct {
		Enabled *bool   `yaml:"enabled"`
		RPS     float64 `yaml:"rps"`
		Burst   int     `yaml:"burst"`
	} `yaml:"limiter"`
	Shutdown struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// parseConfig reads flags from args. Defaults come from the environment
// (ADMIN_DB_DSN) and then from the file named by -config, if any.
func parseConfig(args []string, getenv func(string) string, output io.Writer) (config, error) {
	var cfg config
	var configPath string

	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	fs.IntVar(&cfg.port, "port", 4000, "API server port")
	fs.StringVar(&cfg.env, "env", "development", "Environment (development|staging|production)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Minimum log level (debug|info|warn|error)")

	fs.StringVar(&cfg.storage.backend, "storage", "memory", "Storage backend (memory|sqlite|postgres)")
	fs.StringVar(&cfg.storage.dsn, "db-dsn", getenv("ADMIN_DB_DSN"), "PostgreSQL DSN")
	fs.StringVar(&cfg.storage.sqlitePath, "sqlite-path", "data/adminconsole.db", "SQLite database file")
	fs.DurationVar(&cfg.storage.timeout, "db-timeout", 5*time.Second, "Storage operation timeout")
	fs.IntVar(&cfg.storage.maxConns, "db-max-conns", 25, "PostgreSQL max open connections")
	fs.DurationVar(&cfg.storage.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max connection idle time")

	fs.BoolVar(&cfg.breaker.enabled, "breaker-enabled", true, "Enable the storage circuit breaker")
	fs.IntVar(&cfg.breaker.threshold, "breaker-threshold", 5, "Consecutive storage failures before the breaker opens")
	fs.DurationVar(&cfg.breaker.recovery, "breaker-recovery", 30*time.Second, "Time the breaker stays open before probing")

	fs.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable rate limiter")
	fs.Float64Var(&cfg.limiter.rps, "limiter-rps", 100, "Rate limiter maximum requests per second")
	fs.IntVar(&cfg.limiter.burst, "limiter-burst", 200, "Rate limiter maximum burst")

	fs.DurationVar(&cfg.shutdown.timeout, "shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if configPath != "" {
		fc, err := loadConfigFile(configPath)
		if err != nil {
			return config{}, err
		}
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fc.apply(&cfg, set)
	}

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// apply copies every non-zero file value whose flag was not set explicitly.
func (fc *fileConfig) apply(cfg *config, set map[string]bool) {
	setInt := func(name string, dst *int, v int) {
		if v != 0 && !set[name] {
			*dst = v
		}
	}
	setString := func(name string, dst *string, v string) {
		if v != "" && !set[name] {
			*dst = v
		}
	}
	setDuration := func(name string, dst *time.Duration, v time.Duration) {
		if v != 0 && !set[name] {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool, v *bool) {
		if v != nil && !set[name] {
			*dst = *v
		}
	}

	setInt("port", &cfg.port, fc.Port)
	setString("env", &cfg.env, fc.Env)
	setString("log-level", &cfg.logLevel, fc.LogLevel)

	setString("storage", &cfg.storage.backend, fc.Storage.Backend)
	setString("db-dsn", &cfg.storage.dsn, fc.Storage.DSN)
	setString("sqlite-path", &cfg.storage.sqlitePath, fc.Storage.SQLitePath)
	setDuration("db-timeout", &cfg.storage.timeout, fc.Storage.Timeout)
	setInt("db-max-conns", &cfg.storage.maxConns, fc.Storage.MaxConns)
	setDuration("db-max-idle-time", &cfg.storage.maxIdleTime, fc.Storage.MaxIdleTime)

	setBool("breaker-enabled", &cfg.breaker.enabled, fc.Breaker.Enabled)
	setInt("breaker-threshold", &cfg.breaker.threshold, fc.Breaker.Threshold)
	setDuration("breaker-recovery", &cfg.breaker.recovery, fc.Breaker.Recovery)

	setBool("limiter-enabled", &cfg.limiter.enabled, fc.Limiter.Enabled)
	if fc.Limiter.RPS != 0 && !set["limiter-rps"] {
		cfg.limiter.rps = fc.Limiter.RPS
	}
	setInt("limiter-burst", &cfg.limiter.burst, fc.Limiter.Burst)

	setDuration("shutdown-timeout", &cfg.shutdown.timeout, fc.Shutdown.Timeout)
}

func (cfg config) validate() error {
	switch cfg.storage.backend {
	case "memory", "sqlite":
	case "postgres":
		if cfg.storage.dsn == "" {
			return fmt.Errorf("postgres storage requires -db-dsn or ADMIN_DB_DSN")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.storage.backend)
	}
	if cfg.limiter.enabled && (cfg.limiter.rps <= 0 || cfg.limiter.burst <= 0) {
		return fmt.Errorf("limiter rps and burst must be positive")
	}
	if cfg.breaker.enabled && cfg.breaker.threshold <= 0 {
		return fmt.Errorf("breaker threshold must be positive")
	}
	return nil
}
