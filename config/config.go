package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/freewilll/potluck/database"
	"github.com/freewilll/potluck/lock"
)

// Backends that can hold the ledger
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

var validBackends = []string{BackendPostgres, BackendSQLite, BackendMemory}

// Config is the whole configuration of the server
type Config struct {
	// General
	CreateSchema bool
	ServerPort   int
	Backend      string
	LogLevel     slog.Level

	// Postgresql
	Postgres database.Config

	// SQLite
	SQLitePath string

	// Redis, empty Addr means the lock is held in process
	Lock lock.Config

	// AMQP, empty URL disables notifications
	AMQPURL      string
	AMQPExchange string
}

// Load parses the command line args. Every flag defaults to an environment
// variable, then to a built in value.
func Load(args []string) (*Config, error) {
	cfg := new(Config)
	var logLevel string

	fs := flag.NewFlagSet("potluck", flag.ContinueOnError)

	// General flags
	fs.BoolVar(&cfg.CreateSchema, "create-schema", false, "create schema and exit")
	fs.IntVar(&cfg.ServerPort, "server-port", getEnvInt("PORT", 8080), "web server port")
	fs.StringVar(&cfg.Backend, "backend", getEnv("DATA_BACKEND", BackendPostgres), "data backend: postgres, sqlite or memory")
	fs.StringVar(&logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level: debug, info, warn or error")

	// Postgresql flags
	fs.StringVar(&cfg.Postgres.Host, "db-host", getEnv("DB_HOST", "localhost"), "database host")
	fs.IntVar(&cfg.Postgres.Port, "db-port", getEnvInt("DB_PORT", 5432), "database port")
	fs.StringVar(&cfg.Postgres.User, "db-user", getEnv("DB_USER", "postgres"), "database user")
	fs.StringVar(&cfg.Postgres.Password, "db-password", getEnv("DB_PASSWORD", "stream"), "database password")
	fs.StringVar(&cfg.Postgres.Name, "db-name", getEnv("DB_NAME", "postgres"), "database name")

	// SQLite flags
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", getEnv("SQLITE_DB_PATH", "./data/potluck.db"), "sqlite database file")

	// Redis flags
	fs.StringVar(&cfg.Lock.Addr, "lock-addr", getEnv("REDIS_ADDR", ""), "redis address for objective locks, empty for in process locks")
	fs.StringVar(&cfg.Lock.Password, "lock-password", getEnv("REDIS_PASSWORD", ""), "redis password")
	fs.IntVar(&cfg.Lock.Db, "lock-db", getEnvInt("REDIS_DB", 0), "redis db")
	fs.DurationVar(&cfg.Lock.TTL, "lock-ttl", getEnvDuration("LOCK_TTL", 10*time.Second), "how long a lock outlives a crashed holder")

	// AMQP flags
	fs.StringVar(&cfg.AMQPURL, "amqp-url", getEnv("AMQP_URL", ""), "AMQP broker url for notifications, empty to disable")
	fs.StringVar(&cfg.AMQPExchange, "amqp-exchange", getEnv("AMQP_EXCHANGE", "potluck"), "AMQP exchange for notifications")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level '%s'", logLevel)
	}

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid server port %d: must be between 1 and 65535", c.ServerPort))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.Backend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.Backend, validBackends))
	}

	switch c.Backend {
	case BackendPostgres:
		if c.Postgres.Host == "" {
			errors = append(errors, "database host cannot be empty when using postgres backend")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid database port %d: must be between 1 and 65535", c.Postgres.Port))
		}
		if c.Postgres.Name == "" {
			errors = append(errors, "database name cannot be empty when using postgres backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	}

	if c.Lock.Addr != "" && c.Lock.TTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid lock ttl %v: must be at least 1 second", c.Lock.TTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
