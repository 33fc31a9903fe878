package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/tipwallet/internal/logger"
)

const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"

	BackendPostgres   = "postgres"
	BackendContentAPI = "contentapi"
)

const (
	defaultListenAddr        = "localhost:8000"
	defaultLoggingLevel      = logger.LevelInfo
	defaultEnvironment       = EnvProduction
	defaultStorageBackend    = BackendPostgres
	defaultRequestTimeout    = 10 * time.Second
	defaultReconcileInterval = 5 * time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the tipwallet service will be run
	ListenAddr string

	// Storage backend: postgres or contentapi
	StorageBackend string

	// Database to connect to. Required for postgres backend
	DatabaseDSN string

	// REST content backend. Required for contentapi backend
	ContentAPIURL   string
	ContentAPIToken string

	// Redis keeps session snapshots and idempotency keys. Memory and no idempotency if empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment: dev logs text, prod logs json
	Environment string

	// Upper bound for a single request
	RequestTimeout time.Duration

	// Interval between background balance reconciliation passes
	ReconcileInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		ListenAddr:        defaultListenAddr,
		StorageBackend:    defaultStorageBackend,
		Environment:       defaultEnvironment,
		RequestTimeout:    defaultRequestTimeout,
		ReconcileInterval: defaultReconcileInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"STORAGE_BACKEND":    setString(&c.StorageBackend),
		"CONTENT_API_URL":    setString(&c.ContentAPIURL),
		"CONTENT_API_TOKEN":  setString(&c.ContentAPIToken),
		"REDIS_ADDR":         setString(&c.RedisAddr),
		"REDIS_PASSWORD":     setString(&c.RedisPassword),
		"REDIS_DB":           setInt(&c.RedisDB),
		"REQUEST_TIMEOUT":    setDuration(&c.RequestTimeout),
		"RECONCILE_INTERVAL": setDuration(&c.ReconcileInterval),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("tipwallet", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.StorageBackend, "storage", "b", c.StorageBackend, "Storage backend (postgres, contentapi)")
	fs.StringVar(&c.ContentAPIURL, "content-api-url", c.ContentAPIURL, "Content backend base url")
	fs.StringVar(&c.ContentAPIToken, "content-api-token", c.ContentAPIToken, "Content backend token")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address (host:port)")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Request timeout, 0 disables it")
	fs.DurationVar(&c.ReconcileInterval, "reconcile-interval", c.ReconcileInterval, "Interval between reconciliation passes")

	return fs.Parse(args)
}

// Validate reports the first option that makes the server unable to start
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key is required")
	}

	switch c.StorageBackend {
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("database dsn is required for postgres storage")
		}
	case BackendContentAPI:
		if c.ContentAPIURL == "" {
			return errors.New("content api url is required for contentapi storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.RequestTimeout < 0 {
		return errors.New("request timeout must not be negative")
	}
	if c.ReconcileInterval <= 0 {
		return errors.New("reconcile interval must be positive")
	}
	return nil
}

// LogFormat picks logger output for the environment
func (c *Config) LogFormat() string {
	if c.Environment == EnvDevelopment {
		return logger.FormatText
	}
	return logger.FormatJSON
}
