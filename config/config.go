package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Budget store backends
const (
	BudgetStoreFile     = "file"
	BudgetStoreMemory   = "memory"
	BudgetStorePostgres = "postgres"
	BudgetStoreRedis    = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server          ServerConfig
	Database        DatabaseConfig
	Redis           RedisConfig
	Providers       ProvidersConfig
	Budget          BudgetConfig
	Cache           CacheConfig
	Observability   ObservabilityConfig
	Environment     string
	DefaultLocation string
	GovernanceFile  string
	Governance      *Governance
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig holds the Redis connection used by the redis budget store
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	BudgetKey string
}

// ProvidersConfig holds business-data provider configurations
type ProvidersConfig struct {
	Foursquare   ProviderConfig
	GooglePlaces ProviderConfig
	Yelp         ProviderConfig
	MockSeed     int64
}

// ProviderConfig holds connection settings for one upstream API
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Configured reports whether a usable (non-placeholder) key is present
func (p ProviderConfig) Configured() bool {
	return !IsPlaceholderKey(p.APIKey)
}

// BudgetConfig selects and tunes the budget ledger persistence
type BudgetConfig struct {
	Store            string
	FilePath         string
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
}

// CacheConfig tunes the response cache
type CacheConfig struct {
	MaxEntries      int
	CleanupInterval time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		DefaultLocation: getEnv("DEFAULT_LOCATION", "New York"),
		GovernanceFile:  getEnv("GOVERNANCE_FILE", ""),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			BudgetKey: getEnv("REDIS_BUDGET_KEY", "ingestion:budget"),
		},
		Providers: ProvidersConfig{
			Foursquare: ProviderConfig{
				APIKey:  getEnv("FOURSQUARE_API_KEY", ""),
				BaseURL: getEnv("FOURSQUARE_BASE_URL", "https://api.foursquare.com/v3"),
				Timeout: getEnvAsDuration("FOURSQUARE_TIMEOUT", 15*time.Second),
			},
			GooglePlaces: ProviderConfig{
				APIKey:  getEnv("GOOGLE_PLACES_API_KEY", ""),
				BaseURL: getEnv("GOOGLE_PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
				Timeout: getEnvAsDuration("GOOGLE_PLACES_TIMEOUT", 10*time.Second),
			},
			Yelp: ProviderConfig{
				APIKey:  getEnv("YELP_API_KEY", ""),
				BaseURL: getEnv("YELP_BASE_URL", "https://api.yelp.com/v3"),
				Timeout: getEnvAsDuration("YELP_TIMEOUT", 10*time.Second),
			},
			MockSeed: int64(getEnvAsInt("MOCK_SEED", 0)),
		},
		Budget: BudgetConfig{
			Store:            strings.ToLower(getEnv("BUDGET_STORE", BudgetStoreFile)),
			FilePath:         getEnv("BUDGET_FILE", "data/api_budget.json"),
			CleanupInterval:  getEnvAsDuration("BUDGET_CLEANUP_INTERVAL", 24*time.Hour),
			CleanupRetention: getEnvAsDuration("BUDGET_RETENTION", 90*24*time.Hour),
		},
		Cache: CacheConfig{
			MaxEntries:      getEnvAsInt("CACHE_MAX_ENTRIES", 1000),
			CleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	gov, err := LoadGovernance(cfg.GovernanceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load governance: %w", err)
	}
	cfg.Governance = gov

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Budget.Store {
	case BudgetStoreFile:
		if c.Budget.FilePath == "" {
			return fmt.Errorf("budget file path is required for the file store")
		}
	case BudgetStoreMemory:
	case BudgetStorePostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
	case BudgetStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown budget store %q", c.Budget.Store)
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	if c.Governance != nil {
		if err := c.Governance.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsPlaceholderKey reports empty keys and the sample values shipped in .env templates
func IsPlaceholderKey(key string) bool {
	k := strings.TrimSpace(strings.ToLower(key))
	if k == "" || k == "changeme" {
		return true
	}
	return strings.HasPrefix(k, "your-") && strings.HasSuffix(k, "-here")
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "market_intel"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
