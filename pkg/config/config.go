package config

import (
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port     string        `env:"PORT" envDefault:"8081"`
		GRPCPort string        `env:"GRPC_PORT" envDefault:"9094"`
		Env      string        `env:"APP_ENV" envDefault:"development"`
		Timeout  time.Duration `env:"SERVER_TIMEOUT" envDefault:"30s"`
		Version  string        `env:"APP_VERSION" envDefault:"dev"`
	}

	// Logging configuration
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
	}

	// AI holds settings for the external generation service
	AI struct {
		// APIKeyName is the secret key looked up in Vault or the environment
		APIKeyName   string `env:"AI_API_KEY_NAME" envDefault:"api_key"`
	}

	// Simulation tuning
	Simulation struct {
		PacingDelay time.Duration `env:"SIMULATION_PACING_DELAY" envDefault:"1500ms"`
	}

	// Storage selects the backend for the persisted setup slot
	Storage struct {
		// Driver is one of memory, sqlite, redis, postgres
		Driver     string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
		SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/simulator.db"`
	}

	// Redis configuration
	Redis struct {
		Addr     string `env:"REDIS_URL" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	// Database configuration
	Database struct {
		Host     string        `env:"DB_HOST" envDefault:"localhost"`
		Port     string        `env:"DB_PORT" envDefault:"5432"`
		User     string        `env:"DB_USER" envDefault:"postgres"`
		Password string        `env:"DB_PASSWORD" envDefault:"postgres"`
		Name     string        `env:"DB_NAME" envDefault:"character-chat"`
		SSLMode  string        `env:"DB_SSL_MODE" envDefault:"disable"`
		MaxConns int           `env:"DB_MAX_CONNS" envDefault:"5"`
		Timeout  time.Duration `env:"DB_TIMEOUT" envDefault:"5s"`
	}

	// Security configuration
	Security struct {
		RateLimit      float64  `env:"RATE_LIMIT" envDefault:"5"`
		RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
		AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
		MaxBodySize    int64    `env:"MAX_BODY_SIZE" envDefault:"10485760"`
	}

	// Vault holds the optional secret backend for the generation API key
	Vault struct {
		Enabled     bool          `env:"VAULT_ENABLED" envDefault:"false"`
		Address     string        `env:"VAULT_ADDR"`
		Token       string        `env:"VAULT_TOKEN"`
		Namespace   string        `env:"VAULT_NAMESPACE"`
		Mount       string        `env:"VAULT_MOUNT" envDefault:"secret"`
		SecretsPath string        `env:"VAULT_SECRETS_PATH" envDefault:"character-chat"`
		Timeout     time.Duration `env:"VAULT_TIMEOUT" envDefault:"10s"`
		MaxRetries  int           `env:"VAULT_MAX_RETRIES" envDefault:"3"`
		CacheTTL    time.Duration `env:"VAULT_CACHE_TTL" envDefault:"5m"`
	}

	// Observability configuration
	Observability struct {
		TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"character-chat-simulator"`
	}

	// OpenAPI request validation
	OpenAPI struct {
		SchemaPath string `env:"OPENAPI_SCHEMA_PATH"`
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		cfg, err := Parse()
		if err != nil {
			log.Printf("invalid configuration, falling back to defaults: %v", err)
			cfg = &Config{}
			_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
		}
		instance = cfg
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Parse reads a fresh Config from the process environment without touching the singleton
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseFrom reads a Config from the given variables only
func ParseFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
