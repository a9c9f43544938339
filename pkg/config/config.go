package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environments recognised by APP_ENV
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port            string
		Env             string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	// MongoDB configuration
	Database struct {
		URI            string
		Name           string
		Transcripts    string
		Feedback       string
		ConnectTimeout time.Duration
		MaxRetryTime   time.Duration
		MaxPoolSize    uint64
	}

	// Admin auth for the read routes
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigin  string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Read cache for fetch-by-id
	Cache struct {
		Enabled     bool
		RedisURL    string
		TTL         time.Duration
		PurgeWindow time.Duration
	}

	// Circuit breaker around store writes
	Breaker struct {
		MaxFailures  int
		ResetTimeout time.Duration
	}

	Observability struct {
		TracingEnabled bool
		ServiceName    string
	}

	OpenAPI struct {
		SchemaPath string
	}

	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		SecretsPath string
	}
}

// Load reads configuration from the environment, after loading a .env file
// when one exists in the working directory
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only
func FromEnv() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "5001")
	cfg.Server.Env = getEnvString("APP_ENV", EnvProduction)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg.Database.URI = getEnvString("MONGODB_URI", "mongodb://localhost:27017")
	cfg.Database.Name = getEnvString("MONGODB_DATABASE", "chatapp")
	cfg.Database.Transcripts = getEnvString("MONGODB_TRANSCRIPTS_COLLECTION", "transcripts")
	cfg.Database.Feedback = getEnvString("MONGODB_FEEDBACK_COLLECTION", "feedback")
	cfg.Database.ConnectTimeout = getEnvDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second)
	cfg.Database.MaxRetryTime = getEnvDuration("MONGODB_MAX_RETRY_TIME", 30*time.Second)
	cfg.Database.MaxPoolSize = uint64(getEnvInt64("MONGODB_MAX_POOL_SIZE", 20))

	cfg.JWT.Secret = getEnvString("ADMIN_JWT_SECRET", "")
	cfg.JWT.Expiry = getEnvDuration("ADMIN_JWT_EXPIRY", 24*time.Hour)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1", "::1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
	cfg.Cache.RedisURL = getEnvString("REDIS_URL", "")
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	cfg.Breaker.MaxFailures = getEnvInt("BREAKER_MAX_FAILURES", 5)
	cfg.Breaker.ResetTimeout = getEnvDuration("BREAKER_RESET_TIMEOUT", 30*time.Second)

	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "dpchat-backend")

	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "http://localhost:8200")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "dpchat")

	return cfg
}

// IsDevelopment reports whether error details may be shown to clients.
// Only an explicit APP_ENV=development enables it.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == EnvDevelopment
}

// IsProduction reports whether gin should run in release mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == EnvProduction
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
