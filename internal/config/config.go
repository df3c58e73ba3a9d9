// Package config provides configuration management for the solana scanner application.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Helius    HeliusConfig
	Scraper   ScraperConfig
	Resolver  ResolverConfig
	Whale     WhaleConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the postgres:// connection URL used by migrations
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	ClassificationTTL time.Duration
	SummaryTTL        time.Duration
}

// RateLimitConfig holds rate limiting configuration.
// Backend is "local" (in-process token buckets) or "redis" (shared fixed windows).
type RateLimitConfig struct {
	Backend           string
	RequestsPerSecond int
	Burst             int
	Window            time.Duration
	WindowLimit       int
	ProviderRPS       int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// HeliusConfig holds indexed API and RPC credentials.
// An empty APIKey disables the indexed holdings and mint metadata tiers.
type HeliusConfig struct {
	APIKey  string
	BaseURL string
	RPCURL  string
}

// ScraperConfig holds wallet profile page settings
type ScraperConfig struct {
	ProfileBaseURL string
	UserAgent      string
	Timeout        time.Duration
	MaxBodyBytes   int64
}

// ResolverConfig holds address resolver settings
type ResolverConfig struct {
	TierTimeout   time.Duration
	Parallel      bool
	HTMLHeuristic bool
	MaxAttempts   int
}

// WhaleConfig holds whale alert parser settings
type WhaleConfig struct {
	KnownHosts []string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional; the environment may be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "solana_scanner"),
				User:           getEnv("POSTGRES_USER", "scanner"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Cache: CacheConfig{
			ClassificationTTL: getEnvAsDuration("CACHE_CLASSIFICATION_TTL", 10*time.Minute),
			SummaryTTL:        getEnvAsDuration("CACHE_SUMMARY_TTL", 2*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Backend:           getEnv("RATE_LIMIT_BACKEND", "local"),
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
			Window:            getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			WindowLimit:       getEnvAsInt("RATE_LIMIT_WINDOW_LIMIT", 120),
			ProviderRPS:       getEnvAsInt("RATE_LIMIT_PROVIDER_RPS", 5),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Helius: HeliusConfig{
			APIKey:  getEnv("HELIUS_API_KEY", ""),
			BaseURL: getEnv("HELIUS_BASE_URL", "https://api.helius.xyz/v0"),
			RPCURL:  getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		},
		Scraper: ScraperConfig{
			ProfileBaseURL: getEnv("PROFILE_BASE_URL", "https://gmgn.ai/sol/address/"),
			UserAgent: getEnv("SCRAPER_USER_AGENT",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"),
			Timeout:      getEnvAsDuration("SCRAPER_TIMEOUT", 10*time.Second),
			MaxBodyBytes: int64(getEnvAsInt("SCRAPER_MAX_BODY_BYTES", 5<<20)),
		},
		Resolver: ResolverConfig{
			TierTimeout:   getEnvAsDuration("RESOLVER_TIER_TIMEOUT", 8*time.Second),
			Parallel:      getEnvAsBool("RESOLVER_PARALLEL", false),
			HTMLHeuristic: getEnvAsBool("RESOLVER_HTML_HEURISTIC", true),
			MaxAttempts:   getEnvAsInt("PROVIDER_MAX_ATTEMPTS", 1),
		},
		Whale: WhaleConfig{
			KnownHosts: getEnvAsList("WHALE_KNOWN_HOSTS",
				[]string{"assetdash.com", "dexscreener.com", "birdeye.so", "pump.fun", "solscan.io"}),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma separated environment variable, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
