package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/solana-scanner/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestRedis starts an in-memory Redis and returns a cache wired to it
func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheFromClient(client)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

// testPostgresConfig reads connection settings from the environment.
// Tests that need Postgres skip unless POSTGRES_TEST_HOST is set.
func testPostgresConfig(t *testing.T) *config.PostgresConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		t.Skip("Skipping test - POSTGRES_TEST_HOST not set")
	}
	port := os.Getenv("POSTGRES_TEST_PORT")
	if port == "" {
		port = "5432"
	}
	return &config.PostgresConfig{
		Host:           host,
		Port:           port,
		Database:       os.Getenv("POSTGRES_TEST_DB"),
		User:           os.Getenv("POSTGRES_TEST_USER"),
		Password:       os.Getenv("POSTGRES_TEST_PASSWORD"),
		MaxConnections: 5,
	}
}

// newTestPostgres connects and migrates a test database
func newTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	cfg := testPostgresConfig(t)

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.URL(), "../../"+DefaultMigrationsPath); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return db
}
