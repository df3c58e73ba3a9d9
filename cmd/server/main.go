package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solana-scanner/internal/adapter"
	"github.com/solana-scanner/internal/api"
	"github.com/solana-scanner/internal/circuitbreaker"
	"github.com/solana-scanner/internal/config"
	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/ratelimit"
	"github.com/solana-scanner/internal/service"
	"github.com/solana-scanner/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	logger.Info("Database connections established")

	apiLimiter, err := ratelimit.NewChecker(&ratelimit.Config{
		Backend:           cfg.RateLimit.Backend,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		Redis:             redisCache.Client(),
		Window:            cfg.RateLimit.Window,
		WindowLimit:       cfg.RateLimit.WindowLimit,
		KeyPrefix:         "ratelimit:api",
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create API rate limiter")
	}
	defer apiLimiter.Close()

	providerLimiter := ratelimit.NewLocalLimiter(cfg.RateLimit.ProviderRPS, cfg.RateLimit.ProviderRPS)
	defer providerLimiter.Close()

	logger.Info("Initializing services...")

	helius := adapter.NewHeliusClient(cfg.Helius.APIKey, cfg.Helius.BaseURL)
	if !helius.Enabled() {
		logger.Warn("HELIUS_API_KEY not set - indexed holdings and mint metadata tiers disabled")
	}
	fetcher := adapter.NewProfileFetcher(cfg.Scraper.ProfileBaseURL, cfg.Scraper.UserAgent,
		cfg.Scraper.Timeout, cfg.Scraper.MaxBodyBytes)
	scraper := service.NewWalletMetricsScraper(fetcher)

	breakers := circuitbreaker.NewManager(circuitbreaker.ProviderConfig)
	deps := service.ResolverDeps{
		Accounts: adapter.NewSolanaRPC(cfg.Helius.RPCURL),
		Pages:    scraper,
		Limiter:  providerLimiter,
		Breakers: breakers,
	}
	if helius.Enabled() {
		deps.Holdings = helius
		deps.Metadata = helius
	}
	resolver := service.NewAddressResolver(deps, service.ResolverConfig{
		TierTimeout:   cfg.Resolver.TierTimeout,
		Parallel:      cfg.Resolver.Parallel,
		HTMLHeuristic: cfg.Resolver.HTMLHeuristic,
		MaxAttempts:   cfg.Resolver.MaxAttempts,
	})

	insights := service.NewWalletInsightService(service.InsightDeps{
		Classifier: resolver,
		Scraper:    scraper,
		Cache:      storage.NewCacheService(redisCache, cfg.Cache.ClassificationTTL, cfg.Cache.SummaryTTL),
		Wallets:    storage.NewSavedWalletRepository(postgres),
		Whales:     storage.NewWhaleEventRepository(postgres),
		Parser:     service.NewWhaleAlertParser(cfg.Whale.KnownHosts),
		Breakers:   breakers,
	})

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	server := api.NewServer(serverConfig, insights, apiLimiter)
	server.AddHealthCheck("postgres", postgres.Ping)
	server.AddHealthCheck("redis", redisCache.Ping)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
