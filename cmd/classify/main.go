// Package main classifies one Solana address and prints the verdict and,
// for wallets, the scraped trading summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/solana-scanner/internal/adapter"
	"github.com/solana-scanner/internal/circuitbreaker"
	"github.com/solana-scanner/internal/config"
	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/ratelimit"
	"github.com/solana-scanner/internal/service"
	"github.com/solana-scanner/internal/types"
)

func main() {
	var (
		timeout  = flag.Duration("timeout", 60*time.Second, "Overall deadline")
		noScrape = flag.Bool("no-summary", false, "Skip the profile page summary")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: classify [flags] <address>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	address := flag.Arg(0)

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.FormatText)
	// stdout carries the JSON output
	logging.GetGlobalLogger().SetOutput(os.Stderr)

	helius := adapter.NewHeliusClient(cfg.Helius.APIKey, cfg.Helius.BaseURL)
	fetcher := adapter.NewProfileFetcher(cfg.Scraper.ProfileBaseURL, cfg.Scraper.UserAgent,
		cfg.Scraper.Timeout, cfg.Scraper.MaxBodyBytes)
	scraper := service.NewWalletMetricsScraper(fetcher)

	providerLimiter := ratelimit.NewLocalLimiter(cfg.RateLimit.ProviderRPS, cfg.RateLimit.ProviderRPS)
	defer providerLimiter.Close()

	deps := service.ResolverDeps{
		Accounts: adapter.NewSolanaRPC(cfg.Helius.RPCURL),
		Pages:    scraper,
		Limiter:  providerLimiter,
		Breakers: circuitbreaker.NewManager(circuitbreaker.ProviderConfig),
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	verdict, err := resolver.Resolve(ctx, address)
	if err != nil {
		logging.WithError(err).Error("Classification failed")
		os.Exit(1)
	}

	out := types.WalletProfile{Classification: verdict}
	if verdict.Kind == types.KindWallet && !*noScrape {
		out.Summary = scraper.Scrape(ctx, address)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logging.WithError(err).Fatal("Failed to write output")
	}
}
