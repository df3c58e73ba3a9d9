package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solana-scanner/internal/circuitbreaker"
	apperrors "github.com/solana-scanner/internal/errors"
	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/storage"
	"github.com/solana-scanner/internal/types"
)

const (
	defaultWhaleListLimit = 50
	maxWhaleListLimit     = 200
	maxWalletNameLength   = 100
)

// AddressClassifier resolves an address to a wallet or token mint verdict
type AddressClassifier interface {
	Resolve(ctx context.Context, address string) (*types.AddressClassification, error)
}

// SummaryScraper produces a trading summary for a wallet address
type SummaryScraper interface {
	Scrape(ctx context.Context, address string) *types.WalletTradeSummary
}

// InsightCache stores verdicts and summaries between requests
type InsightCache interface {
	GetClassification(ctx context.Context, address string) (*storage.CachedClassification, error)
	SetClassification(ctx context.Context, classification *types.AddressClassification) error
	GetSummary(ctx context.Context, address string) (*storage.CachedSummary, error)
	SetSummary(ctx context.Context, summary *types.WalletTradeSummary) error
	InvalidateAddress(ctx context.Context, address string) error
}

// SavedWalletStore keeps curated metadata for addresses. A lookup that finds
// nothing returns nil and no error.
type SavedWalletStore interface {
	GetByAddress(ctx context.Context, address string) (*types.SavedWallet, error)
	Upsert(ctx context.Context, wallet *types.SavedWallet) error
	Delete(ctx context.Context, address string) (bool, error)
}

// WhaleEventStore persists parsed whale events
type WhaleEventStore interface {
	Insert(ctx context.Context, event *types.WhaleActivityEvent) (bool, error)
	GetByID(ctx context.Context, id string) (*types.WhaleActivityEvent, error)
	Recent(ctx context.Context, limit int) ([]*types.WhaleActivityEvent, error)
}

// InsightStats is the service health snapshot: lookup statistics plus the
// state of each provider's circuit breaker.
type InsightStats struct {
	Lookups   *LookupStats                     `json:"lookups"`
	Providers map[string]*circuitbreaker.Stats `json:"providers"`
}

// WalletInsightService composes classification, scraping, caching and
// curated metadata into the answers served by the API.
type WalletInsightService struct {
	classifier AddressClassifier
	scraper    SummaryScraper
	cache      InsightCache
	wallets    SavedWalletStore
	whales     WhaleEventStore
	parser     *WhaleAlertParser
	monitor    *LookupMonitor
	breakers   *circuitbreaker.Manager
}

// InsightDeps are the collaborators of WalletInsightService.
// Cache, Wallets, Whales and Breakers are optional.
type InsightDeps struct {
	Classifier AddressClassifier
	Scraper    SummaryScraper
	Cache      InsightCache
	Wallets    SavedWalletStore
	Whales     WhaleEventStore
	Parser     *WhaleAlertParser
	Monitor    *LookupMonitor
	Breakers   *circuitbreaker.Manager
}

// NewWalletInsightService creates a new insight service
func NewWalletInsightService(deps InsightDeps) *WalletInsightService {
	if deps.Parser == nil {
		deps.Parser = NewWhaleAlertParser(nil)
	}
	if deps.Monitor == nil {
		deps.Monitor = NewLookupMonitor(0, 0)
	}
	return &WalletInsightService{
		classifier: deps.Classifier,
		scraper:    deps.Scraper,
		cache:      deps.Cache,
		wallets:    deps.Wallets,
		whales:     deps.Whales,
		parser:     deps.Parser,
		monitor:    deps.Monitor,
		breakers:   deps.Breakers,
	}
}

// Classify returns the verdict for address. Confirmed verdicts are cached;
// weaker ones are recomputed on every call.
func (s *WalletInsightService) Classify(ctx context.Context, address string) (*types.AddressClassification, error) {
	if !IsValidAddress(address) {
		return nil, apperrors.NewInvalidAddressError(address)
	}
	logger := logging.FromContext(ctx).WithField("address", address)
	start := time.Now()

	if s.cache != nil {
		cached, err := s.cache.GetClassification(ctx, address)
		if err != nil {
			logger.WithError(err).Warn("Classification cache read failed")
		} else if cached != nil {
			s.monitor.Record(time.Since(start), true, cached.Classification.Source)
			return cached.Classification, nil
		}
	}

	verdict, err := s.classifier.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}
	s.monitor.Record(time.Since(start), false, verdict.Source)

	if s.cache != nil && verdict.Confidence == types.ConfidenceConfirmed {
		if err := s.cache.SetClassification(ctx, verdict); err != nil {
			logger.WithError(err).Warn("Classification cache write failed")
		}
	}
	return verdict, nil
}

// Stats reports lookup statistics and provider breaker states
func (s *WalletInsightService) Stats() *InsightStats {
	stats := &InsightStats{
		Lookups:   s.monitor.Stats(),
		Providers: map[string]*circuitbreaker.Stats{},
	}
	if s.breakers != nil {
		stats.Providers = s.breakers.AllStats()
	}
	return stats
}

// Summary returns the trading summary for address. Addresses that do not
// classify as wallets get an empty summary without a page fetch.
func (s *WalletInsightService) Summary(ctx context.Context, address string) (*types.WalletTradeSummary, error) {
	verdict, err := s.Classify(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.summaryFor(ctx, verdict), nil
}

// Profile returns classification, summary and saved metadata for address
func (s *WalletInsightService) Profile(ctx context.Context, address string) (*types.WalletProfile, error) {
	verdict, err := s.Classify(ctx, address)
	if err != nil {
		return nil, err
	}

	profile := &types.WalletProfile{Classification: verdict}
	if verdict.IsWallet() {
		profile.Summary = s.summaryFor(ctx, verdict)
	}

	if s.wallets != nil {
		saved, err := s.wallets.GetByAddress(ctx, address)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("address", address).
				Warn("Saved wallet lookup failed, omitting from profile")
		} else {
			profile.SavedWallet = saved
		}
	}
	return profile, nil
}

// SaveWallet creates or replaces the curated metadata for wallet.Address and
// drops the address's cached verdict and summary.
func (s *WalletInsightService) SaveWallet(ctx context.Context, wallet *types.SavedWallet) (*types.SavedWallet, error) {
	if !IsValidAddress(wallet.Address) {
		return nil, apperrors.NewInvalidAddressError(wallet.Address)
	}
	wallet.Name = strings.TrimSpace(wallet.Name)
	switch {
	case wallet.Name == "":
		return nil, apperrors.NewInvalidParameterError("name", "is required")
	case len(wallet.Name) > maxWalletNameLength:
		return nil, apperrors.NewInvalidParameterError("name", "must be at most 100 characters")
	}
	for _, tag := range wallet.Tags {
		if strings.TrimSpace(tag) == "" {
			return nil, apperrors.NewInvalidParameterError("tags", "must not contain empty tags")
		}
	}
	if s.wallets == nil {
		return nil, apperrors.NewInternalError("saved wallets are not configured", nil)
	}

	if err := s.wallets.Upsert(ctx, wallet); err != nil {
		return nil, apperrors.NewDatabaseError("upsert saved wallet", err)
	}
	s.invalidate(ctx, wallet.Address)
	return wallet, nil
}

// DeleteSavedWallet removes the curated metadata for address
func (s *WalletInsightService) DeleteSavedWallet(ctx context.Context, address string) error {
	if !IsValidAddress(address) {
		return apperrors.NewInvalidAddressError(address)
	}
	if s.wallets == nil {
		return apperrors.NewNotFoundError("saved wallet", address)
	}

	deleted, err := s.wallets.Delete(ctx, address)
	if err != nil {
		return apperrors.NewDatabaseError("delete saved wallet", err)
	}
	if !deleted {
		return apperrors.NewNotFoundError("saved wallet", address)
	}
	s.invalidate(ctx, address)
	return nil
}

func (s *WalletInsightService) invalidate(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAddress(ctx, address); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("address", address).
			Warn("Cache invalidation failed")
	}
}

func (s *WalletInsightService) summaryFor(ctx context.Context, verdict *types.AddressClassification) *types.WalletTradeSummary {
	address := verdict.Address
	if !verdict.IsWallet() || s.scraper == nil {
		return types.NewUnknownSummary(address)
	}
	logger := logging.FromContext(ctx).WithField("address", address)

	if s.cache != nil {
		cached, err := s.cache.GetSummary(ctx, address)
		if err != nil {
			logger.WithError(err).Warn("Summary cache read failed")
		} else if cached != nil {
			return cached.Summary
		}
	}

	summary := s.scraper.Scrape(ctx, address)
	logger.WithFields(map[string]interface{}{
		"fetchFailed": summary.FetchFailed,
		"hasMetrics":  summary.HasMetrics(),
	}).Debug("Wallet summary scraped")
	if s.cache != nil && !summary.FetchFailed {
		if err := s.cache.SetSummary(ctx, summary); err != nil {
			logger.WithError(err).Warn("Summary cache write failed")
		}
	}
	return summary
}

// IngestWhaleAlert parses an alert and stores the event. A message that is
// not a whale alert returns a nil event and no error.
func (s *WalletInsightService) IngestWhaleAlert(ctx context.Context, msg AlertMessage) (*types.WhaleActivityEvent, bool, error) {
	event := s.parser.ParseMessage(msg)
	if event == nil {
		return nil, false, nil
	}
	if s.whales == nil {
		return event, false, nil
	}

	inserted, err := s.whales.Insert(ctx, event)
	if err != nil {
		return nil, false, apperrors.NewDatabaseError("insert whale event", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"event_id": event.ID,
		"token":    event.Token,
		"impact":   event.Impact,
		"inserted": inserted,
	}).Info("Whale alert ingested")
	return event, inserted, nil
}

// WhaleEvent returns one stored event by ID
func (s *WalletInsightService) WhaleEvent(ctx context.Context, id string) (*types.WhaleActivityEvent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewInvalidParameterError("id", "must be a UUID")
	}
	if s.whales == nil {
		return nil, apperrors.NewNotFoundError("whale event", id)
	}

	event, err := s.whales.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get whale event", err)
	}
	if event == nil {
		return nil, apperrors.NewNotFoundError("whale event", id)
	}
	return event, nil
}

// RecentWhaleEvents lists stored events, newest first
func (s *WalletInsightService) RecentWhaleEvents(ctx context.Context, limit int) ([]*types.WhaleActivityEvent, error) {
	switch {
	case limit <= 0:
		limit = defaultWhaleListLimit
	case limit > maxWhaleListLimit:
		limit = maxWhaleListLimit
	}
	if s.whales == nil {
		return []*types.WhaleActivityEvent{}, nil
	}

	events, err := s.whales.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list whale events", err)
	}
	return events, nil
}
