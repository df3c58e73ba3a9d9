package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solana-scanner/internal/circuitbreaker"
	apperrors "github.com/solana-scanner/internal/errors"
	"github.com/solana-scanner/internal/storage"
	"github.com/solana-scanner/internal/types"
)

type fakeClassifier struct {
	verdict types.AddressClassification
	calls   atomic.Int32
}

func (f *fakeClassifier) Resolve(ctx context.Context, address string) (*types.AddressClassification, error) {
	f.calls.Add(1)
	v := f.verdict
	v.Address = address
	return &v, nil
}

type fakeScraper struct {
	summary *types.WalletTradeSummary
	calls   atomic.Int32
}

func (f *fakeScraper) Scrape(ctx context.Context, address string) *types.WalletTradeSummary {
	f.calls.Add(1)
	s := *f.summary
	s.Address = address
	return &s
}

type fakeSavedWallets struct {
	wallet  *types.SavedWallet
	err     error
	upserts []*types.SavedWallet
	deleted []string
}

func (f *fakeSavedWallets) GetByAddress(ctx context.Context, address string) (*types.SavedWallet, error) {
	return f.wallet, f.err
}

func (f *fakeSavedWallets) Upsert(ctx context.Context, wallet *types.SavedWallet) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, wallet)
	f.wallet = wallet
	return nil
}

func (f *fakeSavedWallets) Delete(ctx context.Context, address string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.deleted = append(f.deleted, address)
	existed := f.wallet != nil && f.wallet.Address == address
	f.wallet = nil
	return existed, nil
}

type memoryWhaleStore struct {
	mu     sync.Mutex
	events map[string]*types.WhaleActivityEvent
	order  []string
	limits []int
}

func newMemoryWhaleStore() *memoryWhaleStore {
	return &memoryWhaleStore{events: map[string]*types.WhaleActivityEvent{}}
}

func (m *memoryWhaleStore) Insert(ctx context.Context, event *types.WhaleActivityEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; ok {
		return false, nil
	}
	m.events[event.ID] = event
	m.order = append(m.order, event.ID)
	return true, nil
}

func (m *memoryWhaleStore) GetByID(ctx context.Context, id string) (*types.WhaleActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id], nil
}

func (m *memoryWhaleStore) Recent(ctx context.Context, limit int) ([]*types.WhaleActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	out := []*types.WhaleActivityEvent{}
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[m.order[i]])
	}
	return out, nil
}

func newTestCache(t *testing.T) *storage.CacheService {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := storage.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })
	return storage.NewCacheService(rc, 10*time.Minute, 2*time.Minute)
}

func walletVerdict(confidence types.Confidence) types.AddressClassification {
	return types.AddressClassification{Kind: types.KindWallet, Confidence: confidence, Source: types.SourceIndexedHoldings}
}

func TestInsightService_ClassifyCachesConfirmedOnly(t *testing.T) {
	tests := []struct {
		name       string
		confidence types.Confidence
		wantCalls  int32
	}{
		{"confirmed is cached", types.ConfidenceConfirmed, 1},
		{"inferred is recomputed", types.ConfidenceInferred, 2},
		{"default is recomputed", types.ConfidenceDefault, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := &fakeClassifier{verdict: walletVerdict(tt.confidence)}
			svc := NewWalletInsightService(InsightDeps{Classifier: classifier, Cache: newTestCache(t)})

			for i := 0; i < 2; i++ {
				verdict, err := svc.Classify(context.Background(), testAddress)
				require.NoError(t, err)
				assert.Equal(t, testAddress, verdict.Address)
				assert.Equal(t, tt.confidence, verdict.Confidence)
			}
			assert.Equal(t, tt.wantCalls, classifier.calls.Load())

			stats := svc.Stats().Lookups
			assert.Equal(t, int64(2), stats.TotalLookups)
			assert.Equal(t, int64(2-tt.wantCalls), stats.CacheHits)
			assert.Equal(t, int64(2), stats.BySource[types.SourceIndexedHoldings])
		})
	}
}

func TestInsightService_ClassifyRejectsMalformedAddress(t *testing.T) {
	classifier := &fakeClassifier{}
	svc := NewWalletInsightService(InsightDeps{Classifier: classifier})

	_, err := svc.Classify(context.Background(), "0xdeadbeef")

	require.Error(t, err)
	assert.True(t, apperrors.IsUserError(err))
	assert.Zero(t, classifier.calls.Load())
}

func TestInsightService_SummaryScrapesWalletsOnly(t *testing.T) {
	scraper := &fakeScraper{summary: &types.WalletTradeSummary{WinRate: "70%", ROI: "12%", WalletPage: true}}

	mint := &fakeClassifier{verdict: types.AddressClassification{
		Kind: types.KindTokenMint, Confidence: types.ConfidenceConfirmed, Source: types.SourceMintMetadata,
	}}
	summary, err := NewWalletInsightService(InsightDeps{Classifier: mint, Scraper: scraper}).
		Summary(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, types.Unknown, summary.WinRate)
	assert.Zero(t, scraper.calls.Load())

	wallet := &fakeClassifier{verdict: walletVerdict(types.ConfidenceConfirmed)}
	summary, err = NewWalletInsightService(InsightDeps{Classifier: wallet, Scraper: scraper}).
		Summary(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, "70%", summary.WinRate)
	assert.Equal(t, int32(1), scraper.calls.Load())
}

func TestInsightService_SummaryCache(t *testing.T) {
	cache := newTestCache(t)
	classifier := &fakeClassifier{verdict: walletVerdict(types.ConfidenceConfirmed)}

	ok := &fakeScraper{summary: &types.WalletTradeSummary{WinRate: "70%", ROI: "12%", WalletPage: true}}
	svc := NewWalletInsightService(InsightDeps{Classifier: classifier, Scraper: ok, Cache: cache})
	for i := 0; i < 3; i++ {
		_, err := svc.Summary(context.Background(), testAddress)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), ok.calls.Load())

	failed := &fakeScraper{summary: &types.WalletTradeSummary{WinRate: types.Unknown, ROI: types.Unknown, FetchFailed: true}}
	svc = NewWalletInsightService(InsightDeps{Classifier: classifier, Scraper: failed, Cache: newTestCache(t)})
	for i := 0; i < 2; i++ {
		_, err := svc.Summary(context.Background(), testAddress)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), failed.calls.Load(), "failed fetches must not be cached")
}

func TestInsightService_Profile(t *testing.T) {
	saved := &types.SavedWallet{Address: testAddress, Name: "Alpha", Tags: []string{"kol"}}
	svc := NewWalletInsightService(InsightDeps{
		Classifier: &fakeClassifier{verdict: walletVerdict(types.ConfidenceConfirmed)},
		Scraper:    &fakeScraper{summary: &types.WalletTradeSummary{WinRate: "70%", ROI: "12%", WalletPage: true}},
		Wallets:    &fakeSavedWallets{wallet: saved},
	})

	profile, err := svc.Profile(context.Background(), testAddress)

	require.NoError(t, err)
	assert.Equal(t, types.KindWallet, profile.Classification.Kind)
	require.NotNil(t, profile.Summary)
	assert.Equal(t, "70%", profile.Summary.WinRate)
	assert.Equal(t, saved, profile.SavedWallet)
}

func TestInsightService_ProfileMintHasNoSummary(t *testing.T) {
	scraper := &fakeScraper{summary: &types.WalletTradeSummary{}}
	svc := NewWalletInsightService(InsightDeps{
		Classifier: &fakeClassifier{verdict: types.AddressClassification{
			Kind: types.KindTokenMint, Confidence: types.ConfidenceConfirmed, Source: types.SourceRPCAccount,
		}},
		Scraper: scraper,
		Wallets: &fakeSavedWallets{},
	})

	profile, err := svc.Profile(context.Background(), testAddress)

	require.NoError(t, err)
	assert.Nil(t, profile.Summary)
	assert.Nil(t, profile.SavedWallet)
	assert.Zero(t, scraper.calls.Load())
}

func TestInsightService_ProfileSurvivesSavedWalletError(t *testing.T) {
	svc := NewWalletInsightService(InsightDeps{
		Classifier: &fakeClassifier{verdict: walletVerdict(types.ConfidenceDefault)},
		Wallets:    &fakeSavedWallets{err: errors.New("connection refused")},
	})

	profile, err := svc.Profile(context.Background(), testAddress)

	require.NoError(t, err)
	require.NotNil(t, profile.Classification)
	assert.Equal(t, types.KindWallet, profile.Classification.Kind)
	assert.Nil(t, profile.SavedWallet)
}

func TestInsightService_SaveWallet(t *testing.T) {
	cache := newTestCache(t)
	classifier := &fakeClassifier{verdict: walletVerdict(types.ConfidenceConfirmed)}
	wallets := &fakeSavedWallets{}
	svc := NewWalletInsightService(InsightDeps{Classifier: classifier, Cache: cache, Wallets: wallets})

	_, err := svc.Classify(context.Background(), testAddress)
	require.NoError(t, err)

	saved, err := svc.SaveWallet(context.Background(), &types.SavedWallet{Address: testAddress, Name: "  Alpha  "})
	require.NoError(t, err)
	assert.Equal(t, "Alpha", saved.Name)
	require.Len(t, wallets.upserts, 1)

	cached, err := cache.GetClassification(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Nil(t, cached, "saving a wallet drops its cached verdict")
}

func TestInsightService_SaveWalletRejections(t *testing.T) {
	tests := []struct {
		name   string
		wallet types.SavedWallet
		code   string
	}{
		{"bad address", types.SavedWallet{Address: "0xabc", Name: "Alpha"}, "INVALID_ADDRESS"},
		{"missing name", types.SavedWallet{Address: testAddress, Name: " "}, "INVALID_PARAMETER"},
		{"long name", types.SavedWallet{Address: testAddress, Name: strings.Repeat("a", 101)}, "INVALID_PARAMETER"},
		{"empty tag", types.SavedWallet{Address: testAddress, Name: "Alpha", Tags: []string{"kol", ""}}, "INVALID_PARAMETER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallets := &fakeSavedWallets{}
			svc := NewWalletInsightService(InsightDeps{Wallets: wallets})

			_, err := svc.SaveWallet(context.Background(), &tt.wallet)

			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.Categorize(err).Code)
			assert.Empty(t, wallets.upserts)
		})
	}
}

func TestInsightService_DeleteSavedWallet(t *testing.T) {
	wallets := &fakeSavedWallets{wallet: &types.SavedWallet{Address: testAddress, Name: "Alpha"}}
	svc := NewWalletInsightService(InsightDeps{Wallets: wallets, Cache: newTestCache(t)})

	require.NoError(t, svc.DeleteSavedWallet(context.Background(), testAddress))

	err := svc.DeleteSavedWallet(context.Background(), testAddress)
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryNotFound, apperrors.Categorize(err).Category)

	wallets.err = errors.New("connection refused")
	err = svc.DeleteSavedWallet(context.Background(), testAddress)
	assert.Equal(t, apperrors.CategoryDatabase, apperrors.Categorize(err).Category)
}

func TestInsightService_WhaleEvent(t *testing.T) {
	store := newMemoryWhaleStore()
	svc := NewWalletInsightService(InsightDeps{Whales: store, Parser: newTestWhaleParser()})
	event, _, err := svc.IngestWhaleAlert(context.Background(), AlertMessage{Ref: "chat:7", Text: labubuAlert})
	require.NoError(t, err)
	require.NotNil(t, event)

	got, err := svc.WhaleEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, event, got)

	_, err = svc.WhaleEvent(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, apperrors.CategoryNotFound, apperrors.Categorize(err).Category)

	_, err = svc.WhaleEvent(context.Background(), "not-a-uuid")
	assert.Equal(t, "INVALID_PARAMETER", apperrors.Categorize(err).Code)
}

func TestInsightService_StatsIncludeProviders(t *testing.T) {
	breakers := circuitbreaker.NewManager(circuitbreaker.ProviderConfig)
	breakers.Get("helius-holdings")
	svc := NewWalletInsightService(InsightDeps{Classifier: &fakeClassifier{}, Breakers: breakers})

	stats := svc.Stats()

	require.NotNil(t, stats.Lookups)
	require.Contains(t, stats.Providers, "helius-holdings")
	assert.Equal(t, circuitbreaker.StateClosed, stats.Providers["helius-holdings"].State)

	assert.Empty(t, NewWalletInsightService(InsightDeps{}).Stats().Providers)
}

func TestInsightService_IngestWhaleAlert(t *testing.T) {
	store := newMemoryWhaleStore()
	svc := NewWalletInsightService(InsightDeps{Whales: store, Parser: newTestWhaleParser()})
	msg := AlertMessage{Ref: "chat:42", Text: labubuAlert}

	event, inserted, err := svc.IngestWhaleAlert(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, inserted)

	again, inserted, err := svc.IngestWhaleAlert(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, event.ID, again.ID)

	none, inserted, err := svc.IngestWhaleAlert(context.Background(), AlertMessage{Text: "gm"})
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.False(t, inserted)

	events, err := svc.RecentWhaleEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestInsightService_RecentWhaleEventsClampsLimit(t *testing.T) {
	store := newMemoryWhaleStore()
	svc := NewWalletInsightService(InsightDeps{Whales: store})

	for _, limit := range []int{-1, 10, 5000} {
		_, err := svc.RecentWhaleEvents(context.Background(), limit)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{defaultWhaleListLimit, 10, maxWhaleListLimit}, store.limits)
}
