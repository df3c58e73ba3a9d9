package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solana-scanner/internal/circuitbreaker"
	apperrors "github.com/solana-scanner/internal/errors"
	"github.com/solana-scanner/internal/ratelimit"
	"github.com/solana-scanner/internal/service"
	"github.com/solana-scanner/internal/types"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

// mockInsightService is a configurable InsightServiceInterface
type mockInsightService struct {
	classifyFunc func(ctx context.Context, address string) (*types.AddressClassification, error)
	summaryFunc  func(ctx context.Context, address string) (*types.WalletTradeSummary, error)
	profileFunc  func(ctx context.Context, address string) (*types.WalletProfile, error)
	ingestFunc   func(ctx context.Context, msg service.AlertMessage) (*types.WhaleActivityEvent, bool, error)
	recentFunc   func(ctx context.Context, limit int) ([]*types.WhaleActivityEvent, error)
	saveFunc     func(ctx context.Context, wallet *types.SavedWallet) (*types.SavedWallet, error)
	deleteFunc   func(ctx context.Context, address string) error
	eventFunc    func(ctx context.Context, id string) (*types.WhaleActivityEvent, error)
}

func (m *mockInsightService) Classify(ctx context.Context, address string) (*types.AddressClassification, error) {
	if m.classifyFunc != nil {
		return m.classifyFunc(ctx, address)
	}
	if !service.IsValidAddress(address) {
		return nil, apperrors.NewInvalidAddressError(address)
	}
	return &types.AddressClassification{
		Address:    address,
		Kind:       types.KindWallet,
		Confidence: types.ConfidenceConfirmed,
		Source:     types.SourceIndexedHoldings,
	}, nil
}

func (m *mockInsightService) Summary(ctx context.Context, address string) (*types.WalletTradeSummary, error) {
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx, address)
	}
	summary := types.NewUnknownSummary(address)
	summary.WinRate = "61.5%"
	summary.WalletPage = true
	return summary, nil
}

func (m *mockInsightService) Profile(ctx context.Context, address string) (*types.WalletProfile, error) {
	if m.profileFunc != nil {
		return m.profileFunc(ctx, address)
	}
	verdict, err := m.Classify(ctx, address)
	if err != nil {
		return nil, err
	}
	summary, _ := m.Summary(ctx, address)
	return &types.WalletProfile{Classification: verdict, Summary: summary}, nil
}

func (m *mockInsightService) IngestWhaleAlert(ctx context.Context, msg service.AlertMessage) (*types.WhaleActivityEvent, bool, error) {
	if m.ingestFunc != nil {
		return m.ingestFunc(ctx, msg)
	}
	event := service.NewWhaleAlertParser(nil).ParseMessage(msg)
	return event, event != nil, nil
}

func (m *mockInsightService) RecentWhaleEvents(ctx context.Context, limit int) ([]*types.WhaleActivityEvent, error) {
	if m.recentFunc != nil {
		return m.recentFunc(ctx, limit)
	}
	return []*types.WhaleActivityEvent{}, nil
}

func (m *mockInsightService) SaveWallet(ctx context.Context, wallet *types.SavedWallet) (*types.SavedWallet, error) {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, wallet)
	}
	return wallet, nil
}

func (m *mockInsightService) DeleteSavedWallet(ctx context.Context, address string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, address)
	}
	return nil
}

func (m *mockInsightService) WhaleEvent(ctx context.Context, id string) (*types.WhaleActivityEvent, error) {
	if m.eventFunc != nil {
		return m.eventFunc(ctx, id)
	}
	return nil, apperrors.NewNotFoundError("whale event", id)
}

func (m *mockInsightService) Stats() *service.InsightStats {
	breakers := circuitbreaker.NewManager(circuitbreaker.ProviderConfig)
	breakers.Get("solana-rpc")
	return &service.InsightStats{
		Lookups:   service.NewLookupMonitor(0, 0).Stats(),
		Providers: breakers.AllStats(),
	}
}

// Helper function to create test server
func createTestServer() *Server {
	return createTestServerWith(&mockInsightService{}, nil)
}

func createTestServerWith(insights InsightServiceInterface, limiter ratelimit.Checker) *Server {
	config := &ServerConfig{
		Host:         "localhost",
		Port:         "8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return NewServer(config, insights, limiter)
}

// TestHealthEndpoint tests the health check endpoint
func TestHealthEndpoint(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", response["status"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID to be set")
	}
}

func TestHealthEndpoint_Degraded(t *testing.T) {
	server := createTestServer()
	server.AddHealthCheck("redis", func(ctx context.Context) error { return nil })
	server.AddHealthCheck("postgres", func(ctx context.Context) error { return errors.New("connection refused") })

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}
	var response struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != "degraded" {
		t.Errorf("Expected status 'degraded', got '%s'", response.Status)
	}
	if response.Dependencies["postgres"] != "unavailable" || response.Dependencies["redis"] != "ok" {
		t.Errorf("Unexpected dependencies: %v", response.Dependencies)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var stats service.InsightStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.Lookups == nil {
		t.Error("Expected lookup statistics")
	}
	rpc, ok := stats.Providers["solana-rpc"]
	if !ok {
		t.Fatalf("Expected solana-rpc breaker stats, got %v", stats.Providers)
	}
	if rpc.State != circuitbreaker.StateClosed {
		t.Errorf("Expected closed breaker, got %s", rpc.State)
	}
}

// TestCORSHeaders tests that CORS headers are properly set
func TestCORSHeaders(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Expected CORS headers to be set")
	}
}

func TestCompression(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest("GET", "/api/addresses/"+testWallet+"/classification", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Expected gzip encoding, got %q", w.Header().Get("Content-Encoding"))
	}
	gz, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	body, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	var verdict types.AddressClassification
	if err := json.Unmarshal(body, &verdict); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if verdict.Address != testWallet {
		t.Errorf("Expected address %s, got %s", testWallet, verdict.Address)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(1, 1)
	server := createTestServerWith(&mockInsightService{}, limiter)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/alerts/whale", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", w.Code)
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("Expected RATE_LIMIT_EXCEEDED, got %s", resp.Error.Code)
	}

	// health checks are never limited
	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	hw := httptest.NewRecorder()
	server.Handler().ServeHTTP(hw, req)
	if hw.Code != http.StatusOK {
		t.Errorf("Expected health to bypass limiter, got %d", hw.Code)
	}
}

func TestRecovery(t *testing.T) {
	server := createTestServerWith(&mockInsightService{
		classifyFunc: func(ctx context.Context, address string) (*types.AddressClassification, error) {
			panic("boom")
		},
	}, nil)

	req := httptest.NewRequest("GET", "/api/addresses/"+testWallet+"/classification", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "198.51.100.2:443", "", "client:198.51.100.2"},
		{"forwarded first hop", "10.0.0.1:443", "198.51.100.9, 10.0.0.1", "client:198.51.100.9"},
		{"no port", "198.51.100.2", "", "client:198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientKey(req); got != tt.want {
				t.Errorf("clientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
