// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/ratelimit"
	"github.com/solana-scanner/internal/service"
	"github.com/solana-scanner/internal/types"
)

// InsightServiceInterface defines the service operations the API exposes
type InsightServiceInterface interface {
	Classify(ctx context.Context, address string) (*types.AddressClassification, error)
	Summary(ctx context.Context, address string) (*types.WalletTradeSummary, error)
	Profile(ctx context.Context, address string) (*types.WalletProfile, error)
	IngestWhaleAlert(ctx context.Context, msg service.AlertMessage) (*types.WhaleActivityEvent, bool, error)
	RecentWhaleEvents(ctx context.Context, limit int) ([]*types.WhaleActivityEvent, error)
	SaveWallet(ctx context.Context, wallet *types.SavedWallet) (*types.SavedWallet, error)
	DeleteSavedWallet(ctx context.Context, address string) error
	WhaleEvent(ctx context.Context, id string) (*types.WhaleActivityEvent, error)
	Stats() *service.InsightStats
}

// HealthCheck reports whether a backing dependency is reachable
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	insights   InsightServiceInterface
	limiter    ratelimit.Checker
	config     *ServerConfig
	checks     map[string]HealthCheck
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance. A nil limiter admits every request.
func NewServer(config *ServerConfig, insights InsightServiceInterface, limiter ratelimit.Checker) *Server {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	s := &Server{
		router:   mux.NewRouter(),
		insights: insights,
		limiter:  limiter,
		config:   config,
		checks:   make(map[string]HealthCheck),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Order matters: the logger must wrap recovery so panics are logged with their status
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(s.limiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Address endpoints
	api.HandleFunc("/addresses/{address}/classification", s.handleGetClassification).Methods("GET")
	api.HandleFunc("/wallets/{address}/summary", s.handleGetSummary).Methods("GET")
	api.HandleFunc("/wallets/{address}", s.handleGetProfile).Methods("GET")
	api.HandleFunc("/wallets/{address}/saved", s.handleSaveWallet).Methods("PUT")
	api.HandleFunc("/wallets/{address}/saved", s.handleDeleteSavedWallet).Methods("DELETE")

	// Whale alert endpoints
	api.HandleFunc("/alerts/whale", s.handleIngestWhaleAlert).Methods("POST")
	api.HandleFunc("/alerts/whale", s.handleListWhaleEvents).Methods("GET")
	api.HandleFunc("/alerts/whale/{id}", s.handleGetWhaleEvent).Methods("GET")
}

// AddHealthCheck registers a dependency checked by /health
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Handler returns the root handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests. Any failing dependency
// turns the answer into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "healthy", http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			logging.FromContext(r.Context()).WithError(err).WithField("dependency", name).
				Warn("Health check failed")
			deps[name] = "unavailable"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      "solana-scanner",
		"dependencies": deps,
	})
}

// handleStats reports lookup statistics and provider breaker states.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.insights.Stats())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
