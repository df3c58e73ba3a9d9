package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/solana-scanner/internal/errors"
	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/ratelimit"
)

// clientKey identifies the caller for rate limiting
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return "client:" + strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "client:" + host
}

// RateLimitMiddleware rejects requests the checker denies with 429 and a
// Retry-After header. A failing checker admits the request.
func RateLimitMiddleware(checker ratelimit.Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := checker.Check(r.Context(), clientKey(r))
			if err != nil {
				logging.FromContext(r.Context()).WithError(err).Warn("Rate limiter unavailable, admitting request")
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				retryAfter := decision.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respondCategorized(w, apperrors.NewRateLimitError(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
