package adapter

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/solana-scanner/internal/errors"
)

// ProfileFetcher downloads public wallet profile pages
type ProfileFetcher struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	maxBody   int64
	client    *http.Client
}

// NewProfileFetcher creates a fetcher for pages at baseURL+address
func NewProfileFetcher(baseURL, userAgent string, timeout time.Duration, maxBody int64) *ProfileFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxBody <= 0 {
		maxBody = 5 << 20
	}
	return &ProfileFetcher{
		baseURL:   baseURL,
		userAgent: userAgent,
		timeout:   timeout,
		maxBody:   maxBody,
		client:    &http.Client{Timeout: timeout},
	}
}

// ProfileURL returns the page URL for address
func (f *ProfileFetcher) ProfileURL(address string) string {
	return f.baseURL + url.PathEscape(address)
}

// FetchProfile returns the page HTML. Non-2xx responses are errors.
func (f *ProfileFetcher) FetchProfile(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ProfileURL(address), nil)
	if err != nil {
		return "", apperrors.NewInternalError("failed to build profile request", err)
	}
	f.setBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperrors.WrapTransport(ProviderProfile, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBody))
		return "", apperrors.NewProviderStatusError(ProviderProfile, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", apperrors.WrapTransport(ProviderProfile, err)
	}
	return string(body), nil
}

// setBrowserHeaders makes the request look like a desktop browser navigation.
// Without a realistic user agent the site serves a different page.
func (f *ProfileFetcher) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if u, err := url.Parse(f.baseURL); err == nil && u.Host != "" {
		req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")
	} else {
		req.Header.Set("Referer", strings.TrimRight(f.baseURL, "/"))
	}
}
