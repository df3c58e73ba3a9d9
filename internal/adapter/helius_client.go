package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/solana-scanner/internal/errors"
)

// Provider names used for circuit breakers, rate limit keys and logs
const (
	ProviderHoldings = "helius-holdings"
	ProviderMetadata = "helius-metadata"
	ProviderRPC      = "solana-rpc"
	ProviderProfile  = "profile-page"
)

const maxAPIBodyBytes = 4 << 20

// HeliusClient talks to the indexed token holdings and mint metadata endpoints
type HeliusClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHeliusClient creates a client. An empty apiKey yields a disabled client.
func NewHeliusClient(apiKey, baseURL string) *HeliusClient {
	return &HeliusClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether an API key is configured
func (c *HeliusClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// balancesResponse is the subset of the balances payload the resolver needs
type balancesResponse struct {
	Tokens []json.RawMessage `json:"tokens"`
	Error  json.RawMessage   `json:"error,omitempty"`
}

// TokenHoldings returns how many token balances the indexer holds for address.
// An API-reported error body is returned as a shape error.
func (c *HeliusClient) TokenHoldings(ctx context.Context, address string) (int, error) {
	if !c.Enabled() {
		return 0, apperrors.NewProviderShapeError(ProviderHoldings, "api key not configured")
	}

	endpoint := fmt.Sprintf("%s/addresses/%s/balances?api-key=%s",
		c.baseURL, url.PathEscape(address), url.QueryEscape(c.apiKey))

	body, err := c.do(ctx, ProviderHoldings, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	var resp balancesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, apperrors.NewProviderShapeError(ProviderHoldings, "invalid json: "+err.Error())
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return 0, apperrors.NewProviderShapeError(ProviderHoldings, "api error: "+string(resp.Error))
	}
	if resp.Tokens == nil {
		return 0, apperrors.NewProviderShapeError(ProviderHoldings, "missing tokens field")
	}
	return len(resp.Tokens), nil
}

type metadataRequest struct {
	MintAccounts []string `json:"mintAccounts"`
}

type metadataEntry struct {
	Account         string          `json:"account"`
	OnChainMetadata json.RawMessage `json:"onChainMetadata"`
}

// HasMintMetadata reports whether the metadata endpoint knows address as a mint
// with on-chain metadata.
func (c *HeliusClient) HasMintMetadata(ctx context.Context, address string) (bool, error) {
	if !c.Enabled() {
		return false, apperrors.NewProviderShapeError(ProviderMetadata, "api key not configured")
	}

	endpoint := fmt.Sprintf("%s/token-metadata?api-key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	payload, err := json.Marshal(metadataRequest{MintAccounts: []string{address}})
	if err != nil {
		return false, apperrors.NewInternalError("failed to encode metadata request", err)
	}

	body, err := c.do(ctx, ProviderMetadata, http.MethodPost, endpoint, payload)
	if err != nil {
		return false, err
	}

	var entries []metadataEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return false, apperrors.NewProviderShapeError(ProviderMetadata, "expected a list: "+err.Error())
	}
	for _, e := range entries {
		if hasValue(e.OnChainMetadata) {
			return true, nil
		}
	}
	return false, nil
}

func hasValue(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != "{}"
}

// do performs one request and returns the body of a 2xx response
func (c *HeliusClient) do(ctx context.Context, provider, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.WrapTransport(provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxAPIBodyBytes))
		return nil, apperrors.NewProviderStatusError(provider, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBodyBytes))
	if err != nil {
		return nil, apperrors.WrapTransport(provider, err)
	}
	return body, nil
}
