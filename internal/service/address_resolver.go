package service

import (
	"context"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/solana-scanner/internal/adapter"
	"github.com/solana-scanner/internal/circuitbreaker"
	apperrors "github.com/solana-scanner/internal/errors"
	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/ratelimit"
	"github.com/solana-scanner/internal/retry"
	"github.com/solana-scanner/internal/types"
)

const (
	resolverName   = "resolver"
	minLimiterWait = 10 * time.Millisecond
)

var solanaAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// IsValidAddress reports whether address has the shape of a base58 Solana key
func IsValidAddress(address string) bool {
	return solanaAddressRe.MatchString(address)
}

// HoldingsLookup counts the token balances an indexer holds for an address
type HoldingsLookup interface {
	TokenHoldings(ctx context.Context, address string) (int, error)
}

// MintMetadataLookup reports whether an address has on-chain mint metadata
type MintMetadataLookup interface {
	HasMintMetadata(ctx context.Context, address string) (bool, error)
}

// AccountLookup reads parsed account info over RPC
type AccountLookup interface {
	AccountInfo(ctx context.Context, address string) (*adapter.AccountInfo, error)
}

// PageInspector applies the profile page gates to an address
type PageInspector interface {
	Inspect(ctx context.Context, address string) (PageKind, error)
}

// ResolverDeps are the collaborators of the resolver. A nil lookup disables its tier.
type ResolverDeps struct {
	Holdings HoldingsLookup
	Metadata MintMetadataLookup
	Accounts AccountLookup
	Pages    PageInspector
	Limiter  ratelimit.Checker
	Breakers *circuitbreaker.Manager
}

// ResolverConfig tunes the resolver
type ResolverConfig struct {
	TierTimeout   time.Duration
	Parallel      bool
	HTMLHeuristic bool
	MaxAttempts   int
}

// DefaultResolverConfig returns sequential single-attempt settings
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		TierTimeout:   8 * time.Second,
		HTMLHeuristic: true,
		MaxAttempts:   1,
	}
}

// AddressResolver decides whether an address is a wallet or a token mint.
// Tiers run in priority order and the first confident verdict wins.
type AddressResolver struct {
	deps  ResolverDeps
	cfg   ResolverConfig
	retry *retry.RetryConfig
	group singleflight.Group
}

// NewAddressResolver creates a resolver
func NewAddressResolver(deps ResolverDeps, cfg ResolverConfig) *AddressResolver {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Unlimited{}
	}
	if deps.Breakers == nil {
		deps.Breakers = circuitbreaker.NewManager(circuitbreaker.ProviderConfig)
	}
	if cfg.TierTimeout <= 0 {
		cfg.TierTimeout = DefaultResolverConfig().TierTimeout
	}

	retryCfg := retry.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.MaxAttempts
	}
	retryCfg.Retryable = apperrors.IsRetryable

	return &AddressResolver{deps: deps, cfg: cfg, retry: retryCfg}
}

// tierResult is one tier's answer; ok is false when the tier was inconclusive
type tierResult struct {
	kind       types.AddressKind
	confidence types.Confidence
	source     types.ClassificationSource
	ok         bool
}

type tierFunc func(ctx context.Context, address string) tierResult

// Resolve classifies address. A malformed address is rejected before any
// network call. Provider failures fall through to the next tier and end at a
// Wallet/Default verdict. A caller whose context ends first gets a timeout
// error while the shared lookup carries on for the other callers.
func (r *AddressResolver) Resolve(ctx context.Context, address string) (*types.AddressClassification, error) {
	if !IsValidAddress(address) {
		return &types.AddressClassification{
			Address:    address,
			Kind:       types.KindUnknown,
			Confidence: types.ConfidenceDefault,
			Source:     types.SourceValidation,
		}, apperrors.NewInvalidAddressError(address)
	}

	// Shared work must not be cut short by the first caller going away
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(address, func() (interface{}, error) {
		return r.resolve(shared, address), nil
	})

	select {
	case res := <-ch:
		verdict := *res.Val.(*types.AddressClassification)
		return &verdict, nil
	case <-ctx.Done():
		return nil, apperrors.WrapTransport(resolverName, ctx.Err())
	}
}

func (r *AddressResolver) resolve(ctx context.Context, address string) *types.AddressClassification {
	logger := logging.FromContext(ctx).WithField("address", address)

	var res tierResult
	if r.cfg.Parallel {
		res = r.firstConfidentParallel(ctx, address, r.providerTiers())
	} else {
		res = r.firstConfident(ctx, address, r.providerTiers())
	}
	if !res.ok {
		res = r.firstConfident(ctx, address, []tierFunc{r.htmlTier})
	}
	if !res.ok {
		res = tierResult{kind: types.KindWallet, confidence: types.ConfidenceDefault, source: types.SourceDefault, ok: true}
	}

	logger.WithFields(map[string]interface{}{
		"kind":       res.kind,
		"confidence": res.confidence,
		"source":     res.source,
	}).Debug("Address classified")

	return &types.AddressClassification{
		Address:    address,
		Kind:       res.kind,
		Confidence: res.confidence,
		Source:     res.source,
	}
}

func (r *AddressResolver) providerTiers() []tierFunc {
	return []tierFunc{r.holdingsTier, r.metadataTier, r.accountTier}
}

func (r *AddressResolver) firstConfident(ctx context.Context, address string, tiers []tierFunc) tierResult {
	for _, tier := range tiers {
		if res := tier(ctx, address); res.ok {
			return res
		}
	}
	return tierResult{}
}

// firstConfidentParallel runs tiers concurrently and returns the confident
// result of the lowest-numbered tier. Remaining tiers are cancelled as soon as
// every higher-priority tier has finished and one of them decided.
func (r *AddressResolver) firstConfidentParallel(ctx context.Context, address string, tiers []tierFunc) tierResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make([]tierResult, len(tiers))
		done    = make([]bool, len(tiers))
		g       errgroup.Group
	)

	for i, tier := range tiers {
		g.Go(func() error {
			res := tier(ctx, address)

			mu.Lock()
			defer mu.Unlock()
			results[i], done[i] = res, true
			for j := range tiers {
				if !done[j] {
					break
				}
				if results[j].ok {
					cancel()
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.ok {
			return res
		}
	}
	return tierResult{}
}

func (r *AddressResolver) holdingsTier(ctx context.Context, address string) tierResult {
	if r.deps.Holdings == nil {
		return tierResult{}
	}
	var count int
	err := r.call(ctx, adapter.ProviderHoldings, func(ctx context.Context) error {
		var err error
		count, err = r.deps.Holdings.TokenHoldings(ctx, address)
		return err
	})
	if err != nil || count == 0 {
		r.logFallThrough(ctx, adapter.ProviderHoldings, address, err)
		return tierResult{}
	}
	return tierResult{kind: types.KindWallet, confidence: types.ConfidenceConfirmed, source: types.SourceIndexedHoldings, ok: true}
}

func (r *AddressResolver) metadataTier(ctx context.Context, address string) tierResult {
	if r.deps.Metadata == nil {
		return tierResult{}
	}
	var found bool
	err := r.call(ctx, adapter.ProviderMetadata, func(ctx context.Context) error {
		var err error
		found, err = r.deps.Metadata.HasMintMetadata(ctx, address)
		return err
	})
	if err != nil || !found {
		r.logFallThrough(ctx, adapter.ProviderMetadata, address, err)
		return tierResult{}
	}
	return tierResult{kind: types.KindTokenMint, confidence: types.ConfidenceConfirmed, source: types.SourceMintMetadata, ok: true}
}

func (r *AddressResolver) accountTier(ctx context.Context, address string) tierResult {
	if r.deps.Accounts == nil {
		return tierResult{}
	}
	var info *adapter.AccountInfo
	err := r.call(ctx, adapter.ProviderRPC, func(ctx context.Context) error {
		var err error
		info, err = r.deps.Accounts.AccountInfo(ctx, address)
		return err
	})
	if err != nil || info == nil {
		r.logFallThrough(ctx, adapter.ProviderRPC, address, err)
		return tierResult{}
	}

	switch {
	case info.IsTokenProgram() && info.ParsedType == "mint":
		return tierResult{kind: types.KindTokenMint, confidence: types.ConfidenceConfirmed, source: types.SourceRPCAccount, ok: true}
	case info.ParsedType == "account" || info.ParsedType == "":
		return tierResult{kind: types.KindWallet, confidence: types.ConfidenceConfirmed, source: types.SourceRPCAccount, ok: true}
	default:
		// Parsed types such as nonce or multisig say nothing either way
		r.logFallThrough(ctx, adapter.ProviderRPC, address, nil)
		return tierResult{}
	}
}

func (r *AddressResolver) htmlTier(ctx context.Context, address string) tierResult {
	if r.deps.Pages == nil || !r.cfg.HTMLHeuristic {
		return tierResult{}
	}
	kind := PageUnavailable
	err := r.call(ctx, adapter.ProviderProfile, func(ctx context.Context) error {
		var err error
		kind, err = r.deps.Pages.Inspect(ctx, address)
		return err
	})
	if err != nil {
		r.logFallThrough(ctx, adapter.ProviderProfile, address, err)
		return tierResult{}
	}

	switch kind {
	case PageLoginWall, PageTradingContent:
		return tierResult{kind: types.KindWallet, confidence: types.ConfidenceInferred, source: types.SourceHTMLHeuristic, ok: true}
	case PageNoContent:
		return tierResult{kind: types.KindTokenMint, confidence: types.ConfidenceInferred, source: types.SourceHTMLHeuristic, ok: true}
	default:
		return tierResult{}
	}
}

// call runs one provider request under the rate limiter, the provider's
// circuit breaker, the retry policy and a per-attempt timeout.
func (r *AddressResolver) call(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	if err := r.admit(ctx, provider); err != nil {
		return err
	}

	breaker := r.deps.Breakers.Get(provider)
	return retry.Do(ctx, r.retry, func(ctx context.Context) error {
		return breaker.Execute(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, r.cfg.TierTimeout)
			defer cancel()
			return fn(callCtx)
		})
	})
}

// admit waits for a provider token. A denial is waited out as long as the
// wait fits in the tier timeout; otherwise the tier is skipped.
func (r *AddressResolver) admit(ctx context.Context, provider string) error {
	key := "provider:" + provider
	deadline := time.Now().Add(r.cfg.TierTimeout)

	for {
		decision, err := r.deps.Limiter.Check(ctx, key)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("provider", provider).
				Warn("Rate limiter unavailable, allowing provider call")
			return nil
		}
		if decision.Allowed {
			return nil
		}

		wait := decision.RetryAfter
		if wait <= 0 {
			wait = minLimiterWait
		}
		if time.Until(deadline) < wait {
			return apperrors.NewProviderRateLimitError(provider)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return apperrors.WrapTransport(provider, ctx.Err())
		}
	}
}

func (r *AddressResolver) logFallThrough(ctx context.Context, provider, address string, err error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"provider": provider,
		"address":  address,
	})
	if err != nil {
		if catErr := apperrors.Categorize(err); catErr != nil {
			logger = logger.WithField("category", catErr.Category)
		}
		logger.WithError(err).Debug("Tier failed, falling through")
		return
	}
	logger.Debug("Tier inconclusive, falling through")
}
