// Package types provides common type definitions for the solana scanner system.
package types

import "time"

// Unknown is the sentinel written into string fields that could not be extracted.
const Unknown = "Unknown"

// AddressKind represents what an address resolves to on chain
type AddressKind string

const (
	// KindWallet represents a wallet (owner) address
	KindWallet AddressKind = "wallet"
	// KindTokenMint represents an SPL token mint address
	KindTokenMint AddressKind = "token_mint"
	// KindUnknown represents an address that could not be classified
	KindUnknown AddressKind = "unknown"
)

// Confidence represents how a classification verdict was reached
type Confidence string

const (
	// ConfidenceConfirmed means a data source positively identified the address
	ConfidenceConfirmed Confidence = "confirmed"
	// ConfidenceInferred means the verdict comes from a page heuristic
	ConfidenceInferred Confidence = "inferred"
	// ConfidenceDefault means every source failed and the policy default was applied
	ConfidenceDefault Confidence = "default"
)

// ClassificationSource names the resolver tier that produced a verdict
type ClassificationSource string

const (
	SourceIndexedHoldings ClassificationSource = "indexed_holdings"
	SourceMintMetadata    ClassificationSource = "mint_metadata"
	SourceRPCAccount      ClassificationSource = "rpc_account"
	SourceHTMLHeuristic   ClassificationSource = "html_heuristic"
	SourceDefault         ClassificationSource = "default"
	SourceValidation      ClassificationSource = "validation"
)

// Impact represents the size bucket of a whale buy
type Impact string

const (
	// ImpactHigh represents buys above 50,000
	ImpactHigh Impact = "High"
	// ImpactMedium represents buys between the low and high thresholds
	ImpactMedium Impact = "Medium"
	// ImpactLow represents buys below 5,000
	ImpactLow Impact = "Low"
)

// AddressClassification is the resolver's verdict for one address.
// It is built fresh for every request and must not be mutated after it is returned.
type AddressClassification struct {
	Address    string               `json:"address"`
	Kind       AddressKind          `json:"kind"`
	Confidence Confidence           `json:"confidence"`
	Source     ClassificationSource `json:"source"`
}

// IsWallet reports whether the verdict is a wallet
func (c *AddressClassification) IsWallet() bool {
	return c != nil && c.Kind == KindWallet
}

// TradeRecord is one recently traded coin scraped from a wallet profile
type TradeRecord struct {
	Symbol string  `json:"symbol"`
	Name   *string `json:"name,omitempty"`
	Time   *string `json:"time,omitempty"`
	Profit *string `json:"profit,omitempty"`
	IsWin  *bool   `json:"isWin,omitempty"`
}

// WalletTradeSummary holds trading-performance metrics for a wallet.
// String metrics are either an extracted value or Unknown, never empty.
type WalletTradeSummary struct {
	Address          string        `json:"address"`
	WinRate          string        `json:"winRate"`
	ROI              string        `json:"roi"`
	TotalTrades      *int          `json:"totalTrades,omitempty"`
	ProfitableTrades *int          `json:"profitableTrades,omitempty"`
	LastTradedCoins  []TradeRecord `json:"lastTradedCoins"`
	LoginRequired    bool          `json:"loginRequired"`
	WalletPage       bool          `json:"walletPage"`
	FetchFailed      bool          `json:"fetchFailed,omitempty"`
}

// NewUnknownSummary returns a well-formed summary with every metric unset
func NewUnknownSummary(address string) *WalletTradeSummary {
	return &WalletTradeSummary{
		Address:         address,
		WinRate:         Unknown,
		ROI:             Unknown,
		LastTradedCoins: []TradeRecord{},
	}
}

// HasMetrics reports whether at least one metric or trade was extracted
func (s *WalletTradeSummary) HasMetrics() bool {
	return s.WinRate != Unknown || s.ROI != Unknown ||
		s.TotalTrades != nil || s.ProfitableTrades != nil ||
		len(s.LastTradedCoins) > 0
}

// WhaleActivityEvent is a structured whale buy extracted from one alert message
type WhaleActivityEvent struct {
	ID                   string    `json:"id"`
	Token                string    `json:"token"`
	BuyAmount            string    `json:"buyAmount"`
	MarketCapAtBuy       string    `json:"marketCapAtBuy"`
	TokenContractAddress string    `json:"tokenContractAddress"`
	WhaleLabel           string    `json:"whaleLabel"`
	Impact               Impact    `json:"impact"`
	OccurredAt           time.Time `json:"occurredAt"`
	SourceMessageRef     string    `json:"sourceMessageRef"`
}

// SavedWallet is curated metadata stored for a known wallet
type SavedWallet struct {
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	XAccount    string    `json:"xAccount,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// WalletProfile is everything known about an address: how it classifies,
// its scraped trading summary when it is a wallet, and any curated metadata.
type WalletProfile struct {
	Classification *AddressClassification `json:"classification"`
	Summary        *WalletTradeSummary    `json:"summary,omitempty"`
	SavedWallet    *SavedWallet           `json:"savedWallet,omitempty"`
}
