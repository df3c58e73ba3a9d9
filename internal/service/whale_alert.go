package service

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solana-scanner/internal/pattern"
	"github.com/solana-scanner/internal/types"
	"github.com/solana-scanner/internal/valueparse"
)

// Impact thresholds on the parsed buy amount. Boundaries are strict.
const (
	HighImpactAbove = 50000
	LowImpactBelow  = 5000
)

// whaleEventNamespace scopes deterministic event IDs
var whaleEventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("solana-scanner/whale-activity"))

var (
	whaleTrigger = pattern.MustCompile("trigger", `(?i)\bwhale\s+just\s+bought\b`)

	whaleLabelPatterns = pattern.MustCompile("label",
		`(?i)\bA\s+(\$[A-Za-z0-9_]+)\s+whale\b`,
	)
	whaleBuyPatterns = pattern.MustCompile("buy",
		`(?i)\bbought\s+(\$[0-9][0-9,]*(?:\.[0-9]+)?[KMB]?)\s+of\b`,
	)
	whaleSymbolPatterns = pattern.MustCompile("symbol",
		`(?i)\bof\s+\$([A-Za-z0-9_]+)(?:\s+at\b|\s*$)`,
	)
	whaleMarketCapPatterns = pattern.MustCompile("mcap",
		`(?i)\bat\s+(\$[0-9][0-9,]*(?:\.[0-9]+)?[KMB]?)\s+MC\b`,
	)

	genericURLRe = regexp.MustCompile(`https?://[^\s)\]>]+`)
)

// DefaultKnownHosts are alert link hosts accepted without a URL scheme
var DefaultKnownHosts = []string{"assetdash.com", "dexscreener.com", "birdeye.so", "pump.fun", "solscan.io"}

// AlertMessage is one inbound alert as delivered by the chat transport
type AlertMessage struct {
	Ref      string
	Text     string
	PostedAt time.Time
}

// WhaleAlertParser turns whale alert text into structured buy events.
// A message either yields a complete event or nothing.
type WhaleAlertParser struct {
	knownHosts []string
	hostRes    []*regexp.Regexp
	now        func() time.Time
}

// NewWhaleAlertParser creates a parser. Nil knownHosts uses DefaultKnownHosts.
func NewWhaleAlertParser(knownHosts []string) *WhaleAlertParser {
	if knownHosts == nil {
		knownHosts = DefaultKnownHosts
	}
	p := &WhaleAlertParser{now: time.Now}
	for _, host := range knownHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		p.knownHosts = append(p.knownHosts, host)
		p.hostRes = append(p.hostRes,
			regexp.MustCompile(`(?i)(?:[a-z0-9-]+\.)*`+regexp.QuoteMeta(host)+`(?:/[^\s)\]>]*)?`))
	}
	return p
}

// WithClock sets the clock used when a message carries no timestamp
func (p *WhaleAlertParser) WithClock(now func() time.Time) *WhaleAlertParser {
	p.now = now
	return p
}

// Parse parses bare alert text. It returns nil when text is not a whale buy.
func (p *WhaleAlertParser) Parse(text string) *types.WhaleActivityEvent {
	return p.ParseMessage(AlertMessage{Text: text})
}

// ParseMessage parses one alert. It returns nil unless every required field
// is present: label, buy amount, symbol, market cap and a link.
func (p *WhaleAlertParser) ParseMessage(msg AlertMessage) *types.WhaleActivityEvent {
	text := msg.Text
	if _, ok := whaleTrigger.First(text); !ok {
		return nil
	}

	label, ok := whaleLabelPatterns.First(text)
	if !ok {
		return nil
	}
	buy, ok := whaleBuyPatterns.First(text)
	if !ok {
		return nil
	}
	symbol, ok := whaleSymbolPatterns.First(text)
	if !ok {
		return nil
	}
	mcap, ok := whaleMarketCapPatterns.First(text)
	if !ok {
		return nil
	}
	link, ok := p.firstLink(text)
	if !ok {
		return nil
	}

	contract := lastPathSegment(link)
	if contract == "" {
		contract = symbol.Value + "_CA"
	}

	for _, v := range []string{label.Value, buy.Value, symbol.Value, mcap.Value, contract} {
		if v == "" || v == types.Unknown {
			return nil
		}
	}

	occurredAt := msg.PostedAt
	if occurredAt.IsZero() {
		occurredAt = p.now()
	}

	return &types.WhaleActivityEvent{
		ID:                   EventID(msg.Ref, text),
		Token:                symbol.Value,
		BuyAmount:            buy.Value,
		MarketCapAtBuy:       mcap.Value,
		TokenContractAddress: contract,
		WhaleLabel:           label.Value,
		Impact:               ClassifyImpact(buy.Value),
		OccurredAt:           occurredAt.UTC(),
		SourceMessageRef:     msg.Ref,
	}
}

// firstLink returns the first scheme URL, else the first known-host reference
func (p *WhaleAlertParser) firstLink(text string) (string, bool) {
	if u := genericURLRe.FindString(text); u != "" {
		return u, true
	}

	best, bestAt := "", -1
	for _, re := range p.hostRes {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestAt < 0 || loc[0] < bestAt {
			best, bestAt = text[loc[0]:loc[1]], loc[0]
		}
	}
	return best, bestAt >= 0
}

// lastPathSegment returns the final non-empty path segment of link, ignoring
// query and fragment. A bare host has no segment.
func lastPathSegment(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	if i := strings.Index(link, "://"); i >= 0 {
		link = link[i+3:]
	}

	parts := strings.Split(link, "/")
	for i := len(parts) - 1; i >= 1; i-- {
		segment := strings.TrimSpace(parts[i])
		if segment == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(segment); err == nil {
			segment = unescaped
		}
		return segment
	}
	return ""
}

// ClassifyImpact buckets a buy amount: above 50,000 is High, below 5,000 is
// Low, otherwise Medium. Exactly 50,000 is Medium and exactly 5,000 is Medium.
func ClassifyImpact(buyAmount string) types.Impact {
	v := valueparse.Parse(buyAmount)
	switch {
	case v > HighImpactAbove:
		return types.ImpactHigh
	case v < LowImpactBelow:
		return types.ImpactLow
	default:
		return types.ImpactMedium
	}
}

// EventID derives a stable event ID from the message reference and text
func EventID(ref, text string) string {
	return uuid.NewSHA1(whaleEventNamespace, []byte(ref+"\x00"+text)).String()
}
