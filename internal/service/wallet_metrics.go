package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/pattern"
	"github.com/solana-scanner/internal/types"
	"github.com/solana-scanner/internal/valueparse"
)

const (
	// maxCandidateRows is how many candidate rows are examined
	maxCandidateRows = 8
	// maxTradeRecords is how many trade records are kept
	maxTradeRecords = 4
	// maxContainerRowBytes bounds a div-layout row that has no following sibling
	maxContainerRowBytes = 4096

	// LoginRequiredSymbol is the placeholder symbol returned for gated pages
	LoginRequiredSymbol = "LOGIN_REQUIRED"
)

// ProfileSource fetches the HTML of a wallet profile page
type ProfileSource interface {
	FetchProfile(ctx context.Context, address string) (string, error)
}

// PageKind is the outcome of the two page gates
type PageKind int

const (
	// PageUnavailable means the page could not be fetched
	PageUnavailable PageKind = iota
	// PageLoginWall means the page hides its data behind a login prompt
	PageLoginWall
	// PageNoContent means the page has no trading content; likely not a wallet
	PageNoContent
	// PageTradingContent means the page shows trading data
	PageTradingContent
)

func (k PageKind) String() string {
	switch k {
	case PageLoginWall:
		return "login_wall"
	case PageNoContent:
		return "no_content"
	case PageTradingContent:
		return "trading_content"
	default:
		return "unavailable"
	}
}

var (
	loginMarkers = pattern.Markers{
		"log in to view",
		"login to view",
		"sign in to view",
		"sign in to continue",
		"connect wallet to view",
		"please log in",
		"please login",
		"login-required",
	}

	contentMarkers = pattern.Markers{
		"win rate",
		"winrate",
		"win-rate",
		"pnl",
		"total trades",
		"recent trades",
		"trade-row",
		"realized profit",
	}
)

// winClassRe matches a class attribute carrying a whole win marker token, so
// "positive" matches but "non-positive" does not.
var winClassRe = regexp.MustCompile(`(?i)\bclass\s*=\s*["'](?:[^"']*\s)?(?:text-green|positive|profit-up|is-win)(?:\s[^"']*)?["']`)

// Field patterns, most specific first
var (
	winRatePatterns = pattern.MustCompile("winRate",
		`(?i)data-win-?rate="([0-9]+(?:\.[0-9]+)?%?)"`,
		`(?i)win\s*-?\s*rate(?:\s|<[^>]*>|:)*([0-9]+(?:\.[0-9]+)?\s*%)`,
		`(?i)([0-9]+(?:\.[0-9]+)?%)\s*win\s*rate`,
	)

	roiPatterns = pattern.MustCompile("roi",
		`(?i)data-roi="([+-]?[0-9][0-9,]*(?:\.[0-9]+)?%?)"`,
		`(?i)\bROI(?:\s|<[^>]*>|:)*([+-]?[0-9][0-9,]*(?:\.[0-9]+)?\s*%)`,
		`(?i)([+-]?[0-9][0-9,]*(?:\.[0-9]+)?%)\s*ROI\b`,
	)

	totalTradesPatterns = pattern.MustCompile("totalTrades",
		`(?i)data-total-trades="([0-9][0-9,]*)"`,
		`(?i)total\s*trades(?:\s|<[^>]*>|:)*([0-9][0-9,]*)`,
		`(?i)\b([0-9][0-9,]*)\s+trades\b`,
	)

	profitableTradesPatterns = pattern.MustCompile("profitableTrades",
		`(?i)data-(?:profitable|winning)-trades="([0-9][0-9,]*)"`,
		`(?i)(?:profitable|winning)\s*trades(?:\s|<[^>]*>|:)*([0-9][0-9,]*)`,
		`(?i)\b([0-9][0-9,]*)\s+(?:wins|profitable)\b`,
	)
)

// Trade row patterns
var (
	tableRowRe = regexp.MustCompile(`(?is)<tr\b[^>]*>(.*?)</tr>`)

	containerRowPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<(?:div|li)\b[^>]*class="[^"]*\btrade-row\b[^"]*"[^>]*>`),
		regexp.MustCompile(`(?i)<(?:div|li)\b[^>]*class="[^"]*\btrade-item\b[^"]*"[^>]*>`),
		regexp.MustCompile(`(?i)<(?:div|li)\b[^>]*class="[^"]*\bactivity-row\b[^"]*"[^>]*>`),
	}

	symbolPatterns = pattern.MustCompile("symbol",
		`(?i)data-symbol="\$?([A-Za-z0-9_.]{1,20})"`,
		`(?is)class="[^"]*\b(?:token-symbol|symbol)\b[^"]*"[^>]*>\s*\$?([A-Za-z0-9_.]{1,20})\s*<`,
		`\$([A-Z][A-Z0-9]{1,14})\b`,
	)

	namePatterns = pattern.MustCompile("name",
		`(?i)data-name="([^"]{1,64})"`,
		`(?is)class="[^"]*\b(?:token-name|name)\b[^"]*"[^>]*>\s*([^<]{1,64}?)\s*<`,
	)

	timePatterns = pattern.MustCompile("time",
		`(?i)<time\b[^>]*datetime="([^"]+)"`,
		`(?is)class="[^"]*\b(?:trade-time|timestamp|time)\b[^"]*"[^>]*>\s*([^<]{1,40}?)\s*<`,
		`(?i)\b([0-9]+\s*(?:s|m|h|d|mins?|hrs?|hours?|days?)\s+ago)\b`,
	)

	profitPatterns = pattern.MustCompile("profit",
		`(?i)data-(?:profit|pnl)="([^"]+)"`,
		`(?is)class="[^"]*\b(?:profit|pnl)\b[^"]*"[^>]*>\s*([+-]?\s*\$?[0-9][0-9,]*(?:\.[0-9]+)?[KMB]?%?)\s*<`,
		`([+-]\$[0-9][0-9,]*(?:\.[0-9]+)?[KMB]?)`,
	)
)

// WalletMetricsScraper extracts trading performance from public wallet profile pages
type WalletMetricsScraper struct {
	source ProfileSource
}

// NewWalletMetricsScraper creates a scraper over source
func NewWalletMetricsScraper(source ProfileSource) *WalletMetricsScraper {
	return &WalletMetricsScraper{source: source}
}

// Scrape fetches and extracts the summary for address. It never fails: a page
// that cannot be fetched yields an all-Unknown summary with FetchFailed set.
func (s *WalletMetricsScraper) Scrape(ctx context.Context, address string) *types.WalletTradeSummary {
	logger := logging.FromContext(ctx).WithField("address", address)

	html, err := s.source.FetchProfile(ctx, address)
	if err != nil {
		logger.WithError(err).Debug("Profile page fetch failed")
		summary := types.NewUnknownSummary(address)
		summary.FetchFailed = true
		return summary
	}

	summary := ExtractSummary(address, html)
	logger.WithFields(map[string]interface{}{
		"loginRequired": summary.LoginRequired,
		"walletPage":    summary.WalletPage,
		"trades":        len(summary.LastTradedCoins),
	}).Debug("Profile page scraped")
	return summary
}

// Inspect fetches the page and applies only the gates
func (s *WalletMetricsScraper) Inspect(ctx context.Context, address string) (PageKind, error) {
	html, err := s.source.FetchProfile(ctx, address)
	if err != nil {
		return PageUnavailable, err
	}
	return ClassifyPage(html), nil
}

// ClassifyPage applies the login gate, then the content gate
func ClassifyPage(html string) PageKind {
	if loginMarkers.In(html) {
		return PageLoginWall
	}
	if !contentMarkers.In(html) {
		return PageNoContent
	}
	return PageTradingContent
}

// ExtractSummary builds a summary from page HTML
func ExtractSummary(address, html string) *types.WalletTradeSummary {
	summary := types.NewUnknownSummary(address)

	switch ClassifyPage(html) {
	case PageLoginWall:
		summary.LoginRequired = true
		summary.WalletPage = true
		summary.LastTradedCoins = []types.TradeRecord{{Symbol: LoginRequiredSymbol}}
		return summary
	case PageNoContent:
		return summary
	}

	summary.WalletPage = true
	summary.WinRate = winRatePatterns.FirstOr(html, types.Unknown)
	summary.ROI = roiPatterns.FirstOr(html, types.Unknown)
	summary.TotalTrades = extractCount(totalTradesPatterns, html)
	summary.ProfitableTrades = extractCount(profitableTradesPatterns, html)
	summary.LastTradedCoins = extractTrades(html)
	return summary
}

func extractCount(patterns pattern.List, html string) *int {
	m, ok := patterns.First(html)
	if !ok {
		return nil
	}
	n, ok := valueparse.ParseCount(m.Value)
	if !ok {
		return nil
	}
	return &n
}

// candidateRows returns up to maxCandidateRows row fragments in document order.
// Table rows win; div layouts are tried only when there are none.
func candidateRows(html string) []string {
	if matches := tableRowRe.FindAllStringSubmatch(html, maxCandidateRows); len(matches) > 0 {
		rows := make([]string, 0, len(matches))
		for _, m := range matches {
			rows = append(rows, m[1])
		}
		return rows
	}

	for _, re := range containerRowPatterns {
		locs := re.FindAllStringIndex(html, maxCandidateRows+1)
		if len(locs) == 0 {
			continue
		}
		rows := make([]string, 0, maxCandidateRows)
		for i := 0; i < len(locs) && i < maxCandidateRows; i++ {
			end := len(html)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			if end-locs[i][0] > maxContainerRowBytes {
				end = locs[i][0] + maxContainerRowBytes
			}
			rows = append(rows, html[locs[i][0]:end])
		}
		return rows
	}
	return nil
}

func extractTrades(html string) []types.TradeRecord {
	records := make([]types.TradeRecord, 0, maxTradeRecords)
	for _, row := range candidateRows(html) {
		record, ok := extractTrade(row)
		if !ok {
			continue
		}
		records = append(records, record)
		if len(records) == maxTradeRecords {
			break
		}
	}
	return records
}

// extractTrade reads one row. A row without a symbol is not a trade.
func extractTrade(row string) (types.TradeRecord, bool) {
	symbol, ok := symbolPatterns.First(row)
	if !ok {
		return types.TradeRecord{}, false
	}

	record := types.TradeRecord{Symbol: strings.TrimPrefix(symbol.Value, "$")}
	record.Name = optional(namePatterns, row)
	record.Time = optional(timePatterns, row)
	record.Profit = optional(profitPatterns, row)

	positive := winClassRe.MatchString(row)
	if record.Profit != nil || positive {
		win := positive || strings.HasPrefix(*record.Profit, "+")
		record.IsWin = &win
	}
	return record, true
}

func optional(patterns pattern.List, s string) *string {
	m, ok := patterns.First(s)
	if !ok {
		return nil
	}
	v := strings.Join(strings.Fields(m.Value), " ")
	return &v
}
