package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solana-scanner/internal/pattern"
	"github.com/solana-scanner/internal/types"
)

const testAddress = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

const tableProfileHTML = `<html><body>
<div class="stats">
  <div class="stat"><span class="label">Win Rate</span><span class="value">61.5%</span></div>
  <div class="stat"><span class="label">ROI</span><span class="value">+245.3%</span></div>
  <div class="stat"><span>Total Trades</span><b>1,204</b></div>
  <div class="stat"><span>Profitable Trades</span><b>740</b></div>
</div>
<h2>Recent Trades</h2>
<table>
<tr><th>Token</th><th>Time</th><th>Profit</th></tr>
<tr><td class="token-symbol">$BONK</td><td class="token-name">Bonk</td><td class="time">2h ago</td><td class="profit text-green">+$1.2K</td></tr>
<tr><td class="token-symbol">WIF</td><td class="token-name">dogwifhat</td><td class="time">5h ago</td><td class="profit">-$300</td></tr>
<tr><td>no symbol here</td></tr>
<tr><td data-symbol="POPCAT">Popcat</td></tr>
</table>
</body></html>`

const divProfileHTML = `<html><body>
<div class="summary">PnL overview</div>
<div class="trade-row positive"><span class="symbol">JUP</span><span class="pnl">+12%</span></div>
<div class="trade-row"><span class="symbol">PYTH</span> <time datetime="2026-01-01T00:00:00Z">Jan 1</time></div>
</body></html>`

type fakeProfileSource struct {
	html  string
	err   error
	calls atomic.Int32
}

func (f *fakeProfileSource) FetchProfile(ctx context.Context, address string) (string, error) {
	f.calls.Add(1)
	return f.html, f.err
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestExtractSummary_TableLayout(t *testing.T) {
	summary := ExtractSummary(testAddress, tableProfileHTML)

	assert.True(t, summary.WalletPage)
	assert.False(t, summary.LoginRequired)
	assert.Equal(t, "61.5%", summary.WinRate)
	assert.Equal(t, "+245.3%", summary.ROI)
	require.NotNil(t, summary.TotalTrades)
	assert.Equal(t, 1204, *summary.TotalTrades)
	require.NotNil(t, summary.ProfitableTrades)
	assert.Equal(t, 740, *summary.ProfitableTrades)

	assert.Equal(t, []types.TradeRecord{
		{Symbol: "BONK", Name: strPtr("Bonk"), Time: strPtr("2h ago"), Profit: strPtr("+$1.2K"), IsWin: boolPtr(true)},
		{Symbol: "WIF", Name: strPtr("dogwifhat"), Time: strPtr("5h ago"), Profit: strPtr("-$300"), IsWin: boolPtr(false)},
		{Symbol: "POPCAT"},
	}, summary.LastTradedCoins)
}

func TestExtractSummary_DivLayout(t *testing.T) {
	summary := ExtractSummary(testAddress, divProfileHTML)

	assert.True(t, summary.WalletPage)
	assert.Equal(t, types.Unknown, summary.WinRate)
	assert.Equal(t, types.Unknown, summary.ROI)
	assert.Nil(t, summary.TotalTrades)

	require.Len(t, summary.LastTradedCoins, 2)
	jup := summary.LastTradedCoins[0]
	assert.Equal(t, "JUP", jup.Symbol)
	assert.Equal(t, strPtr("+12%"), jup.Profit)
	assert.Equal(t, boolPtr(true), jup.IsWin)

	pyth := summary.LastTradedCoins[1]
	assert.Equal(t, "PYTH", pyth.Symbol)
	assert.Equal(t, strPtr("2026-01-01T00:00:00Z"), pyth.Time)
	assert.Nil(t, pyth.Profit)
	assert.Nil(t, pyth.IsWin)
}

func TestExtractSummary_LoginWall(t *testing.T) {
	html := `<div class="login-required">Please log in to view this wallet</div><p>Win Rate 50% ROI 20%</p>`

	summary := ExtractSummary(testAddress, html)

	assert.True(t, summary.LoginRequired)
	assert.True(t, summary.WalletPage)
	assert.Equal(t, types.Unknown, summary.WinRate, "numeric extraction must not run behind a login wall")
	assert.Equal(t, types.Unknown, summary.ROI)
	assert.Nil(t, summary.TotalTrades)
	assert.Equal(t, []types.TradeRecord{{Symbol: LoginRequiredSymbol}}, summary.LastTradedCoins)
}

func TestExtractSummary_NoTradingContent(t *testing.T) {
	summary := ExtractSummary(testAddress, `<html><h1>Token BONK</h1><p>Supply 1,000,000</p></html>`)

	assert.False(t, summary.WalletPage)
	assert.False(t, summary.HasMetrics())
	assert.Equal(t, types.Unknown, summary.WinRate)
	assert.NotNil(t, summary.LastTradedCoins)
}

func TestExtractSummary_FieldsFailIndependently(t *testing.T) {
	summary := ExtractSummary(testAddress, `<p>Trader with 55% win rate across 300 trades</p>`)

	assert.Equal(t, "55%", summary.WinRate)
	assert.Equal(t, types.Unknown, summary.ROI)
	require.NotNil(t, summary.TotalTrades)
	assert.Equal(t, 300, *summary.TotalTrades)
	assert.Nil(t, summary.ProfitableTrades)
	assert.Empty(t, summary.LastTradedCoins)
}

func TestExtractSummary_FirstPatternWins(t *testing.T) {
	summary := ExtractSummary(testAddress, `<div data-win-rate="72.1">Win Rate 10%</div>`)
	assert.Equal(t, "72.1", summary.WinRate)
}

func TestFieldPatterns_EachPatternReachable(t *testing.T) {
	tests := []struct {
		list  pattern.List
		input string
		name  string
		value string
	}{
		{winRatePatterns, `data-win-rate="40%"`, "winRate#0", "40%"},
		{winRatePatterns, `Win-Rate: <b>40 %</b>`, "winRate#1", "40 %"},
		{winRatePatterns, `40% win rate`, "winRate#2", "40%"},
		{roiPatterns, `data-roi="-12.5%"`, "roi#0", "-12.5%"},
		{roiPatterns, `ROI <span>-12.5%</span>`, "roi#1", "-12.5%"},
		{roiPatterns, `+1,200% ROI`, "roi#2", "+1,200%"},
		{totalTradesPatterns, `data-total-trades="88"`, "totalTrades#0", "88"},
		{totalTradesPatterns, `Total trades: 88`, "totalTrades#1", "88"},
		{totalTradesPatterns, `88 trades`, "totalTrades#2", "88"},
		{profitableTradesPatterns, `data-winning-trades="9"`, "profitableTrades#0", "9"},
		{profitableTradesPatterns, `Winning Trades <i>9</i>`, "profitableTrades#1", "9"},
		{profitableTradesPatterns, `9 wins`, "profitableTrades#2", "9"},
		{symbolPatterns, `data-symbol="$MEW"`, "symbol#0", "MEW"},
		{symbolPatterns, `<a class="symbol">MEW</a>`, "symbol#1", "MEW"},
		{symbolPatterns, `bought $MEW today`, "symbol#2", "MEW"},
		{timePatterns, `<span>3 hrs ago</span>`, "time#2", "3 hrs ago"},
		{profitPatterns, `<span data-pnl="+$5K">`, "profit#0", "+$5K"},
		{profitPatterns, `<span>+$5K</span>`, "profit#2", "+$5K"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := tt.list.First(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.name, m.Pattern)
			assert.Equal(t, tt.value, m.Value)
		})
	}
}

func TestExtractSummary_WinMarkerNeedsWholeClassToken(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want *bool
	}{
		{"positive class", `<div class="trade-row positive"><span class="symbol">JUP</span></div>`, boolPtr(true)},
		{"single quoted table cell", `<table><tr><td data-symbol="JUP" class='cell is-win'>x</td></tr></table>`, boolPtr(true)},
		{"non-positive class", `<div class="trade-row non-positive"><span class="symbol">JUP</span></div>`, nil},
		{"marker outside class", `<div class="trade-row" data-note="positive"><span class="symbol">JUP</span></div>`, nil},
		{"non-positive with loss", `<div class="trade-row non-positive"><span class="symbol">JUP</span><span class="pnl">-4%</span></div>`, boolPtr(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := ExtractSummary(testAddress, "<h2>PnL</h2>"+tt.row)
			require.Len(t, summary.LastTradedCoins, 1)
			assert.Equal(t, tt.want, summary.LastTradedCoins[0].IsWin)
		})
	}
}

func tableWithRows(rows []string) string {
	return "<h2>Recent Trades</h2><table>" + strings.Join(rows, "\n") + "</table>"
}

func TestExtractSummary_TradeCap(t *testing.T) {
	rows := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		rows = append(rows, fmt.Sprintf(`<tr><td data-symbol="TK%d">x</td><td class="profit">+$%d</td></tr>`, i, i+1))
	}

	summary := ExtractSummary(testAddress, tableWithRows(rows))

	require.Len(t, summary.LastTradedCoins, maxTradeRecords)
	for i, record := range summary.LastTradedCoins {
		assert.Equal(t, fmt.Sprintf("TK%d", i), record.Symbol, "document order must be preserved")
	}
}

func TestExtractSummary_OnlyFirstEightRowsExamined(t *testing.T) {
	rows := make([]string, 0, 10)
	for i := 0; i < 6; i++ {
		rows = append(rows, `<tr><td>header</td></tr>`)
	}
	for i := 0; i < 4; i++ {
		rows = append(rows, fmt.Sprintf(`<tr><td data-symbol="LATE%d">x</td></tr>`, i))
	}

	summary := ExtractSummary(testAddress, tableWithRows(rows))

	require.Len(t, summary.LastTradedCoins, 2)
	assert.Equal(t, "LATE0", summary.LastTradedCoins[0].Symbol)
	assert.Equal(t, "LATE1", summary.LastTradedCoins[1].Symbol)
}

func TestWalletMetricsScraper_Scrape(t *testing.T) {
	source := &fakeProfileSource{html: tableProfileHTML}
	scraper := NewWalletMetricsScraper(source)

	first := scraper.Scrape(context.Background(), testAddress)
	second := scraper.Scrape(context.Background(), testAddress)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestWalletMetricsScraper_FetchFailure(t *testing.T) {
	scraper := NewWalletMetricsScraper(&fakeProfileSource{err: errors.New("connection refused")})

	summary := scraper.Scrape(context.Background(), testAddress)

	require.NotNil(t, summary)
	assert.True(t, summary.FetchFailed)
	assert.False(t, summary.WalletPage)
	assert.Equal(t, types.Unknown, summary.WinRate)
	assert.Equal(t, types.Unknown, summary.ROI)
	assert.Empty(t, summary.LastTradedCoins)
}

func TestWalletMetricsScraper_Inspect(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeProfileSource
		want PageKind
	}{
		{"login", &fakeProfileSource{html: "Connect wallet to view"}, PageLoginWall},
		{"content", &fakeProfileSource{html: tableProfileHTML}, PageTradingContent},
		{"empty page", &fakeProfileSource{html: "<html></html>"}, PageNoContent},
		{"fetch error", &fakeProfileSource{err: errors.New("timeout")}, PageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, _ := NewWalletMetricsScraper(tt.src).Inspect(context.Background(), testAddress)
			assert.Equal(t, tt.want, kind)
		})
	}
}
