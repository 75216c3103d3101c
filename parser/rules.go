package parser

import (
	"regexp"
	"strings"

	"github.com/viktsys/stockplot/intent"
)

// chartRule maps keywords to a chart kind. Rules are checked in slice
// order and the first hit wins.
type chartRule struct {
	kind     intent.ChartKind
	keywords []string
}

var chartRules = []chartRule{
	{intent.ChartHistogram, []string{"histogram"}},
	{intent.ChartBoxplot, []string{"boxplot", "box plot"}},
	{intent.ChartScatter, []string{"scatter"}},
	{intent.ChartBar, []string{"bar"}},
	{intent.ChartPie, []string{"pie"}},
	{intent.ChartHeatmap, []string{"heatmap", "heat map"}},
	{intent.ChartVolume, []string{"volume"}},
}

func matchChartKind(lower string) intent.ChartKind {
	for _, r := range chartRules {
		if containsAny(lower, r.keywords...) {
			return r.kind
		}
	}
	return intent.ChartTimeSeries
}

// derivedRule pairs a predicate over the lower-cased command with the
// derived kind it selects. Order is the tie-break and must not change.
type derivedRule struct {
	kind  intent.DerivedKind
	match func(lower string) bool
}

var derivedRules = []derivedRule{
	{intent.DerivedCorrelationMatrix, func(s string) bool {
		return strings.Contains(s, "correlation")
	}},
	{intent.DerivedMarketCapPE, func(s string) bool {
		return mentionsMarketCap(s) && containsAny(s, "p/e ratio", "pe ratio", "p/e", "price-to-earnings", "price to earnings")
	}},
	{intent.DerivedSectorMarketCapPie, func(s string) bool {
		return strings.Contains(s, "sector") && mentionsMarketCap(s) && strings.Contains(s, "pie")
	}},
	{intent.DerivedSectorMarketCap, func(s string) bool {
		return strings.Contains(s, "sector") && mentionsMarketCap(s)
	}},
	{intent.DerivedSectorDistribution, func(s string) bool {
		return containsAny(s, "sector distribution", "distribution of companies", "companies by sector",
			"companies per sector", "companies in each sector", "number of companies")
	}},
	{intent.DerivedTopMarketCap, func(s string) bool {
		return mentionsMarketCap(s) && containsAny(s, "top", "largest", "highest", "biggest")
	}},
	{intent.DerivedVolumePriceScatter, func(s string) bool {
		return strings.Contains(s, "volume") && strings.Contains(s, "price") &&
			containsAny(s, "scatter", "average volume", "average trading volume", "versus", " vs")
	}},
	{intent.DerivedDividendsPerShare, func(s string) bool {
		return strings.Contains(s, "dividend")
	}},
	{intent.DerivedCumulativeReturn, func(s string) bool {
		return strings.Contains(s, "cumulative return")
	}},
	{intent.DerivedRollingAvg, func(s string) bool {
		return containsAny(s, "rolling average", "moving average", "rolling mean")
	}},
	{intent.DerivedMonthlyAvgClose, func(s string) bool {
		return containsAny(s, "average monthly closing price", "monthly average closing price",
			"average monthly close", "monthly average close", "average closing price for each month",
			"average closing price by month", "average closing price per month")
	}},
	{intent.DerivedHighLowRange, func(s string) bool {
		return containsAny(s, "high-low", "high/low", "high and low", "high low", "price range", "trading range")
	}},
	{intent.DerivedDailyReturnsBoxplot, func(s string) bool {
		return strings.Contains(s, "daily return") && containsAny(s, "boxplot", "box plot")
	}},
	{intent.DerivedDailyVolume, func(s string) bool {
		return containsAny(s, "daily trading volume", "daily volume", "trading volume")
	}},
}

func matchDerivedKind(lower string) intent.DerivedKind {
	for _, r := range derivedRules {
		if r.match(lower) {
			return r.kind
		}
	}
	return intent.DerivedNone
}

func mentionsMarketCap(s string) bool {
	return containsAny(s, "market cap", "market capitalization", "market capitalisation")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var (
	tickerPattern     = regexp.MustCompile(`\(([A-Z]+)\)`)
	tickerListPattern = regexp.MustCompile(`\b[Ff][Oo][Rr]\s+([A-Z]{1,6}\b(?:\s*,\s*(?:and\s+)?[A-Z]{1,6}\b|\s+and\s+[A-Z]{1,6}\b)*)`)
	tickerToken       = regexp.MustCompile(`[A-Z]{1,6}`)
	windowPattern     = regexp.MustCompile(`(?i)\b(\d+)\s*-?\s*days?\b`)
	topNPattern       = regexp.MustCompile(`(?i)\btop\s+(\d+)\b`)
)

// notTickers are upper-case words a ticker list scan can pick up by
// accident.
var notTickers = map[string]bool{
	"PLOT":        true,
	"HEATMAP":     true,
	"CORRELATION": true,
	"MATRIX":      true,
	"AND":         true,
	"FOR":         true,
	"THE":         true,
	"DJIA":        true,
	"DAILY":       true,
	"RETURNS":     true,
}

func extractTicker(command string) string {
	if m := tickerPattern.FindStringSubmatch(command); m != nil {
		return m[1]
	}
	return intent.GroupTicker
}

// extractTickerSet reads the first "for A, B, C" list that yields at least
// one ticker, falling back to every parenthesised ticker.
func extractTickerSet(command string) []string {
	for _, m := range tickerListPattern.FindAllStringSubmatch(command, -1) {
		if set := uniqueTickers(tickerToken.FindAllString(m[1], -1)); len(set) > 0 {
			return set
		}
	}
	var paren []string
	for _, m := range tickerPattern.FindAllStringSubmatch(command, -1) {
		paren = append(paren, m[1])
	}
	return uniqueTickers(paren)
}

func uniqueTickers(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, tok := range tokens {
		if notTickers[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
