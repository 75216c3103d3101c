package intent

import "fmt"

// Variant is the closed set of fetch/draw combinations. Every
// (ChartKind, DerivedKind) pair resolves to exactly one of them.
type Variant int

const (
	VariantClosePrice Variant = iota + 1
	VariantReturnHistogram
	VariantMonthlyCloseBoxplot
	VariantDailyReturnsBoxplot
	VariantCumulativeReturn
	VariantRollingAverage
	VariantMonthlyAvgClose
	VariantDailyVolume
	VariantHighLowRange
	VariantTopMarketCap
	VariantMarketCapPE
	VariantSectorDistribution
	VariantSectorMarketCap
	VariantSectorMarketCapPie
	VariantCorrelationMatrix
	VariantDividendsPerShare
	VariantVolumePriceScatter
)

var variantNames = map[Variant]string{
	VariantClosePrice:          "close_price",
	VariantReturnHistogram:     "return_histogram",
	VariantMonthlyCloseBoxplot: "monthly_close_boxplot",
	VariantDailyReturnsBoxplot: "daily_returns_boxplot",
	VariantCumulativeReturn:    "cumulative_return",
	VariantRollingAverage:      "rolling_average",
	VariantMonthlyAvgClose:     "monthly_avg_close",
	VariantDailyVolume:         "daily_volume",
	VariantHighLowRange:        "high_low_range",
	VariantTopMarketCap:        "top_market_cap",
	VariantMarketCapPE:         "market_cap_pe",
	VariantSectorDistribution:  "sector_distribution",
	VariantSectorMarketCap:     "sector_market_cap",
	VariantSectorMarketCapPie:  "sector_market_cap_pie",
	VariantCorrelationMatrix:   "correlation_matrix",
	VariantDividendsPerShare:   "dividends_per_share",
	VariantVolumePriceScatter:  "volume_price_scatter",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// Variants lists every variant in declaration order.
func Variants() []Variant {
	out := make([]Variant, 0, len(variantNames))
	for v := VariantClosePrice; v <= VariantVolumePriceScatter; v++ {
		out = append(out, v)
	}
	return out
}

// CrossSectional reports whether the variant is a single-date snapshot
// across tickers.
func (v Variant) CrossSectional() bool {
	switch v {
	case VariantTopMarketCap, VariantMarketCapPE, VariantSectorDistribution,
		VariantSectorMarketCap, VariantSectorMarketCapPie:
		return true
	}
	return false
}

// ChartKind is the kind of chart the variant actually draws, used for
// artifact names. requested only matters where a variant has two drawings.
func (v Variant) ChartKind(requested ChartKind) ChartKind {
	switch v {
	case VariantClosePrice, VariantCumulativeReturn, VariantRollingAverage, VariantHighLowRange:
		return ChartTimeSeries
	case VariantReturnHistogram:
		return ChartHistogram
	case VariantMonthlyCloseBoxplot, VariantDailyReturnsBoxplot:
		return ChartBoxplot
	case VariantDailyVolume:
		return ChartVolume
	case VariantMonthlyAvgClose:
		if requested == ChartBar {
			return ChartBar
		}
		return ChartTimeSeries
	case VariantSectorDistribution:
		if requested == ChartPie {
			return ChartPie
		}
		return ChartBar
	case VariantTopMarketCap, VariantSectorMarketCap, VariantDividendsPerShare:
		return ChartBar
	case VariantSectorMarketCapPie:
		return ChartPie
	case VariantMarketCapPE, VariantVolumePriceScatter:
		return ChartScatter
	case VariantCorrelationMatrix:
		return ChartHeatmap
	}
	return requested
}

var chartDefaults = map[ChartKind]Variant{
	ChartTimeSeries: VariantClosePrice,
	ChartHistogram:  VariantReturnHistogram,
	ChartBoxplot:    VariantMonthlyCloseBoxplot,
	ChartScatter:    VariantMarketCapPE,
	ChartBar:        VariantTopMarketCap,
	ChartPie:        VariantSectorDistribution,
	ChartHeatmap:    VariantCorrelationMatrix,
	ChartVolume:     VariantDailyVolume,
}

var derivedVariants = map[DerivedKind]Variant{
	DerivedMonthlyAvgClose:     VariantMonthlyAvgClose,
	DerivedTopMarketCap:        VariantTopMarketCap,
	DerivedMarketCapPE:         VariantMarketCapPE,
	DerivedSectorDistribution:  VariantSectorDistribution,
	DerivedCorrelationMatrix:   VariantCorrelationMatrix,
	DerivedDailyVolume:         VariantDailyVolume,
	DerivedRollingAvg:          VariantRollingAverage,
	DerivedSectorMarketCap:     VariantSectorMarketCap,
	DerivedVolumePriceScatter:  VariantVolumePriceScatter,
	DerivedCumulativeReturn:    VariantCumulativeReturn,
	DerivedHighLowRange:        VariantHighLowRange,
	DerivedDailyReturnsBoxplot: VariantDailyReturnsBoxplot,
	DerivedDividendsPerShare:   VariantDividendsPerShare,
	DerivedSectorMarketCapPie:  VariantSectorMarketCapPie,
}

// Resolve maps a (chart, derived) pair to its variant. The derived kind
// wins when present; a sector market cap asked for as a pie becomes the
// pie variant.
func Resolve(chart ChartKind, derived DerivedKind) (Variant, error) {
	if _, ok := chartDefaults[chart]; !ok {
		return 0, fmt.Errorf("%w: unknown chart kind %q", ErrInvalid, chart)
	}
	if derived == DerivedNone {
		return chartDefaults[chart], nil
	}
	v, ok := derivedVariants[derived]
	if !ok {
		return 0, fmt.Errorf("%w: unknown derived kind %q", ErrInvalid, derived)
	}
	if v == VariantSectorMarketCap && chart == ChartPie {
		return VariantSectorMarketCapPie, nil
	}
	return v, nil
}
