// Package intent holds the structured representation of a plot request:
// which chart to draw, over which tickers and which dates.
package intent

import (
	"errors"
	"fmt"
	"time"
)

// ChartKind is the base chart type named in a command.
type ChartKind string

const (
	ChartTimeSeries ChartKind = "time_series"
	ChartHistogram  ChartKind = "histogram"
	ChartBoxplot    ChartKind = "boxplot"
	ChartScatter    ChartKind = "scatter"
	ChartBar        ChartKind = "bar"
	ChartPie        ChartKind = "pie"
	ChartHeatmap    ChartKind = "heatmap"
	ChartVolume     ChartKind = "volume"
)

// DerivedKind is the statistical transformation requested on top of the
// base chart. The zero value means none.
type DerivedKind string

const (
	DerivedNone                DerivedKind = ""
	DerivedMonthlyAvgClose     DerivedKind = "monthly_avg_close"
	DerivedTopMarketCap        DerivedKind = "top_market_cap"
	DerivedMarketCapPE         DerivedKind = "market_cap_pe"
	DerivedSectorDistribution  DerivedKind = "sector_distribution"
	DerivedCorrelationMatrix   DerivedKind = "correlation_matrix"
	DerivedDailyVolume         DerivedKind = "daily_volume"
	DerivedRollingAvg          DerivedKind = "rolling_avg"
	DerivedSectorMarketCap     DerivedKind = "sector_market_cap"
	DerivedVolumePriceScatter  DerivedKind = "volume_price_scatter"
	DerivedCumulativeReturn    DerivedKind = "cumulative_return"
	DerivedHighLowRange        DerivedKind = "high_low_range"
	DerivedDailyReturnsBoxplot DerivedKind = "daily_returns_boxplot"
	DerivedDividendsPerShare   DerivedKind = "dividends_per_share"
	DerivedSectorMarketCapPie  DerivedKind = "sector_market_cap_pie"
)

const (
	// GroupTicker stands for all index constituents, not a literal symbol.
	GroupTicker = "DJIA"

	DefaultRollingWindow = 30
	DefaultTopN          = 10

	// seriesLookback is how far back a series reaches when only an as-of
	// date is known.
	seriesLookback = 365 * 24 * time.Hour
)

// ErrInvalid marks an intent that cannot be fetched as-is.
var ErrInvalid = errors.New("invalid plot intent")

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s to %s", r.Start.Format(dateLayout), r.End.Format(dateLayout))
}

// Intent is what to plot. After Normalize exactly one of DateRange and AsOf
// is set.
type Intent struct {
	Chart         ChartKind   `json:"chart_kind"`
	Derived       DerivedKind `json:"derived_kind,omitempty"`
	PrimaryTicker string      `json:"primary_ticker"`
	TickerSet     []string    `json:"ticker_set,omitempty"`
	DateRange     *DateRange  `json:"date_range,omitempty"`
	AsOf          *time.Time  `json:"as_of_date,omitempty"`
	RollingWindow int         `json:"rolling_window_days,omitempty"`
	TopN          int         `json:"top_n,omitempty"`

	// DateFallback is set when the command carried no date and the latest
	// trading date in the database was used instead.
	DateFallback bool   `json:"date_fallback,omitempty"`
	Command      string `json:"command,omitempty"`
}

// New returns an intent with the defaults applied.
func New(chart ChartKind, derived DerivedKind) Intent {
	return Intent{
		Chart:         chart,
		Derived:       derived,
		PrimaryTicker: GroupTicker,
		RollingWindow: DefaultRollingWindow,
		TopN:          DefaultTopN,
	}
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MonthRange covers every day of the given month.
func MonthRange(year int, month time.Month) DateRange {
	start := Date(year, month, 1)
	return DateRange{Start: start, End: start.AddDate(0, 1, -1)}
}

// YearRange covers Jan 1 through Dec 31 of year.
func YearRange(year int) DateRange {
	return DateRange{Start: Date(year, time.January, 1), End: Date(year, time.December, 31)}
}

// Variant resolves the closed chart variant for this intent.
func (i Intent) Variant() (Variant, error) {
	return Resolve(i.Chart, i.Derived)
}

// NeedsTickerSet reports whether the command should be scanned for a
// ticker list.
func (i Intent) NeedsTickerSet() bool {
	return i.Chart == ChartHeatmap || i.Derived == DerivedCorrelationMatrix
}

// IsGroup reports whether the intent targets all constituents.
func (i Intent) IsGroup() bool {
	return i.PrimaryTicker == "" || i.PrimaryTicker == GroupTicker
}

// Normalize applies defaults and settles the date invariant for the
// resolved variant: cross-sectional charts keep a single as-of date,
// series charts keep a range.
func (i *Intent) Normalize() error {
	if i.PrimaryTicker == "" {
		i.PrimaryTicker = GroupTicker
	}
	if i.Chart == "" {
		i.Chart = ChartTimeSeries
	}
	if i.RollingWindow == 0 {
		i.RollingWindow = DefaultRollingWindow
	}
	if i.TopN == 0 {
		i.TopN = DefaultTopN
	}

	v, err := i.Variant()
	if err != nil {
		return err
	}

	if v.CrossSectional() {
		if i.AsOf == nil && i.DateRange != nil {
			end := Day(i.DateRange.End)
			i.AsOf = &end
		}
		i.DateRange = nil
		if i.AsOf != nil {
			d := Day(*i.AsOf)
			i.AsOf = &d
		}
		return nil
	}

	if i.DateRange == nil && i.AsOf != nil {
		end := Day(*i.AsOf)
		i.DateRange = &DateRange{Start: Day(end.Add(-seriesLookback)).AddDate(0, 0, 1), End: end}
	}
	i.AsOf = nil
	if i.DateRange != nil {
		i.DateRange.Start = Day(i.DateRange.Start)
		i.DateRange.End = Day(i.DateRange.End)
	}
	return nil
}

// Validate checks an already normalized intent.
func (i Intent) Validate() error {
	v, err := i.Variant()
	if err != nil {
		return err
	}
	switch {
	case i.DateRange == nil && i.AsOf == nil:
		return fmt.Errorf("%w: no date range or as-of date", ErrInvalid)
	case i.DateRange != nil && i.AsOf != nil:
		return fmt.Errorf("%w: both date range and as-of date set", ErrInvalid)
	case i.DateRange != nil && i.DateRange.End.Before(i.DateRange.Start):
		return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalid,
			i.DateRange.Start.Format(dateLayout), i.DateRange.End.Format(dateLayout))
	case i.RollingWindow <= 0:
		return fmt.Errorf("%w: rolling window must be positive, got %d", ErrInvalid, i.RollingWindow)
	case i.TopN <= 0:
		return fmt.Errorf("%w: top count must be positive, got %d", ErrInvalid, i.TopN)
	}
	if v == VariantCorrelationMatrix && len(i.TickerSet) < 2 {
		return fmt.Errorf("%w: correlation needs at least two tickers, got %d", ErrInvalid, len(i.TickerSet))
	}
	return nil
}

// Period describes the dates an intent covers, for titles and messages.
func (i Intent) Period() string {
	switch {
	case i.DateRange != nil:
		return "from " + i.DateRange.Start.Format(dateLayout) + " to " + i.DateRange.End.Format(dateLayout)
	case i.AsOf != nil:
		return "as of " + i.AsOf.Format(dateLayout)
	}
	return ""
}
