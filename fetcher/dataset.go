package fetcher

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/models"
)

// Dataset is the tabular result of a fetch. The concrete shapes are
// *Series, *MonthlyAverages, *Snapshot, *SectorBreakdown, *Correlation and
// *TickerAggregates.
type Dataset interface {
	Variant() intent.Variant
	// Rows is the number of drawable rows; zero means nothing to plot.
	Rows() int
	dataset()
}

// DateResolution records how a requested as-of date mapped onto a trading
// date.
type DateResolution struct {
	Requested   time.Time
	AsOf        time.Time
	Substituted bool
}

// Resolution exposes the date resolution of cross-sectional datasets.
func (r DateResolution) Resolution() DateResolution { return r }

// Point is one trading day with its derived columns. Derived values that
// are undefined for a row are NaN.
type Point struct {
	Date      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Dividends float64

	// DailyReturn is the close-to-close change in percent.
	DailyReturn float64
	Month       string

	CumulativeReturn float64
	RollingAvg       float64
	Range            float64
	RangePercent     float64
}

// Series is a per-date history for one ticker or the DJIA group.
type Series struct {
	variant intent.Variant
	Ticker  string
	Range   intent.DateRange
	Window  int
	Points  []Point
}

func (s *Series) Variant() intent.Variant { return s.variant }
func (s *Series) Rows() int               { return len(s.Points) }
func (*Series) dataset()                  {}

// Closes returns the close column.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// MonthValue is one calendar month of an aggregate.
type MonthValue struct {
	Month string
	Value float64
}

// MonthlyAverages holds the mean close per calendar month, Jan..Dec.
type MonthlyAverages struct {
	Ticker string
	Range  intent.DateRange
	Months []MonthValue
}

func (*MonthlyAverages) Variant() intent.Variant { return intent.VariantMonthlyAvgClose }
func (m *MonthlyAverages) Rows() int             { return len(m.Months) }
func (*MonthlyAverages) dataset()                {}

// SnapshotEntry is one ticker on the resolved trading date. MarketCap
// (volume×close) and PERatio (close/10) are rough estimates: the schema
// carries no share counts or earnings.
type SnapshotEntry struct {
	Ticker    string
	Sector    string
	Close     float64
	Volume    int64
	MarketCap float64
	PERatio   float64
}

// Snapshot is a cross-section of all tickers on a single date.
type Snapshot struct {
	DateResolution
	variant intent.Variant
	Entries []SnapshotEntry
}

func (s *Snapshot) Variant() intent.Variant { return s.variant }
func (s *Snapshot) Rows() int               { return len(s.Entries) }
func (*Snapshot) dataset()                  {}

const (
	MeasureCount     = "count"
	MeasureMarketCap = "market_cap"
)

// SectorValue is one sector of a breakdown.
type SectorValue struct {
	Sector string
	Value  float64
}

// SectorBreakdown aggregates a snapshot per sector, largest first.
type SectorBreakdown struct {
	DateResolution
	variant intent.Variant
	Measure string
	Sectors []SectorValue
}

func (b *SectorBreakdown) Variant() intent.Variant { return b.variant }
func (b *SectorBreakdown) Rows() int               { return len(b.Sectors) }
func (*SectorBreakdown) dataset()                  {}

// Total sums all sector values.
func (b *SectorBreakdown) Total() float64 {
	var total float64
	for _, s := range b.Sectors {
		total += s.Value
	}
	return total
}

// Correlation is the Pearson matrix of daily returns across Tickers, in
// Tickers order.
type Correlation struct {
	Tickers []string
	Range   intent.DateRange
	// Dates is the number of common trading dates used.
	Dates  int
	Matrix *mat.SymDense
}

func (*Correlation) Variant() intent.Variant { return intent.VariantCorrelationMatrix }
func (c *Correlation) Rows() int {
	if c.Matrix == nil {
		return 0
	}
	return len(c.Tickers)
}
func (*Correlation) dataset() {}

// TickerAggregates holds per-ticker totals over a range.
type TickerAggregates struct {
	variant intent.Variant
	Ticker  string
	Range   intent.DateRange
	Totals  []models.TickerTotals
}

func (a *TickerAggregates) Variant() intent.Variant { return a.variant }
func (a *TickerAggregates) Rows() int               { return len(a.Totals) }
func (*TickerAggregates) dataset()                  {}

func NewSeries(v intent.Variant, ticker string, rng intent.DateRange, window int, points []Point) *Series {
	return &Series{variant: v, Ticker: ticker, Range: rng, Window: window, Points: points}
}

func NewSnapshot(v intent.Variant, res DateResolution, entries []SnapshotEntry) *Snapshot {
	return &Snapshot{DateResolution: res, variant: v, Entries: entries}
}

func NewSectorBreakdown(v intent.Variant, res DateResolution, measure string, sectors []SectorValue) *SectorBreakdown {
	return &SectorBreakdown{DateResolution: res, variant: v, Measure: measure, Sectors: sectors}
}

func NewTickerAggregates(v intent.Variant, ticker string, rng intent.DateRange, totals []models.TickerTotals) *TickerAggregates {
	return &TickerAggregates{variant: v, Ticker: ticker, Range: rng, Totals: totals}
}
