package fetcher

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/models"
)

// fakeSource serves fixed rows and filters them like the SQL queries do.
type fakeSource struct {
	prices    []models.Price
	companies map[string]string
	err       error
}

func (s *fakeSource) inRange(p models.Price, rng intent.DateRange) bool {
	return !p.Date.Before(rng.Start) && !p.Date.After(rng.End)
}

func (s *fakeSource) TradingDateOnOrBefore(_ context.Context, day time.Time) (time.Time, bool, error) {
	if s.err != nil {
		return time.Time{}, false, s.err
	}
	var best time.Time
	for _, p := range s.prices {
		if !p.Date.After(day) && p.Date.After(best) {
			best = p.Date
		}
	}
	return best, !best.IsZero(), nil
}

func (s *fakeSource) DailyPrices(_ context.Context, ticker string, rng intent.DateRange) ([]models.Price, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Price
	for _, p := range s.prices {
		if p.Ticker == ticker && s.inRange(p, rng) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeSource) Closes(_ context.Context, tickers []string, rng intent.DateRange) ([]models.Price, error) {
	var out []models.Price
	for _, p := range s.prices {
		for _, t := range tickers {
			if p.Ticker == t && s.inRange(p, rng) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *fakeSource) Snapshot(_ context.Context, day time.Time) ([]models.SnapshotRow, error) {
	var out []models.SnapshotRow
	for _, p := range s.prices {
		if p.Date.Equal(day) {
			out = append(out, models.SnapshotRow{Ticker: p.Ticker, Sector: s.companies[p.Ticker], Close: p.Close, Volume: p.Volume})
		}
	}
	return out, nil
}

func (s *fakeSource) TickerTotals(_ context.Context, ticker string, rng intent.DateRange) ([]models.TickerTotals, error) {
	byTicker := map[string]*models.TickerTotals{}
	counts := map[string]float64{}
	var order []string
	for _, p := range s.prices {
		if !s.inRange(p, rng) || (ticker != intent.GroupTicker && p.Ticker != ticker) {
			continue
		}
		t, ok := byTicker[p.Ticker]
		if !ok {
			t = &models.TickerTotals{Ticker: p.Ticker, Sector: s.companies[p.Ticker]}
			byTicker[p.Ticker] = t
			order = append(order, p.Ticker)
		}
		t.TotalDividends += p.Dividends
		t.AvgVolume += float64(p.Volume)
		t.AvgClose += p.Close
		counts[p.Ticker]++
	}
	var out []models.TickerTotals
	for _, name := range order {
		t := byTicker[name]
		t.AvgVolume /= counts[name]
		t.AvgClose /= counts[name]
		out = append(out, *t)
	}
	return out, nil
}

func day(m time.Month, d int) time.Time { return intent.Date(2024, m, d) }

func testSource() *fakeSource {
	closes := map[string][]float64{
		"AAPL": {100, 102, 101, 105, 107},
		"MSFT": {400, 404, 398, 410, 415},
		"KO":   {60, 60.5, 61, 60.2, 60.8},
	}
	dates := []time.Time{day(time.June, 3), day(time.June, 4), day(time.June, 5), day(time.July, 1), day(time.July, 2)}
	volumes := map[string]int64{"AAPL": 1000, "MSFT": 500, "KO": 3000}

	src := &fakeSource{companies: map[string]string{"AAPL": "Technology", "MSFT": "Technology", "KO": "Consumer Defensive"}}
	for ticker, cs := range closes {
		for i, c := range cs {
			div := 0.0
			if ticker == "KO" && i == 3 {
				div = 0.485
			}
			src.prices = append(src.prices, models.Price{
				Ticker: ticker, Date: dates[i],
				Open: c - 1, High: c + 2, Low: c - 2, Close: c,
				Volume: volumes[ticker], Dividends: div,
			})
		}
	}
	return src
}

func seriesIntent(chart intent.ChartKind, derived intent.DerivedKind, ticker string) intent.Intent {
	in := intent.New(chart, derived)
	in.PrimaryTicker = ticker
	in.DateRange = &intent.DateRange{Start: day(time.June, 1), End: day(time.July, 31)}
	return in
}

func snapshotIntent(chart intent.ChartKind, derived intent.DerivedKind, asOf time.Time) intent.Intent {
	in := intent.New(chart, derived)
	in.AsOf = &asOf
	return in
}

func TestFetchTimeSeries(t *testing.T) {
	f := New(testSource(), zerolog.Nop())

	ds, err := f.Fetch(context.Background(), seriesIntent(intent.ChartTimeSeries, intent.DerivedNone, "AAPL"))
	require.NoError(t, err)

	series, ok := ds.(*Series)
	require.True(t, ok)
	assert.Equal(t, intent.VariantClosePrice, series.Variant())
	require.Equal(t, 5, series.Rows())

	assert.True(t, math.IsNaN(series.Points[0].DailyReturn))
	assert.InDelta(t, 2.0, series.Points[1].DailyReturn, 1e-9)
	assert.Equal(t, "June", series.Points[0].Month)
	assert.Equal(t, "July", series.Points[4].Month)
	assert.InDelta(t, 4.0, series.Points[0].Range, 1e-9)
	assert.InDelta(t, 4.0/98*100, series.Points[0].RangePercent, 1e-9)
}

func TestCumulativeReturnMatchesReference(t *testing.T) {
	f := New(testSource(), zerolog.Nop())

	ds, err := f.Fetch(context.Background(), seriesIntent(intent.ChartTimeSeries, intent.DerivedCumulativeReturn, "MSFT"))
	require.NoError(t, err)
	series := ds.(*Series)
	assert.Equal(t, intent.VariantCumulativeReturn, series.Variant())

	closes := series.Closes()
	prod := 1.0
	for i := 1; i < len(closes); i++ {
		prod *= 1 + (closes[i]/closes[i-1] - 1)
	}
	want := (prod - 1) * 100

	last := series.Points[len(series.Points)-1].CumulativeReturn
	assert.InDelta(t, want, last, 1e-9)
	assert.InDelta(t, (415.0/400-1)*100, last, 1e-9)

	again, err := f.Fetch(context.Background(), seriesIntent(intent.ChartTimeSeries, intent.DerivedCumulativeReturn, "MSFT"))
	require.NoError(t, err)
	assert.Equal(t, last, again.(*Series).Points[4].CumulativeReturn)
}

func TestFetchRollingAverage(t *testing.T) {
	in := seriesIntent(intent.ChartTimeSeries, intent.DerivedRollingAvg, "AAPL")
	in.RollingWindow = 3

	ds, err := New(testSource(), zerolog.Nop()).Fetch(context.Background(), in)
	require.NoError(t, err)
	points := ds.(*Series).Points

	assert.True(t, math.IsNaN(points[0].RollingAvg))
	assert.True(t, math.IsNaN(points[1].RollingAvg))
	assert.InDelta(t, (100+102+101)/3.0, points[2].RollingAvg, 1e-9)
	assert.InDelta(t, (101+105+107)/3.0, points[4].RollingAvg, 1e-9)
}

func TestFetchMonthlyAverages(t *testing.T) {
	ds, err := New(testSource(), zerolog.Nop()).Fetch(context.Background(),
		seriesIntent(intent.ChartBar, intent.DerivedMonthlyAvgClose, "AAPL"))
	require.NoError(t, err)

	monthly, ok := ds.(*MonthlyAverages)
	require.True(t, ok)
	require.Len(t, monthly.Months, 2)
	assert.Equal(t, MonthValue{Month: "Jun", Value: 101}, monthly.Months[0])
	assert.Equal(t, MonthValue{Month: "Jul", Value: 106}, monthly.Months[1])
}

func TestFetchNoData(t *testing.T) {
	_, err := New(testSource(), zerolog.Nop()).Fetch(context.Background(),
		seriesIntent(intent.ChartTimeSeries, intent.DerivedNone, "IBM"))

	var noData *NoDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, "IBM", noData.Ticker)
	assert.Contains(t, err.Error(), "from 2024-06-01 to 2024-07-31")
}

func TestFetchSourceErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := New(&fakeSource{err: boom}, zerolog.Nop()).Fetch(context.Background(),
		seriesIntent(intent.ChartTimeSeries, intent.DerivedNone, "AAPL"))
	assert.ErrorIs(t, err, boom)
}

func TestFetchTopMarketCapSubstitutesPriorDate(t *testing.T) {
	in := snapshotIntent(intent.ChartBar, intent.DerivedTopMarketCap, day(time.June, 9))
	in.TopN = 2

	ds, err := New(testSource(), zerolog.Nop()).Fetch(context.Background(), in)
	require.NoError(t, err)

	snap := ds.(*Snapshot)
	assert.True(t, snap.Substituted)
	assert.Equal(t, day(time.June, 9), snap.Requested)
	assert.Equal(t, day(time.June, 5), snap.AsOf)

	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "MSFT", snap.Entries[0].Ticker)
	assert.InDelta(t, 500*398.0, snap.Entries[0].MarketCap, 1e-9)
	assert.InDelta(t, 39.8, snap.Entries[0].PERatio, 1e-9)
	assert.Equal(t, "KO", snap.Entries[1].Ticker)
	assert.InDelta(t, 3000*61.0, snap.Entries[1].MarketCap, 1e-9)
}

func TestFetchSnapshotBeforeHistory(t *testing.T) {
	in := snapshotIntent(intent.ChartScatter, intent.DerivedMarketCapPE, intent.Date(2010, time.January, 4))
	_, err := New(testSource(), zerolog.Nop()).Fetch(context.Background(), in)

	var noData *NoDataError
	assert.ErrorAs(t, err, &noData)
}

func TestFetchSectorBreakdown(t *testing.T) {
	f := New(testSource(), zerolog.Nop())

	ds, err := f.Fetch(context.Background(), snapshotIntent(intent.ChartPie, intent.DerivedSectorDistribution, day(time.June, 3)))
	require.NoError(t, err)
	count := ds.(*SectorBreakdown)
	assert.False(t, count.Substituted)
	assert.Equal(t, MeasureCount, count.Measure)
	assert.Equal(t, []SectorValue{{"Technology", 2}, {"Consumer Defensive", 1}}, count.Sectors)

	ds, err = f.Fetch(context.Background(), snapshotIntent(intent.ChartPie, intent.DerivedSectorMarketCap, day(time.June, 3)))
	require.NoError(t, err)
	mcap := ds.(*SectorBreakdown)
	assert.Equal(t, intent.VariantSectorMarketCapPie, mcap.Variant())
	assert.Equal(t, MeasureMarketCap, mcap.Measure)
	assert.InDelta(t, 1000*100.0+500*400.0+3000*60.0, mcap.Total(), 1e-6)
}

func TestFetchCorrelation(t *testing.T) {
	in := seriesIntent(intent.ChartHeatmap, intent.DerivedCorrelationMatrix, intent.GroupTicker)
	in.TickerSet = []string{"AAPL", "MSFT", "KO"}

	ds, err := New(testSource(), zerolog.Nop()).Fetch(context.Background(), in)
	require.NoError(t, err)

	corr := ds.(*Correlation)
	assert.Equal(t, 5, corr.Dates)
	n, m := corr.Matrix.Dims()
	require.Equal(t, 3, n)
	require.Equal(t, 3, m)
	for i := 0; i < n; i++ {
		assert.InDelta(t, 1.0, corr.Matrix.At(i, i), 1e-9)
		for j := 0; j < n; j++ {
			assert.Equal(t, corr.Matrix.At(i, j), corr.Matrix.At(j, i))
			assert.LessOrEqual(t, math.Abs(corr.Matrix.At(i, j)), 1.0+1e-9)
		}
	}
}

func TestFetchCorrelationPartialData(t *testing.T) {
	in := seriesIntent(intent.ChartHeatmap, intent.DerivedCorrelationMatrix, intent.GroupTicker)
	in.TickerSet = []string{"AAPL", "GOOGL", "MSFT", "NVDA"}

	_, err := New(testSource(), zerolog.Nop()).Fetch(context.Background(), in)

	var partial *PartialDataError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"GOOGL", "NVDA"}, partial.Missing)
}

func TestFetchDividends(t *testing.T) {
	ds, err := New(testSource(), zerolog.Nop()).Fetch(context.Background(),
		seriesIntent(intent.ChartBar, intent.DerivedDividendsPerShare, intent.GroupTicker))
	require.NoError(t, err)

	agg := ds.(*TickerAggregates)
	require.Len(t, agg.Totals, 3)
	assert.Equal(t, "KO", agg.Totals[0].Ticker)
	assert.InDelta(t, 0.485, agg.Totals[0].TotalDividends, 1e-9)
}

func TestEveryVariantHasAQuery(t *testing.T) {
	for _, v := range intent.Variants() {
		_, ok := fetchers[v]
		assert.True(t, ok, "variant %s has no query", v)
	}
}

func TestDeriveHelpers(t *testing.T) {
	ret := PctChange([]float64{10, 11, 9.9})
	assert.True(t, math.IsNaN(ret[0]))
	assert.InDelta(t, 0.1, ret[1], 1e-12)
	assert.InDelta(t, -0.1, ret[2], 1e-12)

	cum := CumulativeReturn(ret)
	assert.True(t, math.IsNaN(cum[0]))
	assert.InDelta(t, -1.0, cum[2], 1e-9)

	short := RollingMean([]float64{1, 2}, 5)
	assert.True(t, math.IsNaN(short[0]))
	assert.True(t, math.IsNaN(short[1]))
}
