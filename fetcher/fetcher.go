// Package fetcher loads the data behind each chart variant and adds the
// derived columns the renderer draws.
package fetcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/logger"
	"github.com/viktsys/stockplot/models"
)

// Source is the read side of the price database.
type Source interface {
	TradingDateOnOrBefore(ctx context.Context, day time.Time) (time.Time, bool, error)
	DailyPrices(ctx context.Context, ticker string, rng intent.DateRange) ([]models.Price, error)
	Closes(ctx context.Context, tickers []string, rng intent.DateRange) ([]models.Price, error)
	Snapshot(ctx context.Context, day time.Time) ([]models.SnapshotRow, error)
	TickerTotals(ctx context.Context, ticker string, rng intent.DateRange) ([]models.TickerTotals, error)
}

// NoDataError means the query for the resolved ticker and dates returned
// no rows.
type NoDataError struct {
	Ticker string
	Period string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data found for %s %s", e.Ticker, e.Period)
}

// PartialDataError lists requested tickers that had no rows in range.
type PartialDataError struct {
	Missing []string
	Period  string
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("no data found for %s %s", strings.Join(e.Missing, ", "), e.Period)
}

type fetchFunc func(f *Fetcher, ctx context.Context, in intent.Intent, v intent.Variant) (Dataset, error)

// fetchers maps every variant to its query shape.
var fetchers = map[intent.Variant]fetchFunc{
	intent.VariantClosePrice:          (*Fetcher).series,
	intent.VariantReturnHistogram:     (*Fetcher).series,
	intent.VariantMonthlyCloseBoxplot: (*Fetcher).series,
	intent.VariantDailyReturnsBoxplot: (*Fetcher).series,
	intent.VariantCumulativeReturn:    (*Fetcher).series,
	intent.VariantRollingAverage:      (*Fetcher).series,
	intent.VariantDailyVolume:         (*Fetcher).series,
	intent.VariantHighLowRange:        (*Fetcher).series,
	intent.VariantMonthlyAvgClose:     (*Fetcher).monthlyAverages,
	intent.VariantTopMarketCap:        (*Fetcher).snapshot,
	intent.VariantMarketCapPE:         (*Fetcher).snapshot,
	intent.VariantSectorDistribution:  (*Fetcher).sectors,
	intent.VariantSectorMarketCap:     (*Fetcher).sectors,
	intent.VariantSectorMarketCapPie:  (*Fetcher).sectors,
	intent.VariantCorrelationMatrix:   (*Fetcher).correlation,
	intent.VariantDividendsPerShare:   (*Fetcher).tickerTotals,
	intent.VariantVolumePriceScatter:  (*Fetcher).tickerTotals,
}

type Fetcher struct {
	src Source
	log zerolog.Logger
}

func New(src Source, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		src: src,
		log: logger.Component(log, "fetcher"),
	}
}

// Fetch runs the query for the intent's variant. The intent must be
// normalized.
func (f *Fetcher) Fetch(ctx context.Context, in intent.Intent) (Dataset, error) {
	v, err := in.Variant()
	if err != nil {
		return nil, err
	}
	fn, ok := fetchers[v]
	if !ok {
		return nil, fmt.Errorf("no query for variant %s", v)
	}

	start := time.Now()
	ds, err := fn(f, ctx, in, v)
	if err != nil {
		return nil, err
	}
	f.log.Debug().
		Stringer("variant", v).
		Str("ticker", in.PrimaryTicker).
		Int("rows", ds.Rows()).
		Dur("took", time.Since(start)).
		Msg("dataset fetched")
	return ds, nil
}

func requireRange(in intent.Intent) (intent.DateRange, error) {
	if in.DateRange == nil {
		return intent.DateRange{}, fmt.Errorf("%w: series chart without a date range", intent.ErrInvalid)
	}
	return *in.DateRange, nil
}

func (f *Fetcher) dailyPrices(ctx context.Context, in intent.Intent) (intent.DateRange, []models.Price, error) {
	rng, err := requireRange(in)
	if err != nil {
		return rng, nil, err
	}
	prices, err := f.src.DailyPrices(ctx, in.PrimaryTicker, rng)
	if err != nil {
		return rng, nil, err
	}
	if len(prices) == 0 {
		return rng, nil, &NoDataError{Ticker: in.PrimaryTicker, Period: in.Period()}
	}
	return rng, prices, nil
}

func (f *Fetcher) series(ctx context.Context, in intent.Intent, v intent.Variant) (Dataset, error) {
	rng, prices, err := f.dailyPrices(ctx, in)
	if err != nil {
		return nil, err
	}
	return NewSeries(v, in.PrimaryTicker, rng, in.RollingWindow, buildPoints(prices, in.RollingWindow)), nil
}

func (f *Fetcher) monthlyAverages(ctx context.Context, in intent.Intent, _ intent.Variant) (Dataset, error) {
	rng, prices, err := f.dailyPrices(ctx, in)
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, len(prices))
	closes := make([]float64, len(prices))
	for i, p := range prices {
		dates[i] = p.Date
		closes[i] = p.Close
	}
	return &MonthlyAverages{Ticker: in.PrimaryTicker, Range: rng, Months: MonthlyMeans(dates, closes)}, nil
}

// resolveDate maps the as-of date onto the closest trading date not after
// it. A later date is never substituted.
func (f *Fetcher) resolveDate(ctx context.Context, in intent.Intent) (DateResolution, error) {
	if in.AsOf == nil {
		return DateResolution{}, fmt.Errorf("%w: snapshot chart without an as-of date", intent.ErrInvalid)
	}
	requested := intent.Day(*in.AsOf)
	day, ok, err := f.src.TradingDateOnOrBefore(ctx, requested)
	if err != nil {
		return DateResolution{}, err
	}
	if !ok {
		return DateResolution{}, &NoDataError{Ticker: in.PrimaryTicker, Period: "on or before " + requested.Format("2006-01-02")}
	}
	res := DateResolution{Requested: requested, AsOf: day, Substituted: !day.Equal(requested)}
	if res.Substituted {
		f.log.Info().
			Time("requested", requested).
			Time("as_of", day).
			Msg("no trading data on requested date, using most recent prior date")
	}
	return res, nil
}

func (f *Fetcher) snapshotRows(ctx context.Context, in intent.Intent) (DateResolution, []SnapshotEntry, error) {
	res, err := f.resolveDate(ctx, in)
	if err != nil {
		return res, nil, err
	}
	rows, err := f.src.Snapshot(ctx, res.AsOf)
	if err != nil {
		return res, nil, err
	}
	if len(rows) == 0 {
		return res, nil, &NoDataError{Ticker: in.PrimaryTicker, Period: "as of " + res.AsOf.Format("2006-01-02")}
	}

	entries := make([]SnapshotEntry, len(rows))
	for i, r := range rows {
		entries[i] = SnapshotEntry{
			Ticker:    r.Ticker,
			Sector:    r.Sector,
			Close:     r.Close,
			Volume:    r.Volume,
			MarketCap: float64(r.Volume) * r.Close,
			PERatio:   r.Close / 10,
		}
	}
	return res, entries, nil
}

func (f *Fetcher) snapshot(ctx context.Context, in intent.Intent, v intent.Variant) (Dataset, error) {
	res, entries, err := f.snapshotRows(ctx, in)
	if err != nil {
		return nil, err
	}
	if v == intent.VariantTopMarketCap {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].MarketCap > entries[j].MarketCap })
		if in.TopN > 0 && len(entries) > in.TopN {
			entries = entries[:in.TopN]
		}
	}
	return NewSnapshot(v, res, entries), nil
}

func (f *Fetcher) sectors(ctx context.Context, in intent.Intent, v intent.Variant) (Dataset, error) {
	res, entries, err := f.snapshotRows(ctx, in)
	if err != nil {
		return nil, err
	}

	measure := MeasureMarketCap
	if v == intent.VariantSectorDistribution {
		measure = MeasureCount
	}

	totals := make(map[string]float64)
	for _, e := range entries {
		sector := e.Sector
		if sector == "" {
			sector = "Unknown"
		}
		if measure == MeasureCount {
			totals[sector]++
		} else {
			totals[sector] += e.MarketCap
		}
	}

	sectors := make([]SectorValue, 0, len(totals))
	for name, value := range totals {
		sectors = append(sectors, SectorValue{Sector: name, Value: value})
	}
	sort.Slice(sectors, func(i, j int) bool {
		if sectors[i].Value != sectors[j].Value {
			return sectors[i].Value > sectors[j].Value
		}
		return sectors[i].Sector < sectors[j].Sector
	})
	return NewSectorBreakdown(v, res, measure, sectors), nil
}

func (f *Fetcher) correlation(ctx context.Context, in intent.Intent, _ intent.Variant) (Dataset, error) {
	rng, err := requireRange(in)
	if err != nil {
		return nil, err
	}
	rows, err := f.src.Closes(ctx, in.TickerSet, rng)
	if err != nil {
		return nil, err
	}

	closes := make(map[string]map[time.Time]float64, len(in.TickerSet))
	for _, r := range rows {
		byDate, ok := closes[r.Ticker]
		if !ok {
			byDate = make(map[time.Time]float64)
			closes[r.Ticker] = byDate
		}
		byDate[intent.Day(r.Date)] = r.Close
	}

	var missing []string
	for _, t := range in.TickerSet {
		if len(closes[t]) == 0 {
			missing = append(missing, t)
		}
	}
	switch {
	case len(missing) == len(in.TickerSet):
		return nil, &NoDataError{Ticker: strings.Join(in.TickerSet, ", "), Period: in.Period()}
	case len(missing) > 0:
		return nil, &PartialDataError{Missing: missing, Period: in.Period()}
	}

	dates := commonDates(closes, in.TickerSet)
	if len(dates) < 2 {
		return nil, &NoDataError{Ticker: strings.Join(in.TickerSet, ", "), Period: in.Period() + " (fewer than two common trading dates)"}
	}

	returns := mat.NewDense(len(dates), len(in.TickerSet), nil)
	for j, t := range in.TickerSet {
		col := make([]float64, len(dates))
		for i, d := range dates {
			col[i] = closes[t][d]
		}
		for i, r := range PctChange(col) {
			if i == 0 {
				r = 0
			}
			returns.Set(i, j, r*100)
		}
	}

	corr := &mat.SymDense{}
	stat.CorrelationMatrix(corr, returns, nil)
	return &Correlation{Tickers: in.TickerSet, Range: rng, Dates: len(dates), Matrix: corr}, nil
}

// commonDates returns the sorted dates on which every ticker has a close.
func commonDates(closes map[string]map[time.Time]float64, tickers []string) []time.Time {
	var dates []time.Time
	for d := range closes[tickers[0]] {
		shared := true
		for _, t := range tickers[1:] {
			if _, ok := closes[t][d]; !ok {
				shared = false
				break
			}
		}
		if shared {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func (f *Fetcher) tickerTotals(ctx context.Context, in intent.Intent, v intent.Variant) (Dataset, error) {
	rng, err := requireRange(in)
	if err != nil {
		return nil, err
	}
	totals, err := f.src.TickerTotals(ctx, in.PrimaryTicker, rng)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, &NoDataError{Ticker: in.PrimaryTicker, Period: in.Period()}
	}
	if v == intent.VariantDividendsPerShare {
		sort.SliceStable(totals, func(i, j int) bool { return totals[i].TotalDividends > totals[j].TotalDividends })
	}
	return NewTickerAggregates(v, in.PrimaryTicker, rng, totals), nil
}
