package fetcher

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/viktsys/stockplot/models"
)

// PctChange returns v[i]/v[i-1]-1 for each i. The first element is NaN.
func PctChange(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 || values[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}

// CumulativeReturn compounds fractional returns into a running percent
// return. NaN inputs stay NaN in the output and are skipped by the product.
func CumulativeReturn(returns []float64) []float64 {
	out := make([]float64, len(returns))
	prod := 1.0
	for i, r := range returns {
		if math.IsNaN(r) {
			out[i] = math.NaN()
			continue
		}
		prod *= 1 + r
		out[i] = (prod - 1) * 100
	}
	return out
}

// RollingMean is the simple moving average over window trailing values.
// The first window-1 entries are NaN.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 || len(values) < window {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	copy(out, talib.Sma(values, window))
	for i := 0; i < window-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// MonthlyMeans averages values per calendar month in Jan..Dec order.
// Months without data are omitted.
func MonthlyMeans(dates []time.Time, values []float64) []MonthValue {
	var buckets [12][]float64
	for i, d := range dates {
		buckets[d.Month()-1] = append(buckets[d.Month()-1], values[i])
	}

	var out []MonthValue
	for m, vals := range buckets {
		if len(vals) == 0 {
			continue
		}
		out = append(out, MonthValue{
			Month: time.Month(m + 1).String()[:3],
			Value: stat.Mean(vals, nil),
		})
	}
	return out
}

// buildPoints copies prices into points and fills every derived column.
func buildPoints(prices []models.Price, window int) []Point {
	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}
	returns := PctChange(closes)
	cumulative := CumulativeReturn(returns)
	rolling := RollingMean(closes, window)

	points := make([]Point, len(prices))
	for i, p := range prices {
		pt := Point{
			Date:             p.Date,
			Open:             p.Open,
			High:             p.High,
			Low:              p.Low,
			Close:            p.Close,
			Volume:           p.Volume,
			Dividends:        p.Dividends,
			DailyReturn:      returns[i] * 100,
			Month:            p.Date.Month().String(),
			CumulativeReturn: cumulative[i],
			RollingAvg:       rolling[i],
			Range:            p.High - p.Low,
			RangePercent:     math.NaN(),
		}
		if p.Low != 0 {
			pt.RangePercent = pt.Range / p.Low * 100
		}
		points[i] = pt
	}
	return points
}
