package render

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/viktsys/stockplot/fetcher"
	"github.com/viktsys/stockplot/intent"
)

const histogramBins = 50

func asSeries(ds fetcher.Dataset) (*fetcher.Series, error) {
	s, ok := ds.(*fetcher.Series)
	if !ok {
		return nil, fmt.Errorf("%s: expected a price series, got %T", ds.Variant(), ds)
	}
	return s, nil
}

func column(s *fetcher.Series, pick func(fetcher.Point) float64) ([]time.Time, []float64) {
	dates := make([]time.Time, len(s.Points))
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
		values[i] = pick(p)
	}
	return dates, values
}

func drawLineChart(ds fetcher.Dataset, title, yLabel string, pick func(fetcher.Point) float64) (*plot.Plot, error) {
	s, err := asSeries(ds)
	if err != nil {
		return nil, err
	}
	dates, values := column(s, pick)
	xys := timeXYs(dates, values)
	if len(xys) == 0 {
		return nil, &EmptyDatasetError{Variant: s.Variant()}
	}
	p := timePlot(title, yLabel)
	if err := addLine(p, xys, colorPrimary, ""); err != nil {
		return nil, err
	}
	return p, nil
}

func drawClosePrice(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	p, err := drawLineChart(ds, title, "Close Price (USD)", func(pt fetcher.Point) float64 { return pt.Close })
	if err != nil {
		return figure{}, err
	}
	return wide(p), nil
}

func drawCumulativeReturn(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	p, err := drawLineChart(ds, title, "Cumulative Return (%)", func(pt fetcher.Point) float64 { return pt.CumulativeReturn })
	if err != nil {
		return figure{}, err
	}
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.LineStyle.Color = colorMuted
	zero.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(zero)
	return wide(p), nil
}

func drawRollingAverage(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	s, err := asSeries(ds)
	if err != nil {
		return figure{}, err
	}
	dates, closes := column(s, func(pt fetcher.Point) float64 { return pt.Close })
	_, rolling := column(s, func(pt fetcher.Point) float64 { return pt.RollingAvg })

	p := timePlot(title, "Price (USD)")
	if err := addLine(p, timeXYs(dates, closes), colorPrimary, "Close"); err != nil {
		return figure{}, err
	}
	// Shorter histories than the window have no average to draw.
	if avg := timeXYs(dates, rolling); len(avg) > 0 {
		if err := addLine(p, avg, colorSecondary, fmt.Sprintf("%d-Day Moving Average", s.Window)); err != nil {
			return figure{}, err
		}
	}
	p.Legend.Top = true
	return wide(p), nil
}

func drawHighLowRange(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	s, err := asSeries(ds)
	if err != nil {
		return figure{}, err
	}
	dates, highs := column(s, func(pt fetcher.Point) float64 { return pt.High })
	_, lows := column(s, func(pt fetcher.Point) float64 { return pt.Low })
	_, pct := column(s, func(pt fetcher.Point) float64 { return pt.RangePercent })

	if avg := finite(pct); len(avg) > 0 {
		title = fmt.Sprintf("%s (avg range %.2f%%)", title, stat.Mean(avg, nil))
	}
	p := timePlot(title, "Price (USD)")
	if err := addLine(p, timeXYs(dates, highs), colorSecondary, "High"); err != nil {
		return figure{}, err
	}
	if err := addLine(p, timeXYs(dates, lows), colorPrimary, "Low"); err != nil {
		return figure{}, err
	}
	p.Legend.Top = true
	return wide(p), nil
}

func drawDailyVolume(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	s, err := asSeries(ds)
	if err != nil {
		return figure{}, err
	}
	dates, volumes := column(s, func(pt fetcher.Point) float64 { return float64(pt.Volume) })

	p := newPlot(title, "Date", "Volume")
	bars, err := plotter.NewBarChart(plotter.Values(volumes), vg.Points(math.Max(1, 600/float64(len(volumes)))))
	if err != nil {
		return figure{}, err
	}
	bars.Color = colorPrimary
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.X.Tick.Marker = indexDateTicks{dates: dates}
	rotateX(p)
	return wide(p), nil
}

func drawReturnHistogram(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	s, err := asSeries(ds)
	if err != nil {
		return figure{}, err
	}
	_, returns := column(s, func(pt fetcher.Point) float64 { return pt.DailyReturn })
	values := finite(returns)
	if len(values) == 0 {
		return figure{}, &EmptyDatasetError{Variant: s.Variant()}
	}

	mean, std := stat.MeanStdDev(values, nil)
	p := newPlot(fmt.Sprintf("%s (mean %.2f%%, std %.2f%%)", title, mean, std), "Daily Return (%)", "Frequency")

	hist, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return figure{}, err
	}
	hist.FillColor = colorPrimary
	p.Add(hist)

	var peak float64
	for _, b := range hist.Bins {
		peak = math.Max(peak, b.Weight)
	}
	meanLine, err := plotter.NewLine(plotter.XYs{{X: mean, Y: 0}, {X: mean, Y: peak}})
	if err != nil {
		return figure{}, err
	}
	meanLine.LineStyle.Color = colorAccent
	meanLine.LineStyle.Width = vg.Points(1.5)
	meanLine.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
	p.Add(meanLine)
	p.Legend.Add(fmt.Sprintf("Mean %.2f%%", mean), meanLine)
	p.Legend.Top = true
	return wide(p), nil
}

func drawMonthlyCloseBoxplot(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	return drawMonthBoxes(ds, title, "Close Price (USD)", func(pt fetcher.Point) float64 { return pt.Close })
}

func drawDailyReturnsBoxplot(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	return drawMonthBoxes(ds, title, "Daily Return (%)", func(pt fetcher.Point) float64 { return pt.DailyReturn })
}

// drawMonthBoxes draws one box per calendar month, annotated with mean,
// median and standard deviation.
func drawMonthBoxes(ds fetcher.Dataset, title, yLabel string, pick func(fetcher.Point) float64) (figure, error) {
	s, err := asSeries(ds)
	if err != nil {
		return figure{}, err
	}

	var groups [12][]float64
	for _, pt := range s.Points {
		v := pick(pt)
		if math.IsNaN(v) {
			continue
		}
		m := pt.Date.Month() - 1
		groups[m] = append(groups[m], v)
	}

	p := newPlot(title, "Month", yLabel)
	var names []string
	var labelXYs plotter.XYs
	var labels []string
	for m, values := range groups {
		if len(values) == 0 {
			continue
		}
		loc := float64(len(names))
		box, err := plotter.NewBoxPlot(vg.Points(24), loc, plotter.Values(values))
		if err != nil {
			return figure{}, err
		}
		box.FillColor = colorPrimary
		p.Add(box)

		names = append(names, time.Month(m+1).String()[:3])
		mean, std := stat.MeanStdDev(values, nil)
		if len(values) < 2 {
			std = 0
		}
		med := median(append([]float64(nil), values...))
		labelXYs = append(labelXYs, plotter.XY{X: loc, Y: maxOf(values)})
		labels = append(labels, fmt.Sprintf("μ=%.2f\nmed=%.2f\nσ=%.2f", mean, med, std))
	}
	if len(names) == 0 {
		return figure{}, &EmptyDatasetError{Variant: s.Variant()}
	}
	p.NominalX(names...)
	if err := addLabels(p, labelXYs, labels); err != nil {
		return figure{}, err
	}
	return wide(p), nil
}

func drawMonthlyAvgClose(ds fetcher.Dataset, _ intent.Intent, kind intent.ChartKind, title string) (figure, error) {
	m, ok := ds.(*fetcher.MonthlyAverages)
	if !ok {
		return figure{}, fmt.Errorf("%s: expected monthly averages, got %T", ds.Variant(), ds)
	}
	names := make([]string, len(m.Months))
	values := make([]float64, len(m.Months))
	for i, mv := range m.Months {
		names[i] = mv.Month
		values[i] = mv.Value
	}

	p := newPlot(title, "Month", "Average Close Price (USD)")
	if kind == intent.ChartBar {
		if err := addBars(p, names, values, "%.2f"); err != nil {
			return figure{}, err
		}
		return wide(p), nil
	}

	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	if err := addLine(p, xys, colorPrimary, ""); err != nil {
		return figure{}, err
	}
	points, err := plotter.NewScatter(xys)
	if err != nil {
		return figure{}, err
	}
	points.GlyphStyle.Color = colorPrimary
	p.Add(points)
	p.NominalX(names...)
	return wide(p), nil
}
