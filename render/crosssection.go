package render

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/viktsys/stockplot/fetcher"
	"github.com/viktsys/stockplot/intent"
)

func drawTopMarketCap(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	s, ok := ds.(*fetcher.Snapshot)
	if !ok {
		return figure{}, fmt.Errorf("%s: expected a snapshot, got %T", ds.Variant(), ds)
	}
	names := make([]string, len(s.Entries))
	values := make([]float64, len(s.Entries))
	for i, e := range s.Entries {
		names[i] = e.Ticker
		values[i] = e.MarketCap / 1e9
	}

	p := newPlot(title, "Ticker", "Market Cap, est. (USD billions)")
	if err := addBars(p, names, values, "%.1fB"); err != nil {
		return figure{}, err
	}
	return wide(p), nil
}

func drawMarketCapPE(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	s, ok := ds.(*fetcher.Snapshot)
	if !ok {
		return figure{}, fmt.Errorf("%s: expected a snapshot, got %T", ds.Variant(), ds)
	}
	xs := make([]float64, len(s.Entries))
	ys := make([]float64, len(s.Entries))
	names := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		xs[i] = e.MarketCap / 1e9
		ys[i] = e.PERatio
		names[i] = e.Ticker
	}

	p := newPlot(title, "Market Cap, est. (USD billions)", "P/E Ratio (est.)")
	if err := addScatterWithFit(p, xs, ys, names); err != nil {
		return figure{}, err
	}
	return wide(p), nil
}

func drawDividends(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	a, ok := ds.(*fetcher.TickerAggregates)
	if !ok {
		return figure{}, fmt.Errorf("%s: expected ticker aggregates, got %T", ds.Variant(), ds)
	}
	names := make([]string, len(a.Totals))
	values := make([]float64, len(a.Totals))
	for i, t := range a.Totals {
		names[i] = t.Ticker
		values[i] = t.TotalDividends
	}

	p := newPlot(title, "Ticker", "Dividends per Share (USD)")
	if err := addBars(p, names, values, "$%.2f"); err != nil {
		return figure{}, err
	}
	return wide(p), nil
}

func drawVolumePrice(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	a, ok := ds.(*fetcher.TickerAggregates)
	if !ok {
		return figure{}, fmt.Errorf("%s: expected ticker aggregates, got %T", ds.Variant(), ds)
	}
	xs := make([]float64, len(a.Totals))
	ys := make([]float64, len(a.Totals))
	names := make([]string, len(a.Totals))
	for i, t := range a.Totals {
		xs[i] = t.AvgVolume / 1e6
		ys[i] = t.AvgClose
		names[i] = t.Ticker
	}

	p := newPlot(title, "Average Daily Volume (millions)", "Average Close Price (USD)")
	if err := addScatterWithFit(p, xs, ys, names); err != nil {
		return figure{}, err
	}
	return wide(p), nil
}

// addScatterWithFit draws labelled points and, when the xs vary, the
// least squares line through them.
func addScatterWithFit(p *plot.Plot, xs, ys []float64, names []string) error {
	xys := make(plotter.XYs, len(xs))
	for i := range xs {
		xys[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	points, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	points.GlyphStyle.Color = colorPrimary
	points.GlyphStyle.Radius = vg.Points(4)
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(points)

	if err := addLabels(p, xys, names); err != nil {
		return err
	}

	if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
		return nil
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	fit := plotter.NewFunction(func(x float64) float64 { return alpha + beta*x })
	fit.XMin, fit.XMax = minMax(xs)
	fit.LineStyle.Color = colorAccent
	fit.LineStyle.Width = vg.Points(1.5)
	fit.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	p.Add(fit)
	p.Legend.Add(fmt.Sprintf("Trend: y = %.3fx %+.2f", beta, alpha), fit)
	p.Legend.Top = true
	return nil
}

func minMax(xs []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

func drawSectorBreakdown(ds fetcher.Dataset, _ intent.Intent, kind intent.ChartKind, title string) (figure, error) {
	b, ok := ds.(*fetcher.SectorBreakdown)
	if !ok {
		return figure{}, fmt.Errorf("%s: expected a sector breakdown, got %T", ds.Variant(), ds)
	}

	if kind == intent.ChartPie {
		return drawPie(b, title)
	}

	names := make([]string, len(b.Sectors))
	values := make([]float64, len(b.Sectors))
	format, yLabel := "%.0f", "Number of Companies"
	for i, s := range b.Sectors {
		names[i] = s.Sector
		values[i] = s.Value
	}
	if b.Measure == fetcher.MeasureMarketCap {
		format, yLabel = "%.1fB", "Market Cap, est. (USD billions)"
		for i := range values {
			values[i] /= 1e9
		}
	}

	p := newPlot(title, "Sector", yLabel)
	if err := addBars(p, names, values, format); err != nil {
		return figure{}, err
	}
	rotateX(p)
	return wide(p), nil
}

const pieSteps = 90

// drawPie draws one wedge per sector with percentage labels inside and
// absolute values in the legend.
func drawPie(b *fetcher.SectorBreakdown, title string) (figure, error) {
	total := b.Total()
	if total <= 0 {
		return figure{}, &EmptyDatasetError{Variant: b.Variant()}
	}

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	p.X.Min, p.X.Max = -1.2, 1.2
	p.Y.Min, p.Y.Max = -1.2, 1.2
	p.Legend.Top = true

	var labelXYs plotter.XYs
	var labels []string
	start := math.Pi / 2
	for i, s := range b.Sectors {
		if s.Value <= 0 {
			continue
		}
		sweep := 2 * math.Pi * s.Value / total
		wedge := plotter.XYs{{X: 0, Y: 0}}
		steps := int(math.Max(2, pieSteps*sweep/(2*math.Pi)))
		for k := 0; k <= steps; k++ {
			a := start - sweep*float64(k)/float64(steps)
			wedge = append(wedge, plotter.XY{X: math.Cos(a), Y: math.Sin(a)})
		}

		poly, err := plotter.NewPolygon(wedge)
		if err != nil {
			return figure{}, err
		}
		poly.Color = paletteColor(i)
		poly.LineStyle.Color = colorEdge
		poly.LineStyle.Width = vg.Points(1)
		p.Add(poly)
		p.Legend.Add(fmt.Sprintf("%s: %s", s.Sector, pieValue(b.Measure, s.Value)), poly)

		mid := start - sweep/2
		labelXYs = append(labelXYs, plotter.XY{X: 0.65 * math.Cos(mid), Y: 0.65 * math.Sin(mid)})
		labels = append(labels, fmt.Sprintf("%.1f%%", 100*s.Value/total))
		start -= sweep
	}

	if err := addLabels(p, labelXYs, labels); err != nil {
		return figure{}, err
	}
	return square(p), nil
}

func pieValue(measure string, v float64) string {
	if measure == fetcher.MeasureCount {
		return fmt.Sprintf("%.0f", v)
	}
	return "$" + humanize(v)
}
