package render

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

var (
	colorPrimary   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorSecondary = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorAccent    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorMuted     = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	colorEdge      = color.White
)

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func timePlot(title, yLabel string) *plot.Plot {
	p := newPlot(title, "Date", yLabel)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	rotateX(p)
	return p
}

func rotateX(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
}

// timeXYs pairs dates with ys, dropping NaN values.
func timeXYs(dates []time.Time, ys []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(ys))
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(dates[i].Unix()), Y: y})
	}
	return xys
}

func finite(values []float64) plotter.Values {
	out := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func addLine(p *plot.Plot, xys plotter.XYs, c color.Color, legend string) error {
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.LineStyle.Color = c
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	if legend != "" {
		p.Legend.Add(legend, line)
	}
	return nil
}

// addBars draws a bar per value with the value printed above it.
func addBars(p *plot.Plot, names []string, values []float64, format string) error {
	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(barWidth(len(values))))
	if err != nil {
		return err
	}
	bars.Color = colorPrimary
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	if len(names) > 6 {
		rotateX(p)
	}

	xys := make(plotter.XYs, len(values))
	labels := make([]string, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
		labels[i] = fmt.Sprintf(format, v)
	}
	return addLabels(p, xys, labels)
}

func barWidth(n int) float64 {
	switch {
	case n <= 6:
		return 40
	case n <= 15:
		return 24
	}
	return 12
}

func addLabels(p *plot.Plot, xys plotter.XYs, labels []string) error {
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = text.XCenter
		l.TextStyle[i].YAlign = text.YBottom
	}
	l.Offset = vg.Point{Y: vg.Points(2)}
	p.Add(l)
	return nil
}

func paletteColor(i int) color.Color {
	return plotutil.Color(i)
}

// humanize formats large values with a K/M/B/T suffix.
func humanize(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
	return fmt.Sprintf("%.2f", v)
}

// maxDateTicks bounds the labelled positions on an index date axis.
const maxDateTicks = 8

// indexDateTicks labels bar positions 0..n-1 with their dates.
type indexDateTicks struct {
	dates []time.Time
}

func (t indexDateTicks) Ticks(min, max float64) []plot.Tick {
	n := len(t.dates)
	if n == 0 {
		return nil
	}
	step := (n + maxDateTicks - 1) / maxDateTicks
	if step < 1 {
		step = 1
	}
	var ticks []plot.Tick
	for i := 0; i < n; i += step {
		ticks = append(ticks, plot.Tick{Value: float64(i), Label: t.dates[i].Format("2006-01-02")})
	}
	return ticks
}
