package render

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"

	"github.com/viktsys/stockplot/fetcher"
	"github.com/viktsys/stockplot/intent"
)

// corrGrid exposes a correlation matrix as a heat map grid. Row 0 is
// drawn at the top.
type corrGrid struct {
	m *mat.SymDense
}

func (g corrGrid) Dims() (c, r int) {
	n := g.m.SymmetricDim()
	return n, n
}

func (g corrGrid) Z(c, r int) float64 {
	n := g.m.SymmetricDim()
	return g.m.At(n-1-r, c)
}

func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

func drawCorrelation(ds fetcher.Dataset, _ intent.Intent, _ intent.ChartKind, title string) (figure, error) {
	c, ok := ds.(*fetcher.Correlation)
	if !ok {
		return figure{}, fmt.Errorf("%s: expected a correlation matrix, got %T", ds.Variant(), ds)
	}
	n := len(c.Tickers)

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	hm := plotter.NewHeatMap(corrGrid{m: c.Matrix}, cm.Palette(255))
	hm.Min, hm.Max = -1, 1

	p := plot.New()
	p.Title.Text = title
	p.Add(hm)

	xys := make(plotter.XYs, 0, n*n)
	labels := make([]string, 0, n*n)
	for r := 0; r < n; r++ {
		for col := 0; col < n; col++ {
			v := c.Matrix.At(r, col)
			label := "n/a"
			if !math.IsNaN(v) {
				label = fmt.Sprintf("%.2f", v)
			}
			xys = append(xys, plotter.XY{X: float64(col), Y: float64(n - 1 - r)})
			labels = append(labels, label)
		}
	}
	cells, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return figure{}, err
	}
	for i := range cells.TextStyle {
		cells.TextStyle[i].XAlign = text.XCenter
		cells.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(cells)

	yNames := make([]string, n)
	for i, t := range c.Tickers {
		yNames[n-1-i] = t
	}
	p.NominalX(c.Tickers...)
	p.NominalY(yNames...)
	p.X.Label.Text = fmt.Sprintf("%d common trading days", c.Dates)
	return square(p), nil
}
