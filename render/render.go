// Package render draws fetched datasets as PNG charts and hands them to
// the artifact store.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/viktsys/stockplot/fetcher"
	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/logger"
	"github.com/viktsys/stockplot/storage"
)

const fileTimeLayout = "20060102_150405"

// EmptyDatasetError is returned before any drawing when there is nothing
// to plot.
type EmptyDatasetError struct {
	Variant intent.Variant
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("nothing to plot for %s: dataset is empty", e.Variant)
}

// Artifact is a rendered chart saved in the store.
type Artifact struct {
	Name  string
	Title string
	Chart intent.ChartKind
}

// figure is a drawn plot and its canvas size.
type figure struct {
	plot   *plot.Plot
	width  vg.Length
	height vg.Length
}

func wide(p *plot.Plot) figure   { return figure{plot: p, width: 10 * vg.Inch, height: 6 * vg.Inch} }
func square(p *plot.Plot) figure { return figure{plot: p, width: 8 * vg.Inch, height: 8 * vg.Inch} }

// drawFunc draws one variant. kind is the chart kind actually drawn.
type drawFunc func(ds fetcher.Dataset, in intent.Intent, kind intent.ChartKind, title string) (figure, error)

var drawers = map[intent.Variant]drawFunc{
	intent.VariantClosePrice:          drawClosePrice,
	intent.VariantReturnHistogram:     drawReturnHistogram,
	intent.VariantMonthlyCloseBoxplot: drawMonthlyCloseBoxplot,
	intent.VariantDailyReturnsBoxplot: drawDailyReturnsBoxplot,
	intent.VariantCumulativeReturn:    drawCumulativeReturn,
	intent.VariantRollingAverage:      drawRollingAverage,
	intent.VariantMonthlyAvgClose:     drawMonthlyAvgClose,
	intent.VariantDailyVolume:         drawDailyVolume,
	intent.VariantHighLowRange:        drawHighLowRange,
	intent.VariantTopMarketCap:        drawTopMarketCap,
	intent.VariantMarketCapPE:         drawMarketCapPE,
	intent.VariantSectorDistribution:  drawSectorBreakdown,
	intent.VariantSectorMarketCap:     drawSectorBreakdown,
	intent.VariantSectorMarketCapPie:  drawSectorBreakdown,
	intent.VariantCorrelationMatrix:   drawCorrelation,
	intent.VariantDividendsPerShare:   drawDividends,
	intent.VariantVolumePriceScatter:  drawVolumePrice,
}

type Renderer struct {
	store storage.Store
	now   func() time.Time
	log   zerolog.Logger
}

func New(store storage.Store, log zerolog.Logger) *Renderer {
	return &Renderer{
		store: store,
		now:   time.Now,
		log:   logger.Component(log, "render"),
	}
}

// Render draws ds and saves the PNG. The artifact name is
// {ticker}_{chart}_{UTC timestamp}.png, suffixed if already taken.
func (r *Renderer) Render(ctx context.Context, ds fetcher.Dataset, in intent.Intent) (Artifact, error) {
	if ds == nil {
		v, _ := in.Variant()
		return Artifact{}, &EmptyDatasetError{Variant: v}
	}
	v := ds.Variant()
	if ds.Rows() == 0 {
		return Artifact{}, &EmptyDatasetError{Variant: v}
	}
	draw, ok := drawers[v]
	if !ok {
		return Artifact{}, fmt.Errorf("no drawing for variant %s", v)
	}

	kind := v.ChartKind(in.Chart)
	title := Title(ds, in)
	fig, err := draw(ds, in, kind, title)
	if err != nil {
		return Artifact{}, err
	}

	wt, err := fig.plot.WriterTo(fig.width, fig.height, "png")
	if err != nil {
		return Artifact{}, fmt.Errorf("encode chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return Artifact{}, fmt.Errorf("encode chart: %w", err)
	}

	name, err := r.store.Save(ctx, FileName(in.PrimaryTicker, kind, r.now()), buf.Bytes())
	if err != nil {
		return Artifact{}, fmt.Errorf("save chart: %w", err)
	}

	r.log.Info().
		Str("artifact", name).
		Stringer("variant", v).
		Int("bytes", buf.Len()).
		Msg("chart rendered")
	return Artifact{Name: name, Title: title, Chart: kind}, nil
}

// FileName builds the artifact name for ticker and chart kind at t.
func FileName(ticker string, kind intent.ChartKind, t time.Time) string {
	if ticker == "" {
		ticker = intent.GroupTicker
	}
	return fmt.Sprintf("%s_%s_%s.png", ticker, kind, t.UTC().Format(fileTimeLayout))
}

// Title describes what a chart shows, including any date substitution.
func Title(ds fetcher.Dataset, in intent.Intent) string {
	subject := in.PrimaryTicker
	if subject == "" {
		subject = intent.GroupTicker
	}

	var b strings.Builder
	switch d := ds.(type) {
	case *fetcher.Series:
		fmt.Fprintf(&b, "%s %s %s", subject, seriesLabel(d.Variant(), d.Window), in.Period())
	case *fetcher.MonthlyAverages:
		fmt.Fprintf(&b, "%s Average Monthly Closing Price %s", subject, in.Period())
	case *fetcher.Snapshot:
		label := "Market Cap (est.) vs P/E Ratio (est.)"
		if d.Variant() == intent.VariantTopMarketCap {
			label = fmt.Sprintf("Top %d Companies by Market Cap (est.)", len(d.Entries))
		}
		fmt.Fprintf(&b, "%s as of %s", label, d.AsOf.Format("2006-01-02"))
		writeSubstitution(&b, d.Resolution())
	case *fetcher.SectorBreakdown:
		label := "Sector Distribution of DJIA Companies"
		if d.Measure == fetcher.MeasureMarketCap {
			label = "Market Cap (est.) by Sector"
		}
		fmt.Fprintf(&b, "%s as of %s", label, d.AsOf.Format("2006-01-02"))
		writeSubstitution(&b, d.Resolution())
	case *fetcher.Correlation:
		fmt.Fprintf(&b, "Correlation of Daily Returns: %s %s", strings.Join(d.Tickers, ", "), in.Period())
	case *fetcher.TickerAggregates:
		label := "Total Dividends per Share"
		if d.Variant() == intent.VariantVolumePriceScatter {
			label = "Average Volume vs Average Price"
		}
		fmt.Fprintf(&b, "%s %s %s", subject, label, in.Period())
	default:
		fmt.Fprintf(&b, "%s %s", subject, in.Period())
	}

	if in.DateFallback {
		b.WriteString(" (latest available date)")
	}
	return b.String()
}

func writeSubstitution(b *strings.Builder, res fetcher.DateResolution) {
	if res.Substituted {
		fmt.Fprintf(b, " (no data on %s)", res.Requested.Format("2006-01-02"))
	}
}

func seriesLabel(v intent.Variant, window int) string {
	switch v {
	case intent.VariantReturnHistogram:
		return "Daily Returns Distribution"
	case intent.VariantMonthlyCloseBoxplot:
		return "Monthly Closing Price Distribution"
	case intent.VariantDailyReturnsBoxplot:
		return "Daily Returns by Month"
	case intent.VariantCumulativeReturn:
		return "Cumulative Return"
	case intent.VariantRollingAverage:
		return fmt.Sprintf("Closing Price with %d-Day Moving Average", window)
	case intent.VariantDailyVolume:
		return "Daily Trading Volume"
	case intent.VariantHighLowRange:
		return "Daily High-Low Range"
	}
	return "Closing Price"
}
