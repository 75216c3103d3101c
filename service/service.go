// Package service wires parsing, fetching and rendering into the plot
// operations exposed over HTTP and the CLI.
package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/viktsys/stockplot/fetcher"
	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/logger"
	"github.com/viktsys/stockplot/render"
	"github.com/viktsys/stockplot/storage"
	"github.com/viktsys/stockplot/tracing"
)

type Parser interface {
	Parse(ctx context.Context, command string) (intent.Intent, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, in intent.Intent) (fetcher.Dataset, error)
}

type Renderer interface {
	Render(ctx context.Context, ds fetcher.Dataset, in intent.Intent) (render.Artifact, error)
}

// Result is returned by both plot operations.
type Result struct {
	Message string `json:"message"`
	PlotURL string `json:"plot_url"`

	Artifact string        `json:"-"`
	Intent   intent.Intent `json:"-"`
}

type Service struct {
	parser   Parser
	fetcher  Fetcher
	renderer Renderer
	store    storage.Store
	baseURL  string
	log      zerolog.Logger
}

// New creates the service. baseURL prefixes the returned plot URLs.
func New(p Parser, f Fetcher, r Renderer, store storage.Store, baseURL string, log zerolog.Logger) *Service {
	return &Service{
		parser:   p,
		fetcher:  f,
		renderer: r,
		store:    store,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      logger.Component(log, "service"),
	}
}

// PlotRange draws the closing price time series of ticker between start
// and end, both inclusive.
func (s *Service) PlotRange(ctx context.Context, ticker string, start, end time.Time) (res Result, err error) {
	ctx, span := tracing.Start(ctx, "service.PlotRange", attribute.String("ticker", ticker))
	defer func() { tracing.End(span, err) }()

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Result{}, fmt.Errorf("%w: ticker is required", intent.ErrInvalid)
	}

	in := intent.New(intent.ChartTimeSeries, intent.DerivedNone)
	in.PrimaryTicker = ticker
	in.DateRange = &intent.DateRange{Start: intent.Day(start), End: intent.Day(end)}
	if err := in.Normalize(); err != nil {
		return Result{}, err
	}
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	return s.plot(ctx, in)
}

// PlotCommand interprets a free-text command and draws the chart it
// describes.
func (s *Service) PlotCommand(ctx context.Context, command string) (res Result, err error) {
	ctx, span := tracing.Start(ctx, "service.PlotCommand")
	defer func() { tracing.End(span, err) }()

	pctx, pspan := tracing.Start(ctx, "parse")
	in, err := s.parser.Parse(pctx, command)
	tracing.End(pspan, err)
	if err != nil {
		return Result{}, err
	}
	return s.plot(ctx, in)
}

func (s *Service) plot(ctx context.Context, in intent.Intent) (Result, error) {
	v, err := in.Variant()
	if err != nil {
		return Result{}, err
	}

	fctx, fspan := tracing.Start(ctx, "fetch", attribute.String("variant", v.String()))
	ds, err := s.fetcher.Fetch(fctx, in)
	tracing.End(fspan, err)
	if err != nil {
		return Result{}, err
	}

	rctx, rspan := tracing.Start(ctx, "render", attribute.Int("rows", ds.Rows()))
	art, err := s.renderer.Render(rctx, ds, in)
	tracing.End(rspan, err)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Message:  Message(ds, in),
		PlotURL:  s.baseURL + "/plots/" + url.PathEscape(art.Name),
		Artifact: art.Name,
		Intent:   in,
	}
	s.log.Info().
		Stringer("variant", v).
		Str("ticker", in.PrimaryTicker).
		Str("artifact", art.Name).
		Msg("plot created")
	return res, nil
}

// Artifact streams a previously rendered chart.
func (s *Service) Artifact(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	return s.store.Open(ctx, name)
}

type resolved interface {
	Resolution() fetcher.DateResolution
}

// Message states what was drawn and over which dates, including any date
// the service chose on the caller's behalf.
func Message(ds fetcher.Dataset, in intent.Intent) string {
	subject := in.PrimaryTicker
	if c, ok := ds.(*fetcher.Correlation); ok {
		subject = strings.Join(c.Tickers, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Plot created for %s", subject)

	r, isSnapshot := ds.(resolved)
	if isSnapshot {
		res := r.Resolution()
		fmt.Fprintf(&b, " as of %s", res.AsOf.Format("2006-01-02"))
		if res.Substituted {
			fmt.Fprintf(&b, " (no trading data on %s; used the most recent prior trading date)",
				res.Requested.Format("2006-01-02"))
		}
	} else if p := in.Period(); p != "" {
		b.WriteString(" " + p)
	}

	if in.DateFallback {
		fmt.Fprintf(&b, ". No date was given, so the latest available date in the database (%s) was used",
			fallbackDate(ds, in).Format("2006-01-02"))
	}
	return b.String()
}

func fallbackDate(ds fetcher.Dataset, in intent.Intent) time.Time {
	if r, ok := ds.(resolved); ok {
		return r.Resolution().Requested
	}
	if in.DateRange != nil {
		return in.DateRange.End
	}
	if in.AsOf != nil {
		return *in.AsOf
	}
	return time.Time{}
}
