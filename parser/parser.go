// Package parser turns free-text plot instructions into an intent.Intent
// using fixed keyword and regular expression rules.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/logger"
)

// LatestDater reports the most recent trading date in the price table.
// The parser uses it when a command carries no date at all.
type LatestDater interface {
	LatestDate(ctx context.Context) (time.Time, error)
}

// ParseError means the command could not be turned into a usable intent.
type ParseError struct {
	Command string
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse plot command: %s: %v", e.Reason, e.Err)
	}
	return "cannot parse plot command: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

type Parser struct {
	latest LatestDater
	log    zerolog.Logger
}

// New creates a parser. latest may be nil, in which case commands without
// a date fail instead of falling back to the latest trading date.
func New(latest LatestDater, log zerolog.Logger) *Parser {
	return &Parser{
		latest: latest,
		log:    logger.Component(log, "parser"),
	}
}

// Parse extracts ticker, chart kind, derived kind, ticker list and dates
// from command, each facet by its own ordered rule list.
func (p *Parser) Parse(ctx context.Context, command string) (intent.Intent, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return intent.Intent{}, &ParseError{Command: command, Reason: "empty command"}
	}
	lower := strings.ToLower(command)

	in := intent.New(matchChartKind(lower), matchDerivedKind(lower))
	in.Command = command
	in.PrimaryTicker = extractTicker(command)

	if in.Derived == intent.DerivedRollingAvg {
		window, err := extractWindow(command)
		if err != nil {
			return intent.Intent{}, &ParseError{Command: command, Reason: "invalid rolling window", Err: err}
		}
		in.RollingWindow = window
	}
	if m := topNPattern.FindStringSubmatch(command); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			in.TopN = n
		}
	}
	if in.NeedsTickerSet() {
		in.TickerSet = extractTickerSet(command)
	}

	t, rule, err := extractTemporal(command)
	if err != nil {
		return intent.Intent{}, &ParseError{Command: command, Reason: "invalid date in " + rule + " clause", Err: err}
	}
	in.DateRange, in.AsOf = t.rng, t.asOf

	if in.DateRange == nil && in.AsOf == nil {
		if !hasSignal(lower, in) {
			return intent.Intent{}, &ParseError{Command: command, Reason: "no chart type, ticker or date found"}
		}
		latest, err := p.latestDate(ctx, command)
		if err != nil {
			return intent.Intent{}, err
		}
		in.AsOf = &latest
		in.DateFallback = true
	}

	if err := in.Normalize(); err != nil {
		return intent.Intent{}, &ParseError{Command: command, Reason: "unsupported chart", Err: err}
	}
	if err := in.Validate(); err != nil {
		return intent.Intent{}, &ParseError{Command: command, Reason: "incomplete plot request", Err: err}
	}

	p.log.Debug().
		Str("chart", string(in.Chart)).
		Str("derived", string(in.Derived)).
		Str("ticker", in.PrimaryTicker).
		Strs("tickers", in.TickerSet).
		Str("period", in.Period()).
		Bool("date_fallback", in.DateFallback).
		Msg("Parsed plot command")

	return in, nil
}

func (p *Parser) latestDate(ctx context.Context, command string) (time.Time, error) {
	if p.latest == nil {
		return time.Time{}, &ParseError{Command: command, Reason: "no date expression found"}
	}
	latest, err := p.latest.LatestDate(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve latest trading date: %w", err)
	}
	if latest.IsZero() {
		return time.Time{}, &ParseError{Command: command, Reason: "no date expression found and the price table is empty"}
	}
	return intent.Day(latest), nil
}

// hasSignal reports whether anything beyond defaults was recognised.
func hasSignal(lower string, in intent.Intent) bool {
	if in.Derived != intent.DerivedNone || !in.IsGroup() || len(in.TickerSet) > 0 {
		return true
	}
	if in.Chart != intent.ChartTimeSeries {
		return true
	}
	return containsAny(lower, "time series", "price", "chart", "plot", "graph", "stock")
}

func extractWindow(command string) (int, error) {
	m := windowPattern.FindStringSubmatch(command)
	if m == nil {
		return intent.DefaultRollingWindow, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("window must be a positive number of days")
	}
	return n, nil
}
