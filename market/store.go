// Package market reads prices and company reference data from Postgres.
package market

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/viktsys/stockplot/intent"
	"github.com/viktsys/stockplot/logger"
	"github.com/viktsys/stockplot/models"
)

const sqlDate = "2006-01-02"

// DataSourceError wraps a failure talking to the database.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// Store runs the read queries behind every chart.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: logger.Component(log, "market"),
	}
}

// LatestDate returns the most recent date in the price table. The zero
// time means the table is empty.
func (s *Store) LatestDate(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	row := s.db.WithContext(ctx).Raw(`SELECT MAX(date) FROM prices`).Row()
	if err := row.Scan(&latest); err != nil {
		return time.Time{}, &DataSourceError{Op: "latest date", Err: err}
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return intent.Day(latest.Time), nil
}

// TradingDateOnOrBefore finds the closest trading date not after day.
func (s *Store) TradingDateOnOrBefore(ctx context.Context, day time.Time) (time.Time, bool, error) {
	var found sql.NullTime
	row := s.db.WithContext(ctx).
		Raw(`SELECT MAX(date) FROM prices WHERE date <= ?`, day.Format(sqlDate)).
		Row()
	if err := row.Scan(&found); err != nil {
		return time.Time{}, false, &DataSourceError{Op: "resolve trading date", Err: err}
	}
	if !found.Valid {
		return time.Time{}, false, nil
	}
	return intent.Day(found.Time), true, nil
}

// DailyPrices returns one row per trading date in rng, ordered by date.
// For the DJIA group the row is the average across constituents, with
// volume and dividends summed.
func (s *Store) DailyPrices(ctx context.Context, ticker string, rng intent.DateRange) ([]models.Price, error) {
	var rows []models.Price
	db := s.db.WithContext(ctx)

	var err error
	if ticker == "" || ticker == intent.GroupTicker {
		err = db.Raw(`
			SELECT ? AS ticker, date,
			       AVG(open)::float8 AS open, AVG(high)::float8 AS high,
			       AVG(low)::float8 AS low, AVG(close)::float8 AS close,
			       SUM(volume)::bigint AS volume, SUM(dividends)::float8 AS dividends
			FROM prices
			WHERE date BETWEEN ? AND ?
			GROUP BY date
			ORDER BY date`,
			intent.GroupTicker, rng.Start.Format(sqlDate), rng.End.Format(sqlDate)).
			Scan(&rows).Error
	} else {
		err = db.Where("ticker = ? AND date BETWEEN ? AND ?",
			ticker, rng.Start.Format(sqlDate), rng.End.Format(sqlDate)).
			Order("date").
			Find(&rows).Error
	}
	if err != nil {
		return nil, &DataSourceError{Op: "daily prices", Err: err}
	}

	s.log.Debug().Str("ticker", ticker).Stringer("range", rng).Int("rows", len(rows)).Msg("daily prices loaded")
	return rows, nil
}

// Closes returns ticker, date and close for every ticker in tickers over
// rng, ordered by date then ticker.
func (s *Store) Closes(ctx context.Context, tickers []string, rng intent.DateRange) ([]models.Price, error) {
	var rows []models.Price
	err := s.db.WithContext(ctx).
		Select("ticker", "date", "close").
		Where("ticker IN ? AND date BETWEEN ? AND ?", tickers, rng.Start.Format(sqlDate), rng.End.Format(sqlDate)).
		Order("date, ticker").
		Find(&rows).Error
	if err != nil {
		return nil, &DataSourceError{Op: "closing prices", Err: err}
	}
	return rows, nil
}

// Snapshot returns every ticker traded on day joined to its sector.
// Tickers without a company row get an empty sector.
func (s *Store) Snapshot(ctx context.Context, day time.Time) ([]models.SnapshotRow, error) {
	var rows []models.SnapshotRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT p.ticker, COALESCE(c.sector, '') AS sector, p.close, p.volume
		FROM prices p
		LEFT JOIN companies c ON c.symbol = p.ticker
		WHERE p.date = ?
		ORDER BY p.ticker`, day.Format(sqlDate)).
		Scan(&rows).Error
	if err != nil {
		return nil, &DataSourceError{Op: "snapshot", Err: err}
	}
	return rows, nil
}

// TickerTotals aggregates dividends, volume and close per ticker over rng.
// A single ticker restricts the result to that ticker.
func (s *Store) TickerTotals(ctx context.Context, ticker string, rng intent.DateRange) ([]models.TickerTotals, error) {
	query := `
		SELECT p.ticker, COALESCE(MAX(c.sector), '') AS sector,
		       SUM(p.dividends)::float8 AS total_dividends,
		       AVG(p.volume)::float8 AS avg_volume,
		       AVG(p.close)::float8 AS avg_close
		FROM prices p
		LEFT JOIN companies c ON c.symbol = p.ticker
		WHERE p.date BETWEEN ? AND ?`
	args := []any{rng.Start.Format(sqlDate), rng.End.Format(sqlDate)}
	if ticker != "" && ticker != intent.GroupTicker {
		query += ` AND p.ticker = ?`
		args = append(args, ticker)
	}
	query += ` GROUP BY p.ticker ORDER BY p.ticker`

	var rows []models.TickerTotals
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, &DataSourceError{Op: "ticker totals", Err: err}
	}
	return rows, nil
}

// Ping checks the connection, for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &DataSourceError{Op: "ping", Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &DataSourceError{Op: "ping", Err: err}
	}
	return nil
}
