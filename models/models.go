package models

import (
	"time"
)

// Price is one trading day of one DJIA constituent.
type Price struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Ticker    string    `gorm:"size:16;not null;uniqueIndex:uidx_prices_ticker_date" json:"ticker"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:uidx_prices_ticker_date" json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Dividends float64   `json:"dividends"`
	CreatedAt time.Time `json:"-"`
}

// Company is reference data for a ticker symbol.
type Company struct {
	Symbol    string    `gorm:"primaryKey;size:16" json:"symbol"`
	Name      string    `gorm:"size:128" json:"name"`
	Sector    string    `gorm:"size:64;index" json:"sector"`
	Industry  string    `gorm:"size:128" json:"industry"`
	CreatedAt time.Time `json:"-"`
}

// SnapshotRow is one ticker on a single trading date, joined to its sector.
type SnapshotRow struct {
	Ticker string  `json:"ticker"`
	Sector string  `json:"sector"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// TickerTotals aggregates one ticker over a date range.
type TickerTotals struct {
	Ticker         string  `json:"ticker"`
	Sector         string  `json:"sector"`
	TotalDividends float64 `json:"total_dividends"`
	AvgVolume      float64 `json:"avg_volume"`
	AvgClose       float64 `json:"avg_close"`
}
