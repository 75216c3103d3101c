package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/viktsys/stockplot/config"
)

func newTestProcessor(batchSize int) *Processor {
	return NewProcessor(nil, config.IngestConfig{BatchSize: batchSize, WorkerCount: 1, FileWorkers: 1, BufferSize: 4}, zerolog.Nop())
}

func TestParsePriceRecord(t *testing.T) {
	processor := newTestProcessor(10)

	record := PriceRecord{
		Date:      "2024-06-03 00:00:00-04:00",
		Ticker:    "msft",
		Open:      "415.53",
		High:      "416.43",
		Low:       "408.92",
		Close:     "413.52",
		Volume:    "17484700",
		Dividends: "0.0",
	}

	price, err := processor.parsePriceRecord(record)
	if err != nil {
		t.Fatalf("Failed to parse price record: %v", err)
	}

	expectedDate := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if !price.Date.Equal(expectedDate) {
		t.Errorf("Expected date %v, got %v", expectedDate, price.Date)
	}

	if price.Ticker != "MSFT" {
		t.Errorf("Expected ticker MSFT, got %s", price.Ticker)
	}

	if price.Close != 413.52 {
		t.Errorf("Expected close 413.52, got %f", price.Close)
	}

	if price.Volume != 17484700 {
		t.Errorf("Expected volume 17484700, got %d", price.Volume)
	}
}

func TestParseMissingOptionalColumns(t *testing.T) {
	processor := newTestProcessor(10)

	price, err := processor.parsePriceRecord(PriceRecord{Date: "2024-06-03", Ticker: "KO", Close: "62.10"})
	if err != nil {
		t.Fatalf("Failed to parse price record: %v", err)
	}

	if price.Open != 62.10 || price.High != 62.10 || price.Low != 62.10 {
		t.Errorf("Expected missing OHL to default to close, got %f/%f/%f", price.Open, price.High, price.Low)
	}

	if price.Dividends != 0 {
		t.Errorf("Expected dividends 0, got %f", price.Dividends)
	}
}

func TestParseInvalidDate(t *testing.T) {
	processor := newTestProcessor(10)

	_, err := processor.parsePriceRecord(PriceRecord{Date: "invalid-date", Ticker: "KO", Close: "62.10"})
	if err == nil {
		t.Fatal("Expected error for invalid date, got nil")
	}

	if !strings.Contains(err.Error(), "invalid date format") {
		t.Errorf("Expected 'invalid date format' error, got %v", err)
	}
}

func TestParseInvalidPrice(t *testing.T) {
	processor := newTestProcessor(10)

	_, err := processor.parsePriceRecord(PriceRecord{Date: "2024-06-03", Ticker: "KO", Close: "invalid-price"})
	if err == nil {
		t.Error("Expected error for invalid price, got nil")
	}
}

func TestParseInvalidVolume(t *testing.T) {
	processor := newTestProcessor(10)

	_, err := processor.parsePriceRecord(PriceRecord{Date: "2024-06-03", Ticker: "KO", Close: "62.10", Volume: "lots"})
	if err == nil {
		t.Error("Expected error for invalid volume, got nil")
	}
}

func TestReadPricesBatches(t *testing.T) {
	processor := newTestProcessor(2)

	csvData := "Date,Open,High,Low,Close,Volume,Dividends,Stock Splits,Ticker\n" +
		"2024-06-03,190.1,194.9,189.3,194.0,50080500,0.0,0.0,AAPL\n" +
		"2024-06-03,415.5,416.4,408.9,413.5,17484700,0.0,0.0,MSFT\n" +
		"2024-06-04,194.6,195.3,193.0,194.4,47471400,0.0,0.0,AAPL\n"

	out := make(chan []PriceRecord, 4)
	batches, err := processor.readPrices(context.Background(), strings.NewReader(csvData), out)
	close(out)
	if err != nil {
		t.Fatalf("Failed to read prices: %v", err)
	}

	if batches != 2 {
		t.Errorf("Expected 2 batches, got %d", batches)
	}

	var records []PriceRecord
	for b := range out {
		records = append(records, b...)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	if records[1].Ticker != "MSFT" || records[1].Close != "413.5" {
		t.Errorf("Expected MSFT close 413.5, got %s %s", records[1].Ticker, records[1].Close)
	}
}

func TestReadPricesRejectsHeader(t *testing.T) {
	processor := newTestProcessor(2)

	out := make(chan []PriceRecord, 1)
	_, err := processor.readPrices(context.Background(), strings.NewReader("a,b,c\n1,2,3\n"), out)
	if err == nil {
		t.Error("Expected error for header without date/ticker/close, got nil")
	}
}

func TestReadCompanies(t *testing.T) {
	csvData := "symbol,name,sector,industry\n" +
		"aapl,Apple Inc.,Technology,Consumer Electronics\n" +
		",,,\n" +
		"KO,The Coca-Cola Company,Consumer Defensive,Beverages - Non-Alcoholic\n"

	companies, err := readCompanies(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Failed to read companies: %v", err)
	}

	if len(companies) != 2 {
		t.Fatalf("Expected 2 companies, got %d", len(companies))
	}

	if companies[0].Symbol != "AAPL" || companies[0].Sector != "Technology" {
		t.Errorf("Expected AAPL/Technology, got %s/%s", companies[0].Symbol, companies[0].Sector)
	}
}
