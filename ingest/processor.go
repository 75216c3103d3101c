package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viktsys/stockplot/config"
	"github.com/viktsys/stockplot/logger"
	"github.com/viktsys/stockplot/models"
)

const (
	pricesGlob    = "*prices*.csv"
	companiesGlob = "*companies*.csv"
)

// PriceRecord is one raw row of a prices CSV.
type PriceRecord struct {
	Date      string
	Ticker    string
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
	Dividends string
}

// columns maps a CSV header to field positions; -1 means absent.
type columns struct {
	date, ticker, open, high, low, close, volume, dividends int
}

func priceColumns(header []string) (columns, error) {
	idx := headerIndex(header)
	cols := columns{
		date:      lookup(idx, "date"),
		ticker:    lookup(idx, "ticker", "symbol"),
		open:      lookup(idx, "open"),
		high:      lookup(idx, "high"),
		low:       lookup(idx, "low"),
		close:     lookup(idx, "close"),
		volume:    lookup(idx, "volume"),
		dividends: lookup(idx, "dividends"),
	}
	if cols.date < 0 || cols.ticker < 0 || cols.close < 0 {
		return cols, fmt.Errorf("prices header must have date, ticker and close columns, got %v", header)
	}
	return cols, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func lookup(idx map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := idx[n]; ok {
			return i
		}
	}
	return -1
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

type Processor struct {
	db             *gorm.DB
	cfg            config.IngestConfig
	log            zerolog.Logger
	processedRows  int64
	processedFiles int64
	skippedRows    int64
}

func NewProcessor(db *gorm.DB, cfg config.IngestConfig, log zerolog.Logger) *Processor {
	return &Processor{
		db:  db,
		cfg: cfg,
		log: logger.Component(log, "ingest"),
	}
}

// Stats reports rows written, files done and rows skipped so far.
func (p *Processor) Stats() (rows, files, skipped int64) {
	return atomic.LoadInt64(&p.processedRows), atomic.LoadInt64(&p.processedFiles), atomic.LoadInt64(&p.skippedRows)
}

// ProcessDirectory loads every companies CSV, then every prices CSV in
// dataDir, price files in parallel.
func (p *Processor) ProcessDirectory(ctx context.Context, dataDir string) error {
	startTime := time.Now()

	companyFiles, err := filepath.Glob(filepath.Join(dataDir, companiesGlob))
	if err != nil {
		return fmt.Errorf("failed to find company CSV files: %w", err)
	}
	priceFiles, err := filepath.Glob(filepath.Join(dataDir, pricesGlob))
	if err != nil {
		return fmt.Errorf("failed to find price CSV files: %w", err)
	}
	if len(companyFiles)+len(priceFiles) == 0 {
		return fmt.Errorf("no prices or companies CSV files found in directory: %s", dataDir)
	}

	for _, file := range companyFiles {
		if err := p.ProcessCompanies(ctx, file); err != nil {
			return err
		}
	}

	p.log.Info().
		Int("files", len(priceFiles)).
		Int("file_workers", p.cfg.FileWorkers).
		Int("batch_workers", p.cfg.WorkerCount).
		Msg("Processing price files")

	// Semáforo limita arquivos processados ao mesmo tempo
	semaphore := make(chan struct{}, p.cfg.FileWorkers)
	var wg sync.WaitGroup
	errorChan := make(chan error, len(priceFiles))

	for _, file := range priceFiles {
		wg.Add(1)
		go func(filename string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			fileStart := time.Now()
			if err := p.ProcessFile(ctx, filename); err != nil {
				p.log.Error().Err(err).Str("file", filename).Msg("Error processing file")
				errorChan <- fmt.Errorf("%s: %w", filepath.Base(filename), err)
				return
			}

			atomic.AddInt64(&p.processedFiles, 1)
			p.log.Info().Str("file", filename).Dur("took", time.Since(fileStart)).Msg("Successfully processed file")
		}(file)
	}

	wg.Wait()
	close(errorChan)

	var errs []error
	for err := range errorChan {
		errs = append(errs, err)
	}

	rows, files, skipped := p.Stats()
	p.log.Info().
		Int64("rows", rows).
		Int64("files", files).
		Int64("skipped", skipped).
		Dur("took", time.Since(startTime)).
		Msg("Ingestion finished")

	return errors.Join(errs...)
}

// ProcessCompanies upserts company reference rows.
func (p *Processor) ProcessCompanies(ctx context.Context, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	companies, err := readCompanies(file)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}
	if len(companies) == 0 {
		return nil
	}

	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "sector", "industry"}),
	}).CreateInBatches(companies, p.cfg.BatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert companies: %w", err)
	}

	p.log.Info().Str("file", filename).Int("companies", len(companies)).Msg("Companies loaded")
	return nil
}

func readCompanies(r io.Reader) ([]models.Company, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := headerIndex(header)
	symbol := lookup(idx, "symbol", "ticker")
	if symbol < 0 {
		return nil, fmt.Errorf("companies header must have a symbol column, got %v", header)
	}
	name := lookup(idx, "name", "shortname", "longname", "company")
	sector := lookup(idx, "sector")
	industry := lookup(idx, "industry")

	var out []models.Company
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read companies: %w", err)
		}
		s := strings.ToUpper(field(record, symbol))
		if s == "" {
			continue
		}
		out = append(out, models.Company{
			Symbol:   s,
			Name:     field(record, name),
			Sector:   field(record, sector),
			Industry: field(record, industry),
		})
	}
	return out, nil
}

func (p *Processor) ProcessFile(ctx context.Context, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	recordChan := make(chan []PriceRecord, p.cfg.BufferSize)
	errorChan := make(chan error, p.cfg.WorkerCount+1)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.WorkerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, recordChan, errorChan, &wg)
	}

	go func() {
		defer close(recordChan)
		batches, err := p.readPrices(ctx, file, recordChan)
		if err != nil {
			errorChan <- err
			return
		}
		p.log.Debug().Int("batches", batches).Str("file", filepath.Base(filename)).Msg("Sent batches for processing")
	}()

	go func() {
		wg.Wait()
		close(errorChan)
	}()

	for err := range errorChan {
		if err != nil {
			cancel()
			return fmt.Errorf("worker error: %w", err)
		}
	}
	return ctx.Err()
}

// readPrices streams CSV rows into out in batches of cfg.BatchSize.
func (p *Processor) readPrices(ctx context.Context, r io.Reader, out chan<- []PriceRecord) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := priceColumns(header)
	if err != nil {
		return 0, err
	}

	batch := make([]PriceRecord, 0, p.cfg.BatchSize)
	batches := 0
	send := func() bool {
		batchCopy := make([]PriceRecord, len(batch))
		copy(batchCopy, batch)
		select {
		case out <- batchCopy:
			batches++
			batch = batch[:0]
			return true
		case <-ctx.Done():
			return false
		}
	}

	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			p.log.Warn().Err(err).Int("line", lineNum).Msg("Error reading CSV line")
			atomic.AddInt64(&p.skippedRows, 1)
			continue
		}

		batch = append(batch, PriceRecord{
			Date:      field(record, cols.date),
			Ticker:    field(record, cols.ticker),
			Open:      field(record, cols.open),
			High:      field(record, cols.high),
			Low:       field(record, cols.low),
			Close:     field(record, cols.close),
			Volume:    field(record, cols.volume),
			Dividends: field(record, cols.dividends),
		})
		if len(batch) >= p.cfg.BatchSize && !send() {
			return batches, ctx.Err()
		}
	}

	if len(batch) > 0 && !send() {
		return batches, ctx.Err()
	}
	return batches, nil
}

func (p *Processor) worker(ctx context.Context, recordChan <-chan []PriceRecord, errorChan chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case batch, ok := <-recordChan:
			if !ok {
				return
			}
			if err := p.processBatch(ctx, batch); err != nil {
				errorChan <- err
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Processor) processBatch(ctx context.Context, records []PriceRecord) error {
	prices := make([]models.Price, 0, len(records))
	for _, record := range records {
		price, err := p.parsePriceRecord(record)
		if err != nil {
			atomic.AddInt64(&p.skippedRows, 1)
			continue
		}
		prices = append(prices, price)
	}
	if len(prices) == 0 {
		return nil
	}

	// Linhas já carregadas (ticker, date) são ignoradas
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(prices, len(prices)).Error
	if err != nil {
		return err
	}
	atomic.AddInt64(&p.processedRows, int64(len(prices)))
	return nil
}

func (p *Processor) parsePriceRecord(record PriceRecord) (models.Price, error) {
	var price models.Price

	// A data pode vir com horário e fuso ("2024-06-03 00:00:00-04:00")
	dateStr := record.Date
	if len(dateStr) > 10 {
		dateStr = dateStr[:10]
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return price, fmt.Errorf("invalid date format: %w", err)
	}

	ticker := strings.ToUpper(record.Ticker)
	if ticker == "" {
		return price, errors.New("missing ticker")
	}

	closePrice, err := parseFloat(record.Close)
	if err != nil {
		return price, fmt.Errorf("invalid close price: %w", err)
	}
	open, err := parseOptionalFloat(record.Open, closePrice)
	if err != nil {
		return price, fmt.Errorf("invalid open price: %w", err)
	}
	high, err := parseOptionalFloat(record.High, closePrice)
	if err != nil {
		return price, fmt.Errorf("invalid high price: %w", err)
	}
	low, err := parseOptionalFloat(record.Low, closePrice)
	if err != nil {
		return price, fmt.Errorf("invalid low price: %w", err)
	}
	volume, err := parseOptionalFloat(record.Volume, 0)
	if err != nil {
		return price, fmt.Errorf("invalid volume format: %w", err)
	}
	dividends, err := parseOptionalFloat(record.Dividends, 0)
	if err != nil {
		return price, fmt.Errorf("invalid dividends format: %w", err)
	}

	price.Ticker = ticker
	price.Date = date
	price.Open = open
	price.High = high
	price.Low = low
	price.Close = closePrice
	price.Volume = int64(volume)
	price.Dividends = dividends
	price.CreatedAt = time.Now()

	return price, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func parseOptionalFloat(s string, fallback float64) (float64, error) {
	if s == "" {
		return fallback, nil
	}
	return parseFloat(s)
}
