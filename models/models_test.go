package models

import (
	"sync"
	"testing"

	"gorm.io/gorm/schema"
)

func parseSchema(t *testing.T, model any) *schema.Schema {
	t.Helper()
	s, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("Failed to parse schema: %v", err)
	}
	return s
}

func TestPriceTickerDateUnique(t *testing.T) {
	s := parseSchema(t, &Price{})

	if s.Table != "prices" {
		t.Errorf("Expected table prices, got %s", s.Table)
	}

	idx, ok := s.ParseIndexes()["uidx_prices_ticker_date"]
	if !ok {
		t.Fatal("Expected unique index uidx_prices_ticker_date")
	}

	if idx.Class != "UNIQUE" {
		t.Errorf("Expected UNIQUE index, got %q", idx.Class)
	}

	var columns []string
	for _, f := range idx.Fields {
		columns = append(columns, f.DBName)
	}
	if len(columns) != 2 || columns[0] != "ticker" || columns[1] != "date" {
		t.Errorf("Expected index on (ticker, date), got %v", columns)
	}
}

func TestPriceDateColumnType(t *testing.T) {
	s := parseSchema(t, &Price{})

	field := s.LookUpField("date")
	if field == nil {
		t.Fatal("Expected date column")
	}

	if field.DataType != "date" {
		t.Errorf("Expected date column type, got %q", field.DataType)
	}
}

func TestCompanySymbolIsPrimaryKey(t *testing.T) {
	s := parseSchema(t, &Company{})

	if s.Table != "companies" {
		t.Errorf("Expected table companies, got %s", s.Table)
	}

	if s.PrioritizedPrimaryField == nil || s.PrioritizedPrimaryField.DBName != "symbol" {
		t.Errorf("Expected symbol primary key, got %v", s.PrioritizedPrimaryField)
	}

	if _, ok := s.ParseIndexes()["idx_companies_sector"]; !ok {
		t.Error("Expected index idx_companies_sector")
	}
}
