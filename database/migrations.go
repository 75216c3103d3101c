package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// OptimizeIndexes cria índices otimizados para as consultas de gráficos
func OptimizeIndexes(db *gorm.DB, log zerolog.Logger) error {
	// Time series por ticker: ticker primeiro, depois data (mais seletivo)
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_prices_ticker_date_desc
		ON prices (ticker, date DESC)
	`).Error; err != nil {
		return fmt.Errorf("failed to create prices ticker/date index: %w", err)
	}

	// Snapshots cross-sectional e MAX(date) usam só a data
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_prices_date
		ON prices (date DESC)
	`).Error; err != nil {
		return fmt.Errorf("failed to create prices date index: %w", err)
	}

	// Dividend totals only touch rows that paid something
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_prices_dividends
		ON prices (ticker, date)
		WHERE dividends > 0
	`).Error; err != nil {
		return fmt.Errorf("failed to create prices dividends index: %w", err)
	}

	log.Info().Msg("Database indexes optimized successfully")
	return nil
}
