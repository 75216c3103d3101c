package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/viktsys/stockplot/config"
	"github.com/viktsys/stockplot/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Pool sized for read-only plot queries
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if cfg.SkipMigrate {
		log.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("Database connected")
		return db, nil
	}

	// Auto migrate the schema
	if err := db.AutoMigrate(&models.Price{}, &models.Company{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Apply database optimizations
	if err := OptimizeIndexes(db, log); err != nil {
		log.Warn().Err(err).Msg("Failed to optimize indexes")
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("Database connected and migrated successfully")
	return db, nil
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
