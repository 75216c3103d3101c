package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/viktsys/stockplot/config"
	"github.com/viktsys/stockplot/database"
	"github.com/viktsys/stockplot/fetcher"
	"github.com/viktsys/stockplot/logger"
	"github.com/viktsys/stockplot/market"
	"github.com/viktsys/stockplot/parser"
	"github.com/viktsys/stockplot/render"
	"github.com/viktsys/stockplot/service"
	"github.com/viktsys/stockplot/storage"
	"github.com/viktsys/stockplot/tracing"
)

// app is the wiring shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *gorm.DB
	market   *market.Store
	store    storage.Store
	service  *service.Service
	shutdown tracing.ShutdownFunc
}

// bootstrap loads config, sets up logging and tracing, and connects to
// the database. The plot pipeline is only built when withPlots is set.
func bootstrap(ctx context.Context, withPlots bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobal(log)

	shutdown, err := tracing.Setup(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	log.Info().Msg("Initializing database...")
	db, err := database.InitDB(cfg.Database, log)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		market:   market.NewStore(db, log),
		shutdown: shutdown,
	}
	if !withPlots {
		return a, nil
	}

	a.store, err = openStore(ctx, cfg.Output, log)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.service = service.New(
		parser.New(a.market, log),
		fetcher.New(a.market, log),
		render.New(a.store, log),
		a.store,
		cfg.Server.PublicURL,
		log,
	)
	return a, nil
}

func openStore(ctx context.Context, cfg config.OutputConfig, log zerolog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return storage.NewS3Store(ctx, cfg.S3, log)
	default:
		return storage.NewLocalStore(cfg.Dir, log)
	}
}

// outputDir is the local chart directory, or empty for remote stores.
func (a *app) outputDir() string {
	if ls, ok := a.store.(*storage.LocalStore); ok {
		return ls.Dir()
	}
	return ""
}

func (a *app) close(ctx context.Context) {
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Failed to flush traces")
	}
	if err := database.Close(a.db); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database")
	}
}
