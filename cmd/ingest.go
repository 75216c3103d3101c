package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/viktsys/stockplot/ingest"
)

var ingestCMD = &cobra.Command{
	Use:   "ingest [data-directory]",
	Short: "Load DJIA companies and prices CSV files into the database",
	Long: `Load djia_companies_*.csv and djia_prices_*.csv files from the specified
directory, using parallel goroutines for the price files. Rows already in the
database are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := args[0]

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, false)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		processor := ingest.NewProcessor(a.db, a.cfg.Ingest, a.log)

		a.log.Info().Str("dir", dataDir).Msg("Starting parallel ingestion")
		if err := processor.ProcessDirectory(ctx, dataDir); err != nil {
			return fmt.Errorf("failed to process data: %w", err)
		}

		rows, files, skipped := processor.Stats()
		fmt.Printf("Data ingestion completed: %d rows from %d price files (%d skipped)\n", rows, files, skipped)
		return nil
	},
}
