package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/viktsys/stockplot/service"
)

var (
	plotTicker string
	plotStart  string
	plotEnd    string
)

// plotExamples are the free-text commands shown in the plot help.
var plotExamples = []string{
	"plot (MSFT) cumulative return for 2024",
	"show correlation heatmap for AAPL, MSFT, KO in 2024",
}

var plotCMD = &cobra.Command{
	Use:   "plot [command...]",
	Short: "Render one chart and print where it was stored",
	Long: `Render a single chart without starting the server. Either pass a free-text
command or --ticker with --start and --end for a closing price chart over an
explicit range. A single ticker goes in parentheses, as in "(MSFT)"; ticker
lists follow "for" separated by commas or "and".`,
	Example: `  stockplot plot "` + plotExamples[0] + `"
  stockplot plot "` + plotExamples[1] + `"
  stockplot plot --ticker AAPL --start 2024-01-01 --end 2024-06-30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.TrimSpace(strings.Join(args, " "))
		if command == "" && plotTicker == "" {
			return fmt.Errorf("either a plot command or --ticker is required")
		}

		ctx := cmd.Context()
		a, err := bootstrap(ctx, true)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		var res service.Result
		if command != "" {
			res, err = a.service.PlotCommand(ctx, command)
		} else {
			var start, end time.Time
			if start, err = time.Parse("2006-01-02", plotStart); err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			if end, err = time.Parse("2006-01-02", plotEnd); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			res, err = a.service.PlotRange(ctx, plotTicker, start, end)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
		fmt.Fprintln(cmd.OutOrStdout(), res.PlotURL)
		return nil
	},
}

func init() {
	plotCMD.Flags().StringVar(&plotTicker, "ticker", "", "ticker for an explicit range plot")
	plotCMD.Flags().StringVar(&plotStart, "start", "", "range start (YYYY-MM-DD)")
	plotCMD.Flags().StringVar(&plotEnd, "end", "", "range end (YYYY-MM-DD)")
}
