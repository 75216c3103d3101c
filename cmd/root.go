package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCMD = &cobra.Command{
	Use:   "stockplot",
	Short: "DJIA chart generation from plain-language plot commands",
	Long: `A CLI application for loading DJIA price data into Postgres and
rendering charts from it, either from explicit date ranges or from
free-text plot commands, through a REST API or one-shot from the shell.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCMD.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	rootCMD.AddCommand(serverCMD)
	rootCMD.AddCommand(ingestCMD)
	rootCMD.AddCommand(plotCMD)
}
