package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"PriceCast/pkg/config"
)

var configPath string

// rootCmd is the base command for the PriceCast CLI.
var rootCmd = &cobra.Command{
	Use:   "pricecast",
	Short: "Random forest forecasts for daily commodity prices",
	Long: `PriceCast downloads a daily price series from Ipeadata (Brent crude by
default), tunes a random forest with successive halving over a time series
cross validation and reports MAE, MAPE, R2 and feature importances.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; real environment variables still apply.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults when empty)")
	rootCmd.AddCommand(serveCmd, trainCmd, syncCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
