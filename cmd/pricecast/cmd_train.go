package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"PriceCast/internal/di"
	"PriceCast/internal/domain/models"
	"PriceCast/internal/handler/cli"
)

var (
	trainParams models.ForecastParams
	trainTop    int
	trainRecent int
	trainJSON   bool
	trainSync   bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run one forecast and print its evaluation",
	Long: `Run the full pipeline once: load the series, cut the lookback window,
split train/test, run the halving grid search and evaluate the best model on
the test segment. Flags left at zero fall back to the configured defaults.

Example usage:
  pricecast train                          # reference run
  pricecast train --lags 14 --window 30    # different features
  pricecast train --sync --json            # refresh the mirror first, print JSON`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.IntVar(&trainParams.LookbackYears, "lookback", 0, "Lookback window in years")
	f.IntVar(&trainParams.Lags, "lags", 0, "Number of lag features")
	f.IntVar(&trainParams.Window, "window", 0, "Rolling window size")
	f.Float64Var(&trainParams.TrainFraction, "train-fraction", 0, "Share of the window used for training")
	f.IntVar(&trainParams.CVFolds, "folds", 0, "Time series CV folds")
	f.IntVar(&trainParams.Factor, "factor", 0, "Successive halving factor")
	f.Int64Var(&trainParams.Seed, "seed", 0, "Random seed")
	f.IntVar(&trainTop, "top", 15, "Importance rows to print (0 = all)")
	f.IntVar(&trainRecent, "recent", 10, "Recent test predictions to print (0 = none)")
	f.BoolVar(&trainJSON, "json", false, "Print the report as JSON")
	f.BoolVar(&trainSync, "sync", false, "Download the series before training")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fc, cleanup, err := di.InitializeForecaster(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if trainSync {
		if _, err := fc.Source.Sync(ctx, cfg.Forecast.SeriesCode); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
	}

	report, err := fc.UseCase.Run(ctx, trainParams)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if trainJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	cli.NewReportPrinter(out, cli.WithTop(trainTop), cli.WithRecent(trainRecent)).Print(report)
	return nil
}
