package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"PriceCast/internal/di"
	"PriceCast/pkg/logger"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the configured series from Ipeadata into the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.ClickHouse.Enabled {
			return fmt.Errorf("sync needs clickhouse.enabled: the in-memory mirror does not outlive the process")
		}
		fc, cleanup, err := di.InitializeForecaster(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		s, err := fc.Source.Sync(ctx, cfg.Forecast.SeriesCode)
		if err != nil {
			return err
		}
		if err := fc.UseCase.InvalidateReports(ctx); err != nil {
			fc.Logger.Warn("invalidate cached reports failed", logger.Error(err))
		}
		if len(s.Points) == 0 {
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %s: %d points, %s .. %s\n",
			cfg.Forecast.SeriesCode, len(s.Points),
			s.Points[0].Date.Format("2006-01-02"), s.Points[len(s.Points)-1].Date.Format("2006-01-02"))
		return nil
	},
}
