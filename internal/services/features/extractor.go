package features

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"PriceCast/internal/domain/models"
)

// ErrSeriesTooShort is returned when a series cannot yield a single row with
// every feature defined.
var ErrSeriesTooShort = errors.New("series too short for lag/window requirement")

// Config controls which lagged and rolling features are derived.
type Config struct {
	Target string // name of the price column, never emitted as a feature
	Lags   int
	Window int
}

// Validate checks the lag and window sizes.
func (c Config) Validate() error {
	if c.Lags < 1 {
		return fmt.Errorf("lags must be >= 1, got %d", c.Lags)
	}
	if c.Window < 1 {
		return fmt.Errorf("window must be >= 1, got %d", c.Window)
	}
	return nil
}

// MinHistory is the number of leading rows that carry at least one
// zero-filled feature. A series must be longer than this.
func (c Config) MinHistory() int {
	return max(c.Lags, c.Window, 2)
}

// CheckLength returns ErrSeriesTooShort if n rows cannot produce one fully
// defined feature row.
func (c Config) CheckLength(n int) error {
	if n <= c.MinHistory() {
		return fmt.Errorf("%d rows, need more than %d: %w", n, c.MinHistory(), ErrSeriesTooShort)
	}
	return nil
}

// Names returns the feature columns in output order.
func (c Config) Names() []string {
	names := make([]string, 0, c.Lags+9)
	for lag := 1; lag <= c.Lags; lag++ {
		names = append(names, fmt.Sprintf("lag_%d", lag))
	}
	names = append(names,
		fmt.Sprintf("rolling_mean_%d", c.Window),
		"diff",
		"month",
		"day_of_week",
		fmt.Sprintf("rolling_std_%d", c.Window),
		"day",
		"quarter",
		"year",
	)
	return names
}

// Table is a supervised-learning feature matrix aligned with its source rows.
type Table struct {
	Names []string
	Dates []time.Time
	Rows  [][]float64
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Column returns a copy of the named column, or nil if absent.
func (t Table) Column(name string) []float64 {
	for j, n := range t.Names {
		if n != name {
			continue
		}
		out := make([]float64, len(t.Rows))
		for i, row := range t.Rows {
			out[i] = row[j]
		}
		return out
	}
	return nil
}

// Build derives the feature table for points. Row i only reads prices at
// indices < i; calendar fields come from row i's own date. Undefined values
// are zero-filled, so the output has exactly len(points) rows.
func Build(points []models.PricePoint, cfg Config) (Table, error) {
	if err := cfg.Validate(); err != nil {
		return Table{}, err
	}
	prices := models.Prices(points)
	t := Table{
		Names: cfg.Names(),
		Dates: models.Dates(points),
		Rows:  make([][]float64, len(points)),
	}
	for i, p := range points {
		row := make([]float64, 0, len(t.Names))
		for lag := 1; lag <= cfg.Lags; lag++ {
			row = append(row, at(prices, i-lag))
		}
		mean, std := trailingStats(prices, i, cfg.Window)
		row = append(row,
			mean,
			diffAt(prices, i),
			float64(p.Date.Month()),
			float64(weekdayMonday0(p.Date)),
			std,
			float64(p.Date.Day()),
			float64(quarter(p.Date)),
			float64(p.Date.Year()),
		)
		t.Rows[i] = row
	}
	return t, nil
}

// BuildWithHistory computes features on history followed by segment and
// returns only the segment's rows. The history supplies real lags for the
// first segment rows instead of zeros.
func BuildWithHistory(history, segment []models.PricePoint, cfg Config) (Table, error) {
	joined := make([]models.PricePoint, 0, len(history)+len(segment))
	joined = append(joined, history...)
	joined = append(joined, segment...)
	full, err := Build(joined, cfg)
	if err != nil {
		return Table{}, err
	}
	k := len(history)
	return Table{Names: full.Names, Dates: full.Dates[k:], Rows: full.Rows[k:]}, nil
}

func at(xs []float64, i int) float64 {
	if i < 0 || i >= len(xs) {
		return 0
	}
	return xs[i]
}

// diffAt is the first difference of the one-day-shifted series.
func diffAt(prices []float64, i int) float64 {
	if i < 2 {
		return 0
	}
	return prices[i-1] - prices[i-2]
}

// trailingStats returns mean and sample std of prices[i-w:i]. Both are zero
// when the window is incomplete; std is zero when w == 1.
func trailingStats(prices []float64, i, w int) (float64, float64) {
	if i < w {
		return 0, 0
	}
	window := prices[i-w : i]
	if w < 2 {
		return stat.Mean(window, nil), 0
	}
	return stat.MeanStdDev(window, nil)
}

func weekdayMonday0(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}
