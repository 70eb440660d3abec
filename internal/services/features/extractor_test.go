package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
)

func linear(n int) []models.PricePoint {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, n)
	for i := range out {
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Price: 100 + float64(i)}
	}
	return out
}

func TestNames_Order(t *testing.T) {
	cfg := Config{Target: "Price", Lags: 2, Window: 3}
	assert.Equal(t, []string{
		"lag_1", "lag_2", "rolling_mean_3", "diff", "month", "day_of_week",
		"rolling_std_3", "day", "quarter", "year",
	}, cfg.Names())
	assert.NotContains(t, cfg.Names(), "Price")
}

func TestBuild_Values(t *testing.T) {
	cfg := Config{Target: "Price", Lags: 2, Window: 3}
	tbl, err := Build(linear(10), cfg)
	require.NoError(t, err)

	row := tbl.Rows[5] // price 105, date 2021-01-06 (Wednesday)
	assert.Equal(t, 104.0, row[0])
	assert.Equal(t, 103.0, row[1])
	assert.InDelta(t, 103.0, row[2], 1e-12) // mean(102,103,104)
	assert.Equal(t, 1.0, row[3])
	assert.Equal(t, 1.0, row[4])
	assert.Equal(t, 2.0, row[5])
	assert.InDelta(t, 1.0, row[6], 1e-12) // sample std of 3 consecutive ints
	assert.Equal(t, 6.0, row[7])
	assert.Equal(t, 1.0, row[8])
	assert.Equal(t, 2021.0, row[9])
}

func TestTrailingStats(t *testing.T) {
	prices := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	mean, std := trailingStats(prices, 8, 8)
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7), std, 1e-12, "sample std")

	mean, std = trailingStats(prices, 8, 1)
	assert.Equal(t, 9.0, mean)
	assert.Zero(t, std)

	mean, std = trailingStats(prices, 3, 4)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

func TestBuild_ZeroFillsInsteadOfDropping(t *testing.T) {
	cfg := Config{Target: "Price", Lags: 7, Window: 7}
	points := linear(5)

	tbl, err := Build(points, cfg)

	require.NoError(t, err)
	assert.Equal(t, len(points), tbl.Len())
	first := tbl.Rows[0]
	for j := 0; j < 7; j++ {
		assert.Zero(t, first[j], tbl.Names[j])
	}
	assert.Zero(t, tbl.Column("rolling_mean_7")[4])
	assert.Zero(t, tbl.Column("rolling_std_7")[4])
	assert.Zero(t, tbl.Column("diff")[1])
	assert.Equal(t, 1.0, tbl.Column("diff")[2])
}

func TestBuild_Causality(t *testing.T) {
	cfg := Config{Target: "Price", Lags: 7, Window: 7}
	base := linear(60)
	want, err := Build(base, cfg)
	require.NoError(t, err)

	for _, r := range []int{0, 1, 7, 30, 59} {
		mutated := append([]models.PricePoint(nil), base...)
		for i := r; i < len(mutated); i++ {
			mutated[i].Price = -1000 * float64(i+1)
		}
		got, err := Build(mutated, cfg)
		require.NoError(t, err)
		for i := 0; i <= r; i++ {
			assert.Equal(t, want.Rows[i], got.Rows[i], "row %d changed after mutating from %d", i, r)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	cfg := Config{Target: "Price", Lags: 7, Window: 7}
	points := linear(200)
	a, err := Build(points, cfg)
	require.NoError(t, err)
	b, err := Build(points, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildWithHistory_UsesContext(t *testing.T) {
	cfg := Config{Target: "Price", Lags: 3, Window: 5}
	points := linear(20)

	tbl, err := BuildWithHistory(points[:15], points[15:], cfg)
	require.NoError(t, err)
	full, err := Build(points, cfg)
	require.NoError(t, err)

	assert.Equal(t, 5, tbl.Len())
	assert.Equal(t, full.Rows[15:], tbl.Rows)
	assert.Equal(t, 114.0, tbl.Column("lag_1")[0])
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{Lags: 0, Window: 7}.Validate())
	assert.Error(t, Config{Lags: 7, Window: 0}.Validate())
	assert.NoError(t, Config{Lags: 1, Window: 1}.Validate())
}

func TestConfig_CheckLength(t *testing.T) {
	cfg := Config{Lags: 7, Window: 7}
	assert.ErrorIs(t, cfg.CheckLength(7), ErrSeriesTooShort)
	assert.NoError(t, cfg.CheckLength(8))
	assert.Equal(t, 2, Config{Lags: 1, Window: 1}.MinHistory())
}

func TestEngineer_FitIsNoop(t *testing.T) {
	e, err := NewEngineer(Config{Target: "Price", Lags: 2, Window: 2})
	require.NoError(t, err)
	points := linear(10)
	require.NoError(t, e.Fit(points))
	a, err := e.Transform(points)
	require.NoError(t, err)
	require.NoError(t, e.Fit(linear(3)))
	b, err := e.Transform(points)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
