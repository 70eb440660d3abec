package evaluate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/dataset"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/search"
)

type stubModel struct {
	pred  []float64
	names []string
	imp   []float64
	err   error
}

func (s stubModel) PredictWithHistory(_, _ []models.PricePoint) ([]float64, error) {
	return s.pred, s.err
}
func (s stubModel) FeatureNames() []string { return s.names }
func (s stubModel) Importances() []float64 { return s.imp }

func points(prices ...float64) []models.PricePoint {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Price: p}
	}
	return out
}

func TestMetrics(t *testing.T) {
	actual := []float64{100, 200, 300}
	pred := []float64{110, 190, 300}
	assert.InDelta(t, 20.0/3, MAE(actual, pred), 1e-12)
	assert.InDelta(t, (0.1+0.05)/3, MAPE(actual, pred), 1e-12)
	assert.InDelta(t, 1-200.0/20000, R2(actual, pred), 1e-12)

	assert.Equal(t, 1.0, R2(actual, actual))
	assert.Equal(t, 1.0, R2([]float64{5, 5}, []float64{5, 5}))
	assert.Equal(t, 0.0, R2([]float64{5, 5}, []float64{4, 6}))
	assert.Less(t, R2(actual, []float64{300, 100, 200}), 0.0)
}

func TestMAPE_ZeroActualUsesMachineEpsilon(t *testing.T) {
	assert.Equal(t, math.Nextafter(1, 2)-1, MAPEEpsilon)
	assert.InDelta(t, 1e-16/MAPEEpsilon, MAPE([]float64{0}, []float64{1e-16}), 1e-12)
	assert.Zero(t, MAPE(nil, nil))
}

func TestEvaluate_Stub(t *testing.T) {
	m := stubModel{
		pred:  []float64{11, 19},
		names: []string{"lag_1", "diff", "year"},
		imp:   []float64{0.25, 0.5, 0.25},
	}
	res, err := Evaluate(m, points(1, 2), points(10, 20))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.MAE, 1e-12)
	require.Len(t, res.Predictions, 2)
	assert.Equal(t, 20.0, res.Predictions[1].Actual)
	assert.Equal(t, 19.0, res.Predictions[1].Predicted)
	assert.Equal(t, []models.FeatureImportance{
		{Feature: "diff", Importance: 0.5},
		{Feature: "lag_1", Importance: 0.25},
		{Feature: "year", Importance: 0.25},
	}, res.Importances)
}

func TestEvaluate_EmptyTest(t *testing.T) {
	_, err := Evaluate(stubModel{}, points(1), nil)
	assert.ErrorIs(t, err, dataset.ErrEmptySegment)
}

func TestEvaluate_PredictError(t *testing.T) {
	_, err := Evaluate(stubModel{err: errors.New("boom")}, nil, points(1))
	assert.Equal(t, models.ErrKindFit, models.KindOf(err))
}

// A 100-day linear series split 90/10 should be forecast within a few units
// on the test segment.
func TestEvaluate_LinearSeriesEndToEnd(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]models.PricePoint, 100)
	for i := range series {
		series[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Price: 100 + float64(i)}
	}
	window, err := dataset.Window(series, 1)
	require.NoError(t, err)
	seg, err := dataset.Split(window, 0.9)
	require.NoError(t, err)
	require.Len(t, seg.Train, 90)
	require.Len(t, seg.Test, 10)

	s := search.NewHalvingGridSearch(search.Config{
		Features: features.Config{Target: "Price", Lags: 3, Window: 5},
		Grid: search.Grid{
			NEstimators:     []int{10, 20},
			MaxDepth:        []int{10},
			MinSamplesSplit: []int{2},
			MaxFeatures:     []string{"auto"},
			Bootstrap:       []bool{false},
		},
		Folds:  3,
		Factor: 3,
		Seed:   42,
	})
	res, err := s.Fit(context.Background(), seg.Train)
	require.NoError(t, err)

	ev, err := Evaluate(res.Best, seg.Train, seg.Test)
	require.NoError(t, err)
	assert.Less(t, ev.MAE, 10.0)
	assert.Len(t, ev.Predictions, 10)

	sum := 0.0
	for _, fi := range ev.Importances {
		assert.GreaterOrEqual(t, fi.Importance, 0.0)
		sum += fi.Importance
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	for i := 1; i < len(ev.Importances); i++ {
		assert.GreaterOrEqual(t, ev.Importances[i-1].Importance, ev.Importances[i].Importance)
	}
}
