package evaluate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/dataset"
)

// MAPEEpsilon bounds the MAPE denominator away from zero. It is the float64
// machine epsilon.
const MAPEEpsilon = 2.220446049250313e-16

// Model is what the evaluator needs from a fitted pipeline.
type Model interface {
	PredictWithHistory(history, segment []models.PricePoint) ([]float64, error)
	FeatureNames() []string
	Importances() []float64
}

// Evaluate predicts the test segment with history as lag context and scores
// the predictions.
func Evaluate(m Model, history, test []models.PricePoint) (*models.EvaluationResult, error) {
	if len(test) == 0 {
		return nil, models.NewForecastError(models.ErrKindConfig, fmt.Errorf("evaluate: %w", dataset.ErrEmptySegment))
	}
	pred, err := m.PredictWithHistory(history, test)
	if err != nil {
		return nil, models.NewForecastError(models.ErrKindFit, fmt.Errorf("predict test segment: %w", err))
	}
	if len(pred) != len(test) {
		return nil, models.NewForecastError(models.ErrKindFit,
			fmt.Errorf("predict test segment: %d predictions for %d rows", len(pred), len(test)))
	}
	actual := models.Prices(test)

	ranking, err := Ranking(m.FeatureNames(), m.Importances())
	if err != nil {
		return nil, models.NewForecastError(models.ErrKindFit, err)
	}

	out := &models.EvaluationResult{
		MAE:         MAE(actual, pred),
		MAPE:        MAPE(actual, pred),
		R2:          R2(actual, pred),
		Importances: ranking,
		Predictions: make([]models.Prediction, len(test)),
	}
	for i, p := range test {
		out.Predictions[i] = models.Prediction{Date: p.Date, Actual: p.Price, Predicted: pred[i]}
	}
	return out, nil
}

// MAE is the mean absolute error.
func MAE(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	return floats.Distance(actual, pred, 1) / float64(len(actual))
}

// MAPE is the mean absolute percentage error as a fraction.
func MAPE(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	ratios := make([]float64, len(actual))
	for i := range actual {
		ratios[i] = math.Abs(actual[i]-pred[i]) / math.Max(math.Abs(actual[i]), MAPEEpsilon)
	}
	return stat.Mean(ratios, nil)
}

// R2 is the coefficient of determination. Constant actuals score 1 for an
// exact fit and 0 otherwise.
func R2(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	if floats.Min(actual) == floats.Max(actual) {
		if floats.Equal(actual, pred) {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(pred, actual, nil)
}

// Ranking pairs names with importances sorted by descending weight. Ties
// keep the feature order.
func Ranking(names []string, importances []float64) ([]models.FeatureImportance, error) {
	if len(names) != len(importances) {
		return nil, fmt.Errorf("ranking: %d names vs %d importances", len(names), len(importances))
	}
	out := make([]models.FeatureImportance, len(names))
	for i, n := range names {
		out[i] = models.FeatureImportance{Feature: n, Importance: importances[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}
