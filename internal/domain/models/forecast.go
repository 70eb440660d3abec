package models

import "time"

// HyperParams is one point of the random forest search space.
type HyperParams struct {
	NEstimators     int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MaxFeatures     string `json:"max_features"`
	Bootstrap       bool   `json:"bootstrap"`
}

// FeatureImportance pairs a feature name with its normalized weight.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Prediction is an aligned (date, actual, predicted) triple.
type Prediction struct {
	Date      time.Time `json:"date"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
}

// EvaluationResult holds test-segment accuracy and the importance ranking.
type EvaluationResult struct {
	MAE         float64             `json:"mae"`
	MAPE        float64             `json:"mape"` // fraction, not percent
	R2          float64             `json:"r2"`
	Importances []FeatureImportance `json:"importances"`
	Predictions []Prediction        `json:"predictions"`
}

// HalvingRound summarizes one successive-halving iteration.
type HalvingRound struct {
	Iteration  int     `json:"iteration"`
	Resources  int     `json:"resources"`
	Candidates int     `json:"candidates"`
	Failed     int     `json:"failed"`
	BestScore  float64 `json:"best_score"`
}

// ForecastParams are the tunable inputs of a forecast run.
type ForecastParams struct {
	LookbackYears int     `json:"lookback_years"`
	Lags          int     `json:"lags"`
	Window        int     `json:"window"`
	TrainFraction float64 `json:"train_fraction"`
	CVFolds       int     `json:"cv_folds"`
	Factor        int     `json:"halving_factor"`
	Seed          int64   `json:"seed"`
}

// FeatureContextTrainHistory marks reports whose validation and test rows
// took their lag and rolling features from the preceding training rows.
const FeatureContextTrainHistory = "train_history"

// ForecastReport is everything the dashboard needs from one run.
type ForecastReport struct {
	RunID          string           `json:"run_id"`
	SeriesCode     string           `json:"series_code"`
	Target         string           `json:"target"`
	Params         ForecastParams   `json:"params"`
	BestParams     HyperParams      `json:"best_params"`
	BestCVScore    float64          `json:"best_cv_score"` // negative MSE
	FeatureContext string           `json:"feature_context"`
	Rounds         []HalvingRound   `json:"rounds"`
	WindowStart    time.Time        `json:"window_start"`
	WindowEnd      time.Time        `json:"window_end"`
	TrainSize      int              `json:"train_size"`
	TestSize       int              `json:"test_size"`
	Evaluation     EvaluationResult `json:"evaluation"`
	CreatedAt      time.Time        `json:"created_at"`
	TrainDuration  time.Duration    `json:"train_duration"`
}
