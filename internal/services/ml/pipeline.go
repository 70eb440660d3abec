package ml

import (
	"context"
	"errors"
	"fmt"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
)

// PipelineConfig is everything needed to fit a pipeline.
type PipelineConfig struct {
	Features features.Config
	Params   models.HyperParams
	Seed     int64
}

// ForestParams maps search hyperparameters onto forest parameters.
func (s PipelineConfig) ForestParams() ForestParams {
	return ForestParams{
		NEstimators: s.Params.NEstimators,
		Bootstrap:   s.Params.Bootstrap,
		Seed:        s.Seed,
		Tree: TreeParams{
			MaxDepth:        s.Params.MaxDepth,
			MinSamplesSplit: s.Params.MinSamplesSplit,
			MaxFeatures:     s.Params.MaxFeatures,
		},
	}
}

// Pipeline is a fitted feature engineer, scaler and forest. It is not
// modified after FitPipeline returns.
type Pipeline struct {
	engineer *features.Engineer
	scaler   *StandardScaler
	forest   *RandomForest
	params   models.HyperParams
	names    []string
}

// FitPipeline fits feature engineering, scaling and the forest on points,
// using each point's price as the regression target.
func FitPipeline(ctx context.Context, points []models.PricePoint, pc PipelineConfig) (*Pipeline, error) {
	if len(points) == 0 {
		return nil, errors.New("pipeline: no training rows")
	}
	eng, err := features.NewEngineer(pc.Features)
	if err != nil {
		return nil, err
	}
	if err := eng.Fit(points); err != nil {
		return nil, err
	}
	tbl, err := eng.Transform(points)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	scaler := &StandardScaler{}
	if err := scaler.Fit(tbl.Rows); err != nil {
		return nil, err
	}
	X, err := scaler.Transform(tbl.Rows)
	if err != nil {
		return nil, err
	}

	forest := NewRandomForest(pc.ForestParams())
	if err := forest.Fit(ctx, X, models.Prices(points)); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	return &Pipeline{
		engineer: eng,
		scaler:   scaler,
		forest:   forest,
		params:   pc.Params,
		names:    eng.FeatureNames(),
	}, nil
}

// PredictWithHistory predicts segment rows, using history for their lags.
func (p *Pipeline) PredictWithHistory(history, segment []models.PricePoint) ([]float64, error) {
	tbl, err := p.engineer.TransformWithHistory(history, segment)
	if err != nil {
		return nil, err
	}
	return p.predictTable(tbl)
}

func (p *Pipeline) predictTable(tbl features.Table) ([]float64, error) {
	if tbl.Len() == 0 {
		return []float64{}, nil
	}
	X, err := p.scaler.Transform(tbl.Rows)
	if err != nil {
		return nil, err
	}
	return p.forest.Predict(X)
}

// FeatureNames returns the engineered column names.
func (p *Pipeline) FeatureNames() []string { return append([]string(nil), p.names...) }

// Importances returns forest importances aligned with FeatureNames.
func (p *Pipeline) Importances() []float64 { return p.forest.FeatureImportances() }

// Params returns the hyperparameters the pipeline was fitted with.
func (p *Pipeline) Params() models.HyperParams { return p.params }
