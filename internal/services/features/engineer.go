package features

import "PriceCast/internal/domain/models"

// Engineer adapts Build to the fit/transform shape used by the model
// pipeline. It holds no fitted state.
type Engineer struct {
	cfg Config
}

// NewEngineer validates cfg and returns an Engineer.
func NewEngineer(cfg Config) (*Engineer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engineer{cfg: cfg}, nil
}

// Fit is a no-op.
func (e *Engineer) Fit([]models.PricePoint) error { return nil }

// Transform builds the feature table for points.
func (e *Engineer) Transform(points []models.PricePoint) (Table, error) {
	return Build(points, e.cfg)
}

// TransformWithHistory builds segment features using history as context.
func (e *Engineer) TransformWithHistory(history, segment []models.PricePoint) (Table, error) {
	return BuildWithHistory(history, segment, e.cfg)
}

// FeatureNames returns the output column names.
func (e *Engineer) FeatureNames() []string { return e.cfg.Names() }
