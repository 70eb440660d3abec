package search

import (
	"context"
	"fmt"
	"runtime"

	"gonum.org/v1/gonum/floats"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/ml"
	"PriceCast/pkg/logger"
)

// Config configures a halving grid search.
type Config struct {
	Features features.Config
	Grid     Grid
	Folds    int
	Factor   int
	Seed     int64
	Workers  int
}

// Result is the refit winner of a search.
type Result struct {
	Best       *ml.Pipeline
	BestParams models.HyperParams
	BestScore  float64 // mean negative MSE over CV folds
	Rounds     []models.HalvingRound
}

// HalvingGridSearch tunes the forest pipeline with successive halving over
// time-ordered cross validation.
type HalvingGridSearch struct {
	cfg Config
	log *logger.Logger
}

// Option configures a HalvingGridSearch.
type Option func(*HalvingGridSearch)

// WithLogger sets the search logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *HalvingGridSearch) { s.log = l }
}

// WithWorkers bounds the number of candidates evaluated concurrently.
func WithWorkers(n int) Option {
	return func(s *HalvingGridSearch) { s.cfg.Workers = n }
}

// NewHalvingGridSearch creates a search over cfg.Grid.
func NewHalvingGridSearch(cfg Config, opts ...Option) *HalvingGridSearch {
	s := &HalvingGridSearch{cfg: cfg, log: logger.Nop()}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.Workers <= 0 {
		s.cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return s
}

// Fit runs the search on the training segment and refits the winner on all
// of it.
func (s *HalvingGridSearch) Fit(ctx context.Context, train []models.PricePoint) (*Result, error) {
	cands, err := s.cfg.Grid.Candidates()
	if err != nil {
		return nil, models.NewForecastError(models.ErrKindConfig, err)
	}
	if err := s.cfg.Features.Validate(); err != nil {
		return nil, models.NewForecastError(models.ErrKindConfig, err)
	}
	cv := TimeSeriesSplit{Folds: s.cfg.Folds}
	if _, err := cv.Split(len(train)); err != nil {
		return nil, models.NewForecastError(models.ErrKindConfig, err)
	}
	if len(train) < 2*s.cfg.Folds {
		return nil, models.NewForecastError(models.ErrKindConfig,
			fmt.Errorf("%d training rows, need at least %d for %d folds", len(train), 2*s.cfg.Folds, s.cfg.Folds))
	}
	if s.cfg.Factor < 2 {
		return nil, models.NewForecastError(models.ErrKindConfig, fmt.Errorf("halving factor must be >= 2, got %d", s.cfg.Factor))
	}

	h := NewHalving[models.HyperParams](HalvingConfig{
		Factor:       s.cfg.Factor,
		MinResources: 2 * s.cfg.Folds,
		MaxResources: len(train),
		Workers:      s.cfg.Workers,
	}, s.log)

	objective := func(ctx context.Context, p models.HyperParams, resources int) (float64, error) {
		return s.score(ctx, train[len(train)-resources:], p, cv)
	}
	hr, err := h.Run(ctx, cands, objective)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, models.NewForecastError(models.ErrKindFit, fmt.Errorf("halving search: %w", err))
	}

	best, err := ml.FitPipeline(ctx, train, s.pipelineConfig(hr.Best.Candidate))
	if err != nil {
		return nil, models.NewForecastError(models.ErrKindFit, fmt.Errorf("refit best candidate: %w", err))
	}

	rounds := make([]models.HalvingRound, len(hr.Rounds))
	for i, r := range hr.Rounds {
		top, _ := r.Best()
		rounds[i] = models.HalvingRound{
			Iteration:  r.Iteration,
			Resources:  r.Resources,
			Candidates: len(r.Scores),
			Failed:     r.Failed(),
			BestScore:  top.Score,
		}
	}

	s.log.Info("halving grid search finished",
		logger.Int("candidates", len(cands)),
		logger.Int("rounds", len(rounds)),
		logger.Float64("best_score", hr.Best.Score),
		logger.Any("best_params", hr.Best.Candidate),
	)

	return &Result{
		Best:       best,
		BestParams: hr.Best.Candidate,
		BestScore:  hr.Best.Score,
		Rounds:     rounds,
	}, nil
}

// score returns the mean negative MSE of p over the CV folds of rows.
func (s *HalvingGridSearch) score(ctx context.Context, rows []models.PricePoint, p models.HyperParams, cv TimeSeriesSplit) (float64, error) {
	folds, err := cv.Split(len(rows))
	if err != nil {
		return 0, err
	}
	total := 0.0
	for k, f := range folds {
		fit := rows[:f.TrainEnd]
		val := rows[f.TestStart:f.TestEnd]
		model, err := ml.FitPipeline(ctx, fit, s.pipelineConfig(p))
		if err != nil {
			return 0, fmt.Errorf("fold %d: %w", k, err)
		}
		pred, err := model.PredictWithHistory(fit, val)
		if err != nil {
			return 0, fmt.Errorf("fold %d: %w", k, err)
		}
		total += -meanSquaredError(models.Prices(val), pred)
	}
	return total / float64(len(folds)), nil
}

func (s *HalvingGridSearch) pipelineConfig(p models.HyperParams) ml.PipelineConfig {
	return ml.PipelineConfig{Features: s.cfg.Features, Params: p, Seed: s.cfg.Seed}
}

func meanSquaredError(actual, pred []float64) float64 {
	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, pred)
	return floats.Dot(diff, diff) / float64(len(actual))
}
