package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/dataset"
	"PriceCast/internal/services/evaluate"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/search"
	"PriceCast/pkg/cache"
	xlogger "PriceCast/pkg/logger"
)

// ErrRunInProgress is returned when another process holds the run lock for
// the same parameters.
var ErrRunInProgress = errors.New("forecast run already in progress")

// ForecastConfig holds the fixed settings of the forecast use case.
type ForecastConfig struct {
	SeriesCode string
	Target     string
	Defaults   models.ForecastParams
	Grid       search.Grid
	Workers    int
	CacheTTL   time.Duration
	RunTimeout time.Duration
}

// ForecastUseCase loads the configured series, tunes the forest and
// evaluates it on the held-out tail of the window.
type ForecastUseCase struct {
	cfg     ForecastConfig
	source  domrepo.SeriesSource
	cache   cache.Store
	pub     domrepo.ReportPublisher
	metrics domrepo.Metrics
	logger  *xlogger.Logger
	group   singleflight.Group
	now     func() time.Time
	newID   func() string
}

func NewForecastUseCase(
	cfg ForecastConfig,
	source domrepo.SeriesSource,
	c cache.Store,
	pub domrepo.ReportPublisher,
	m domrepo.Metrics,
	logger *xlogger.Logger,
) *ForecastUseCase {
	if cfg.Target == "" {
		cfg.Target = "Price"
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastUseCase{
		cfg:     cfg,
		source:  source,
		cache:   c,
		pub:     pub,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Resolve fills zero fields of p from the configured defaults and checks
// the result.
func (uc *ForecastUseCase) Resolve(p models.ForecastParams) (models.ForecastParams, error) {
	d := uc.cfg.Defaults
	if p.LookbackYears == 0 {
		p.LookbackYears = d.LookbackYears
	}
	if p.Lags == 0 {
		p.Lags = d.Lags
	}
	if p.Window == 0 {
		p.Window = d.Window
	}
	if p.TrainFraction == 0 {
		p.TrainFraction = d.TrainFraction
	}
	if p.CVFolds == 0 {
		p.CVFolds = d.CVFolds
	}
	if p.Factor == 0 {
		p.Factor = d.Factor
	}
	if p.Seed == 0 {
		p.Seed = d.Seed
	}

	var err error
	switch {
	case p.LookbackYears <= 0:
		err = fmt.Errorf("lookback_years must be > 0, got %d", p.LookbackYears)
	case p.Lags < 1:
		err = fmt.Errorf("lags must be >= 1, got %d", p.Lags)
	case p.Window < 1:
		err = fmt.Errorf("window must be >= 1, got %d", p.Window)
	case p.TrainFraction <= 0 || p.TrainFraction >= 1:
		err = fmt.Errorf("train_fraction must be in (0,1), got %v", p.TrainFraction)
	case p.CVFolds < 2:
		err = fmt.Errorf("cv_folds must be >= 2, got %d", p.CVFolds)
	case p.Factor < 2:
		err = fmt.Errorf("halving_factor must be >= 2, got %d", p.Factor)
	}
	if err != nil {
		return p, models.NewForecastError(models.ErrKindConfig, err)
	}
	return p, nil
}

// Latest returns the cached report for p, running the pipeline on a miss.
func (uc *ForecastUseCase) Latest(ctx context.Context, p models.ForecastParams) (*models.ForecastReport, error) {
	p, err := uc.Resolve(p)
	if err != nil {
		return nil, err
	}
	if r, ok := uc.cached(ctx, p); ok {
		return r, nil
	}
	return uc.run(ctx, p)
}

// Run always retrains and replaces the cached report.
func (uc *ForecastUseCase) Run(ctx context.Context, p models.ForecastParams) (*models.ForecastReport, error) {
	p, err := uc.Resolve(p)
	if err != nil {
		return nil, err
	}
	return uc.run(ctx, p)
}

// run deduplicates concurrent runs with the same parameters.
func (uc *ForecastUseCase) run(ctx context.Context, p models.ForecastParams) (*models.ForecastReport, error) {
	key := uc.reportKey(p)
	ch := uc.group.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.RunTimeout)
		defer cancel()
		return uc.execute(runCtx, p)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.ForecastReport), nil
	}
}

func (uc *ForecastUseCase) execute(ctx context.Context, p models.ForecastParams) (*models.ForecastReport, error) {
	start := uc.now()
	code := uc.cfg.SeriesCode
	log := uc.logger.With(xlogger.String("series", code))

	if uc.cache != nil {
		unlock, err := uc.cache.Lock(ctx, cache.Key("lock", uc.reportKey(p)), uc.cfg.RunTimeout)
		switch {
		case errors.Is(err, cache.ErrLocked):
			return nil, ErrRunInProgress
		case err != nil:
			log.Warn("run lock unavailable, continuing without it", xlogger.Error(err))
		default:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					log.Warn("release run lock failed", xlogger.Error(err))
				}
			}()
		}
	}

	report, err := uc.pipeline(ctx, p, log)
	elapsed := uc.now().Sub(start)
	if uc.metrics != nil {
		uc.metrics.RecordRun(code, elapsed, err)
	}
	if err != nil {
		log.Error("forecast run failed",
			xlogger.String("kind", string(models.KindOf(err))),
			xlogger.Error(err),
		)
		return nil, err
	}
	report.TrainDuration = elapsed

	if uc.metrics != nil {
		uc.metrics.RecordEvaluation(code, report.Evaluation)
		uc.metrics.RecordRounds(code, report.Rounds)
	}
	if uc.cache != nil {
		if err := cache.SetJSON(ctx, uc.cache, uc.reportKey(p), report, uc.cfg.CacheTTL); err != nil {
			log.Warn("cache report failed", xlogger.Error(err))
		}
	}
	if uc.pub != nil {
		if err := uc.pub.PublishReport(ctx, report); err != nil {
			log.Warn("publish report failed", xlogger.Error(err))
		}
	}

	log.Info("forecast run done",
		xlogger.String("run_id", report.RunID),
		xlogger.Float64("mae", report.Evaluation.MAE),
		xlogger.Float64("mape_pct", report.Evaluation.MAPE*100),
		xlogger.Float64("r2", report.Evaluation.R2),
		xlogger.Any("best_params", report.BestParams),
		xlogger.Duration("duration_ms", elapsed),
	)
	return report, nil
}

func (uc *ForecastUseCase) pipeline(ctx context.Context, p models.ForecastParams, log *xlogger.Logger) (*models.ForecastReport, error) {
	code := uc.cfg.SeriesCode
	series, err := uc.source.GetSeries(ctx, code)
	if err != nil {
		if errors.Is(err, domrepo.ErrSeriesNotFound) {
			return nil, models.NewForecastError(models.ErrKindData, err)
		}
		return nil, fmt.Errorf("load series: %w", err)
	}

	points, err := dataset.Normalize(series.Points)
	if err != nil {
		return nil, models.NewForecastError(models.ErrKindData, fmt.Errorf("normalize: %w", err))
	}
	window, err := dataset.Window(points, p.LookbackYears)
	if err != nil {
		return nil, models.NewForecastError(models.ErrKindConfig, err)
	}
	fc := features.Config{Target: uc.cfg.Target, Lags: p.Lags, Window: p.Window}
	if err := fc.CheckLength(len(window)); err != nil {
		return nil, models.NewForecastError(models.ErrKindData, err)
	}
	seg, err := dataset.Split(window, p.TrainFraction)
	if err != nil {
		return nil, models.NewForecastError(models.ErrKindConfig, err)
	}
	log.Info("forecast window ready",
		xlogger.Int("observations", len(points)),
		xlogger.Int("window", len(window)),
		xlogger.Int("train", len(seg.Train)),
		xlogger.Int("test", len(seg.Test)),
	)

	s := search.NewHalvingGridSearch(search.Config{
		Features: fc,
		Grid:     uc.cfg.Grid,
		Folds:    p.CVFolds,
		Factor:   p.Factor,
		Seed:     p.Seed,
	}, search.WithLogger(log), search.WithWorkers(uc.cfg.Workers))
	res, err := s.Fit(ctx, seg.Train)
	if err != nil {
		return nil, err
	}

	ev, err := evaluate.Evaluate(res.Best, seg.Train, seg.Test)
	if err != nil {
		return nil, err
	}

	return &models.ForecastReport{
		RunID:          uc.newID(),
		SeriesCode:     code,
		Target:         uc.cfg.Target,
		Params:         p,
		BestParams:     res.BestParams,
		BestCVScore:    res.BestScore,
		FeatureContext: models.FeatureContextTrainHistory,
		Rounds:         res.Rounds,
		WindowStart:    window[0].Date,
		WindowEnd:      window[len(window)-1].Date,
		TrainSize:      len(seg.Train),
		TestSize:       len(seg.Test),
		Evaluation:     *ev,
		CreatedAt:      uc.now().UTC(),
	}, nil
}

func (uc *ForecastUseCase) cached(ctx context.Context, p models.ForecastParams) (*models.ForecastReport, bool) {
	if uc.cache == nil {
		return nil, false
	}
	r, err := cache.GetJSON[models.ForecastReport](ctx, uc.cache, uc.reportKey(p))
	hit := err == nil
	if uc.metrics != nil {
		uc.metrics.RecordCache(hit)
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		uc.logger.Warn("report cache read failed", xlogger.Error(err))
	}
	if !hit {
		return nil, false
	}
	return &r, true
}

// InvalidateReports drops every cached report.
func (uc *ForecastUseCase) InvalidateReports(ctx context.Context) error {
	if uc.cache == nil {
		return nil
	}
	return uc.cache.DeleteByPrefix(ctx, "report:")
}

// reportKey identifies a report by series, parameters and search grid.
func (uc *ForecastUseCase) reportKey(p models.ForecastParams) string {
	grid := fmt.Sprintf("%v|%v|%v|%v|%v", uc.cfg.Grid.NEstimators, uc.cfg.Grid.MaxDepth,
		uc.cfg.Grid.MinSamplesSplit, uc.cfg.Grid.MaxFeatures, uc.cfg.Grid.Bootstrap)
	return cache.Key("report", uc.cfg.SeriesCode,
		p.LookbackYears, p.Lags, p.Window, p.TrainFraction, p.CVFolds, p.Factor, p.Seed,
		cache.Digest(grid))
}

// SeriesCode returns the configured series code.
func (uc *ForecastUseCase) SeriesCode() string { return uc.cfg.SeriesCode }
