package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	accuracy      *prometheus.GaugeVec
	bestCVScore   *prometheus.GaugeVec
	candidates    *prometheus.CounterVec
	roundsTotal   *prometheus.GaugeVec
	sourceLatency *prometheus.HistogramVec
	sourceErrors  *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
}

var _ domrepo.Metrics = (*Recorder)(nil)

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_forecast_runs_total",
				Help: "Total number of forecast runs by result",
			},
			[]string{"series", "result"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_forecast_run_duration_seconds",
				Help:    "Duration of a full forecast run (load, search, evaluate)",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"series"},
		),
		accuracy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_forecast_accuracy",
				Help: "Test segment accuracy of the latest run",
			},
			[]string{"series", "metric"},
		),
		bestCVScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_search_best_cv_score",
				Help: "Best mean negative MSE over CV folds in the last halving round",
			},
			[]string{"series"},
		),
		candidates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_search_candidate_evaluations_total",
				Help: "Candidate evaluations by result",
			},
			[]string{"series", "result"},
		),
		roundsTotal: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_search_rounds",
				Help: "Number of halving rounds in the latest run",
			},
			[]string{"series"},
		),
		sourceLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_source_fetch_duration_seconds",
				Help:    "Duration of series downloads",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		sourceErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_source_errors_total",
				Help: "Failed series downloads",
			},
			[]string{"source"},
		),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_report_cache_total",
				Help: "Report cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordRun records one forecast run.
func (r *Recorder) RecordRun(series string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = string(models.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	r.runsTotal.WithLabelValues(series, result).Inc()
	r.runDuration.WithLabelValues(series).Observe(d.Seconds())
}

// RecordEvaluation publishes the latest test-segment metrics.
func (r *Recorder) RecordEvaluation(series string, ev models.EvaluationResult) {
	r.accuracy.WithLabelValues(series, "mae").Set(ev.MAE)
	r.accuracy.WithLabelValues(series, "mape").Set(ev.MAPE)
	r.accuracy.WithLabelValues(series, "r2").Set(ev.R2)
}

// RecordRounds records halving progress.
func (r *Recorder) RecordRounds(series string, rounds []models.HalvingRound) {
	r.roundsTotal.WithLabelValues(series).Set(float64(len(rounds)))
	for _, rd := range rounds {
		r.candidates.WithLabelValues(series, "ok").Add(float64(rd.Candidates - rd.Failed))
		r.candidates.WithLabelValues(series, "failed").Add(float64(rd.Failed))
	}
	if len(rounds) > 0 {
		r.bestCVScore.WithLabelValues(series).Set(rounds[len(rounds)-1].BestScore)
	}
}

// RecordSourceFetch records a download from a series source.
func (r *Recorder) RecordSourceFetch(source string, d time.Duration, err error) {
	r.sourceLatency.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		r.sourceErrors.WithLabelValues(source).Inc()
	}
}

// RecordCache records a report cache lookup.
func (r *Recorder) RecordCache(hit bool) {
	if hit {
		r.cacheTotal.WithLabelValues("hit").Inc()
		return
	}
	r.cacheTotal.WithLabelValues("miss").Inc()
}
