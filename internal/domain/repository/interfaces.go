package repository

import (
	"context"
	"errors"
	"time"

	"PriceCast/internal/domain/models"
)

// ErrSeriesNotFound is returned by a SeriesSource that has no data for a code.
var ErrSeriesNotFound = errors.New("series not found")

// SeriesSource provides a date-indexed price series by code.
type SeriesSource interface {
	GetSeries(ctx context.Context, code string) (models.Series, error)
}

// SeriesStore is a SeriesSource that can also persist series.
type SeriesStore interface {
	SeriesSource
	Init(ctx context.Context) error // ensure tables
	SaveSeries(ctx context.Context, s models.Series) error
	Health(ctx context.Context) error
}

// ReportPublisher ships finished forecast reports downstream.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r *models.ForecastReport) error
	Close() error
}

type Metrics interface {
	RecordRun(series string, d time.Duration, err error)
	RecordEvaluation(series string, ev models.EvaluationResult)
	RecordRounds(series string, rounds []models.HalvingRound)
	RecordSourceFetch(source string, d time.Duration, err error)
	RecordCache(hit bool)
}
