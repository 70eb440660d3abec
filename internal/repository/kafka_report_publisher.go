package repository

import (
	"context"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
)

// MessageProducer is the subset of the Kafka producer the publisher uses.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaReportPublisher implements ReportPublisher for Kafka. Each report is
// one message keyed by series code.
type KafkaReportPublisher struct {
	producer MessageProducer
	topic    string
}

var _ domrepo.ReportPublisher = (*KafkaReportPublisher)(nil)

// NewKafkaReportPublisher creates Kafka publisher.
func NewKafkaReportPublisher(producer MessageProducer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic}
}

// reportEvent is the wire shape of a published report. Predictions are left
// out to keep messages small.
type reportEvent struct {
	RunID       string                     `json:"run_id"`
	SeriesCode  string                     `json:"series_code"`
	BestParams  models.HyperParams         `json:"best_params"`
	BestCVScore float64                    `json:"best_cv_score"`
	MAE         float64                    `json:"mae"`
	MAPE        float64                    `json:"mape"`
	R2          float64                    `json:"r2"`
	Importances []models.FeatureImportance `json:"importances"`
	WindowStart time.Time                  `json:"window_start"`
	WindowEnd   time.Time                  `json:"window_end"`
	TrainSize   int                        `json:"train_size"`
	TestSize    int                        `json:"test_size"`
	TrainMillis int64                      `json:"train_ms"`
	CreatedAt   time.Time                  `json:"created_at"`
}

func (p *KafkaReportPublisher) PublishReport(ctx context.Context, r *models.ForecastReport) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.SeriesCode), reportEvent{
		RunID:       r.RunID,
		SeriesCode:  r.SeriesCode,
		BestParams:  r.BestParams,
		BestCVScore: r.BestCVScore,
		MAE:         r.Evaluation.MAE,
		MAPE:        r.Evaluation.MAPE,
		R2:          r.Evaluation.R2,
		Importances: r.Evaluation.Importances,
		WindowStart: r.WindowStart,
		WindowEnd:   r.WindowEnd,
		TrainSize:   r.TrainSize,
		TestSize:    r.TestSize,
		TrainMillis: r.TrainDuration.Milliseconds(),
		CreatedAt:   r.CreatedAt,
	})
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopReportPublisher drops every report.
type NopReportPublisher struct{}

func (NopReportPublisher) PublishReport(context.Context, *models.ForecastReport) error { return nil }
func (NopReportPublisher) Close() error                                              { return nil }
