package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PriceCast/internal/domain/models"
	pkgkafka "PriceCast/pkg/kafka"
	xlogger "PriceCast/pkg/logger"
)

// Command actions accepted on the command topic.
const (
	ActionRetrain    = "retrain"
	ActionSync       = "sync"
	ActionInvalidate = "invalidate"
)

// Command asks the service to do work out of band, e.g. a nightly scheduler
// asking for a sync followed by a retrain.
type Command struct {
	Action string                `json:"action"`
	Params models.ForecastParams `json:"params"`
}

// SeriesSyncer refreshes the local mirror of a series from upstream.
type SeriesSyncer interface {
	Sync(ctx context.Context, code string) (models.Series, error)
}

// CommandHandler executes commands read from Kafka.
type CommandHandler struct {
	topic  string
	uc     *ForecastUseCase
	syncer SeriesSyncer
	logger *xlogger.Logger
}

var _ pkgkafka.MessageHandler = (*CommandHandler)(nil)

func NewCommandHandler(topic string, uc *ForecastUseCase, syncer SeriesSyncer, logger *xlogger.Logger) *CommandHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &CommandHandler{topic: topic, uc: uc, syncer: syncer, logger: logger}
}

func (h *CommandHandler) Topic() string { return h.topic }

// Handle runs one command. Malformed commands and data or config errors are
// marked with pkgkafka.ErrNoRetry.
func (h *CommandHandler) Handle(ctx context.Context, b []byte) error {
	var cmd Command
	if err := json.Unmarshal(b, &cmd); err != nil {
		return fmt.Errorf("decode command: %w: %w", pkgkafka.ErrNoRetry, err)
	}
	log := h.logger.With(xlogger.String("action", cmd.Action), xlogger.String("trace_id", pkgkafka.TraceID(ctx)))

	switch cmd.Action {
	case ActionSync:
		return h.sync(ctx, log)
	case ActionRetrain:
		return h.retrain(ctx, cmd.Params, log)
	case ActionInvalidate:
		if err := h.uc.InvalidateReports(ctx); err != nil {
			return fmt.Errorf("invalidate reports: %w", err)
		}
		log.Info("cached reports invalidated")
		return nil
	default:
		return fmt.Errorf("unknown action %q: %w", cmd.Action, pkgkafka.ErrNoRetry)
	}
}

func (h *CommandHandler) sync(ctx context.Context, log *xlogger.Logger) error {
	if h.syncer == nil {
		return nil
	}
	s, err := h.syncer.Sync(ctx, h.uc.SeriesCode())
	if err != nil {
		return fmt.Errorf("sync series: %w", err)
	}
	log.Info("series synced", xlogger.Int("points", len(s.Points)))
	if err := h.uc.InvalidateReports(ctx); err != nil {
		log.Warn("invalidate reports after sync failed", xlogger.Error(err))
	}
	return nil
}

func (h *CommandHandler) retrain(ctx context.Context, p models.ForecastParams, log *xlogger.Logger) error {
	r, err := h.uc.Run(ctx, p)
	switch {
	case errors.Is(err, ErrRunInProgress):
		log.Info("retrain skipped, run in progress")
		return nil
	case models.KindOf(err) == models.ErrKindData || models.KindOf(err) == models.ErrKindConfig:
		return fmt.Errorf("retrain: %w: %w", pkgkafka.ErrNoRetry, err)
	case err != nil:
		return fmt.Errorf("retrain: %w", err)
	}
	log.Info("retrain done", xlogger.String("run_id", r.RunID))
	return nil
}
