package api

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	models "PriceCast/internal/domain/models"
	"PriceCast/internal/service/metrics"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/usecase"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// Forecaster is the use case behind the forecast endpoints.
type Forecaster interface {
	Latest(ctx context.Context, p models.ForecastParams) (*models.ForecastReport, error)
	Run(ctx context.Context, p models.ForecastParams) (*models.ForecastReport, error)
}

var _ Forecaster = (*usecase.ForecastUseCase)(nil)

// ForecastEchoHandler serves forecast reports to the dashboard.
type ForecastEchoHandler struct {
	logger  *xlogger.Logger
	uc      Forecaster
	limiter *ratelimit.Limiter
}

func NewForecastEchoHandler(logger *xlogger.Logger, uc Forecaster, limiter *ratelimit.Limiter) *ForecastEchoHandler {
	metrics.Register()
	return &ForecastEchoHandler{logger: logger, uc: uc, limiter: limiter}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/forecast")
	g.GET("", h.Report)
	g.GET("/predictions", h.Predictions)
	g.GET("/importances", h.Importances)
	g.GET("/metrics", h.Accuracy)
	g.POST("/refresh", h.Refresh)
}

func (h *ForecastEchoHandler) Report(c echo.Context) error {
	defer observe("report", time.Now())
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	report, err := h.load(c, "report", *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, report)
}

func (h *ForecastEchoHandler) Predictions(c echo.Context) error {
	defer observe("predictions", time.Now())
	req := &models.PredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	report, err := h.load(c, "predictions", req.ForecastRequest)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	from, hasFrom := util.ParseDate(req.From)
	to, hasTo := util.ParseDate(req.To)
	rows := make([]models.Prediction, 0, len(report.Evaluation.Predictions))
	for _, p := range report.Evaluation.Predictions {
		if hasFrom && p.Date.Before(from) {
			continue
		}
		if hasTo && p.Date.After(to) {
			continue
		}
		rows = append(rows, p)
	}
	total := int64(len(rows))
	if len(rows) > req.Limit {
		rows = rows[len(rows)-req.Limit:]
	}
	return xhttp.ListResponse(c, rows, total)
}

func (h *ForecastEchoHandler) Importances(c echo.Context) error {
	defer observe("importances", time.Now())
	req := &models.ImportancesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	report, err := h.load(c, "importances", req.ForecastRequest)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	ranking := report.Evaluation.Importances
	total := int64(len(ranking))
	if len(ranking) > req.Top {
		ranking = ranking[:req.Top]
	}
	return xhttp.ListResponse(c, ranking, total)
}

func (h *ForecastEchoHandler) Accuracy(c echo.Context) error {
	defer observe("metrics", time.Now())
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := h.load(c, "metrics", *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, models.AccuracyResponse{
		RunID:       r.RunID,
		MAE:         r.Evaluation.MAE,
		MAPE:        r.Evaluation.MAPE,
		MAPEPercent: r.Evaluation.MAPE * 100,
		R2:          r.Evaluation.R2,
		BestParams:  r.BestParams,
		BestCVScore: r.BestCVScore,
		TrainSize:   r.TrainSize,
		TestSize:    r.TestSize,
	})
}

func (h *ForecastEchoHandler) Refresh(c echo.Context) error {
	defer observe("refresh", time.Now())
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		metrics.RefreshRejected.Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("refresh rate limit exceeded"))
	}
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	req.Refresh = true
	report, err := h.load(c, "refresh", *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *ForecastEchoHandler) load(c echo.Context, endpoint string, req models.ForecastRequest) (*models.ForecastReport, error) {
	ctx := c.Request().Context()
	var (
		report *models.ForecastReport
		err    error
	)
	if req.Refresh {
		report, err = h.uc.Run(ctx, req.Params())
	} else {
		report, err = h.uc.Latest(ctx, req.Params())
	}
	if err != nil {
		appErr := toAppError(err)
		metrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()
		if appErr.Status >= 500 {
			h.logger.Error("forecast usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		} else {
			h.logger.Warn("forecast request rejected", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		}
		return nil, appErr
	}
	return report, nil
}

// toAppError maps forecast failures onto HTTP errors: bad input or unusable
// data is the caller's problem, everything else is ours.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		return xhttp.ConflictError("a forecast run with these parameters is in progress").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError("forecast run timed out").WithError(err)
	}
	switch models.KindOf(err) {
	case models.ErrKindConfig:
		return xhttp.BadRequestError(err.Error()).WithParam("kind", string(models.ErrKindConfig)).WithError(err)
	case models.ErrKindData:
		return xhttp.BadRequestError(err.Error()).WithParam("kind", string(models.ErrKindData)).WithError(err)
	case models.ErrKindFit:
		return xhttp.InternalError("model fitting failed").WithParam("kind", string(models.ErrKindFit)).WithError(err)
	default:
		return xhttp.InternalError("forecast failed").WithError(err)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
