package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "PriceCast/internal/domain/models"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/usecase"
	xlogger "PriceCast/pkg/logger"
)

type fakeForecaster struct {
	report    *models.ForecastReport
	err       error
	latest    int
	runs      int
	lastParam models.ForecastParams
}

func (f *fakeForecaster) Latest(_ context.Context, p models.ForecastParams) (*models.ForecastReport, error) {
	f.latest++
	f.lastParam = p
	return f.report, f.err
}

func (f *fakeForecaster) Run(_ context.Context, p models.ForecastParams) (*models.ForecastReport, error) {
	f.runs++
	f.lastParam = p
	return f.report, f.err
}

func sampleReport() *models.ForecastReport {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	preds := make([]models.Prediction, 5)
	for i := range preds {
		preds[i] = models.Prediction{Date: start.AddDate(0, 0, i), Actual: 80 + float64(i), Predicted: 79 + float64(i)}
	}
	return &models.ForecastReport{
		RunID:      "run-1",
		SeriesCode: "EIA366_PBRENT366",
		Target:     "Price",
		TrainSize:  90,
		TestSize:   5,
		Evaluation: models.EvaluationResult{
			MAE:  1,
			MAPE: 0.0125,
			R2:   0.5,
			Importances: []models.FeatureImportance{
				{Feature: "lag_1", Importance: 0.7},
				{Feature: "rolling_mean_7", Importance: 0.2},
				{Feature: "diff", Importance: 0.1},
			},
			Predictions: preds,
		},
	}
}

func newTestServer(f *fakeForecaster, lim *ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	NewForecastEchoHandler(xlogger.Nop(), f, lim).RegisterRoutes(e)
	return e
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestReportUsesCacheUnlessRefresh(t *testing.T) {
	f := &fakeForecaster{report: sampleReport()}
	e := newTestServer(f, nil)

	rec, env := do(t, e, http.MethodGet, "/api/forecast?lags=5&train_fraction=0.8")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, 1, f.latest)
	assert.Equal(t, 0, f.runs)
	assert.Equal(t, 5, f.lastParam.Lags)
	assert.InDelta(t, 0.8, f.lastParam.TrainFraction, 1e-12)

	var report models.ForecastReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "run-1", report.RunID)

	rec, _ = do(t, e, http.MethodGet, "/api/forecast?refresh=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.runs)
}

func TestReportRejectsInvalidQuery(t *testing.T) {
	f := &fakeForecaster{report: sampleReport()}
	e := newTestServer(f, nil)

	rec, _ := do(t, e, http.MethodGet, "/api/forecast?train_fraction=1.5")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.latest)
}

func TestPredictionsFilterAndLimit(t *testing.T) {
	f := &fakeForecaster{report: sampleReport()}
	e := newTestServer(f, nil)

	rec, env := do(t, e, http.MethodGet, "/api/forecast/predictions?from=2024-01-02&to=2024-01-05&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Rows  []models.Prediction `json:"rows"`
		Total int64               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(4), list.Total)
	require.Len(t, list.Rows, 2)
	assert.Equal(t, 4, list.Rows[0].Date.Day())
	assert.Equal(t, 5, list.Rows[1].Date.Day())
}

func TestImportancesTop(t *testing.T) {
	f := &fakeForecaster{report: sampleReport()}
	e := newTestServer(f, nil)

	rec, env := do(t, e, http.MethodGet, "/api/forecast/importances?top=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Rows  []models.FeatureImportance `json:"rows"`
		Total int64                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(3), list.Total)
	require.Len(t, list.Rows, 2)
	assert.Equal(t, "lag_1", list.Rows[0].Feature)
}

func TestAccuracyReportsPercent(t *testing.T) {
	f := &fakeForecaster{report: sampleReport()}
	e := newTestServer(f, nil)

	rec, env := do(t, e, http.MethodGet, "/api/forecast/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var acc models.AccuracyResponse
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	assert.InDelta(t, 1.25, acc.MAPEPercent, 1e-9)
	assert.InDelta(t, 0.5, acc.R2, 1e-12)
	assert.Equal(t, 90, acc.TrainSize)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"data", models.NewForecastError(models.ErrKindData, errors.New("series too short")), http.StatusBadRequest},
		{"config", models.NewForecastError(models.ErrKindConfig, errors.New("bad window")), http.StatusBadRequest},
		{"fit", models.NewForecastError(models.ErrKindFit, errors.New("no viable candidate")), http.StatusInternalServerError},
		{"busy", usecase.ErrRunInProgress, http.StatusConflict},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestServer(&fakeForecaster{err: tc.err}, nil)
			rec, env := do(t, e, http.MethodGet, "/api/forecast")
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.code, env.Status)
		})
	}
}

func TestRefreshIsRateLimited(t *testing.T) {
	f := &fakeForecaster{report: sampleReport()}
	e := newTestServer(f, ratelimit.New(0, 1))

	rec, _ := do(t, e, http.MethodPost, "/api/forecast/refresh?lags=4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.runs)
	assert.Equal(t, 4, f.lastParam.Lags)

	rec, _ = do(t, e, http.MethodPost, "/api/forecast/refresh")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, f.runs)
}
