package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkghttp "PriceCast/pkg/http"
)

const ipeaBody = `{
  "@odata.context": "http://www.ipeadata.gov.br/api/odata4/$metadata#Valores",
  "value": [
    {"SERCODIGO": "EIA366_PBRENT366", "VALDATA": "1987-05-20T00:00:00-03:00", "VALVALOR": 18.63, "NIVNOME": "", "TERCODIGO": ""},
    {"SERCODIGO": "EIA366_PBRENT366", "VALDATA": "1987-05-21T00:00:00-03:00", "VALVALOR": null, "NIVNOME": "", "TERCODIGO": ""},
    {"SERCODIGO": "EIA366_PBRENT366", "VALDATA": "1987-05-22T00:00:00-03:00", "VALVALOR": 18.55, "NIVNOME": "", "TERCODIGO": ""}
  ]
}`

func TestIpeadataSource_GetSeries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/ValoresSerie(SERCODIGO='EIA366_PBRENT366')", r.URL.Path)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ipeaBody))
	}))
	defer srv.Close()

	src := NewIpeadataSource(pkghttp.NewClient(), WithIpeadataURL(srv.URL), WithRetry(3, 5*time.Second))
	s, err := src.GetSeries(context.Background(), "EIA366_PBRENT366")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "503 is retried")
	assert.Equal(t, "Price", s.Target)
	require.Len(t, s.Points, 2, "null values are dropped")
	assert.Equal(t, time.Date(1987, 5, 20, 0, 0, 0, 0, time.UTC), s.Points[0].Date)
	assert.Equal(t, 18.55, s.Points[1].Price)
}

func TestIpeadataSource_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewIpeadataSource(pkghttp.NewClient(), WithIpeadataURL(srv.URL), WithRetry(3, 5*time.Second))
	_, err := src.GetSeries(context.Background(), "NOPE")
	require.Error(t, err)

	var se *pkghttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestIpeadataSource_EmptyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"value": []}`))
	}))
	defer srv.Close()

	src := NewIpeadataSource(pkghttp.NewClient(), WithIpeadataURL(srv.URL))
	_, err := src.GetSeries(context.Background(), "X")
	assert.ErrorIs(t, err, domrepo.ErrSeriesNotFound)
}

type fakeSource struct {
	s     models.Series
	err   error
	calls int
}

func (f *fakeSource) GetSeries(context.Context, string) (models.Series, error) {
	f.calls++
	return f.s, f.err
}

func series(code string, last time.Time, n int) models.Series {
	pts := make([]models.PricePoint, n)
	for i := range pts {
		pts[i] = models.PricePoint{Date: last.AddDate(0, 0, i-n+1), Price: float64(i)}
	}
	return models.Series{Code: code, Target: "Price", Points: pts}
}

func TestCachedSource_MissFetchesAndMirrors(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	up := &fakeSource{s: series("B", now.Truncate(24*time.Hour), 5)}
	mirror := NewMemorySeriesStore()
	c := NewCachedSource(up, mirror, 72*time.Hour, nil)
	c.now = func() time.Time { return now }

	s, err := c.GetSeries(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	_, err = c.GetSeries(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls, "second read is served by the mirror")
}

func TestCachedSource_StaleMirrorRefreshes(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	mirror := NewMemorySeriesStore()
	require.NoError(t, mirror.SaveSeries(context.Background(), series("B", now.AddDate(0, 0, -30), 3)))
	up := &fakeSource{s: series("B", now, 4)}
	c := NewCachedSource(up, mirror, 72*time.Hour, nil)
	c.now = func() time.Time { return now }

	s, err := c.GetSeries(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 1, up.calls)
}

func TestCachedSource_UpstreamDownServesStale(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	mirror := NewMemorySeriesStore()
	require.NoError(t, mirror.SaveSeries(context.Background(), series("B", now.AddDate(0, 0, -30), 3)))
	c := NewCachedSource(&fakeSource{err: errors.New("down")}, mirror, time.Hour, nil)
	c.now = func() time.Time { return now }

	s, err := c.GetSeries(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	_, err = c.GetSeries(context.Background(), "OTHER")
	assert.Error(t, err)
}

type fakeProducer struct {
	topic string
	key   []byte
	value interface{}
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.key, f.value = topic, key, value
	return nil
}
func (f *fakeProducer) Close() error { return nil }

func TestKafkaReportPublisher(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaReportPublisher(fp, "pricecast.reports")
	err := p.PublishReport(context.Background(), &models.ForecastReport{
		RunID:         "r1",
		SeriesCode:    "EIA366_PBRENT366",
		Evaluation:    models.EvaluationResult{MAE: 1.5, Predictions: []models.Prediction{{Actual: 1}}},
		TrainDuration: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "pricecast.reports", fp.topic)
	assert.Equal(t, []byte("EIA366_PBRENT366"), fp.key)

	raw, err := json.Marshal(fp.value)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "r1", m["run_id"])
	assert.Equal(t, 1.5, m["mae"])
	assert.EqualValues(t, 2000, m["train_ms"])
	assert.NotContains(t, m, "predictions")
}
