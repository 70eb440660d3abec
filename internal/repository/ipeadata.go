package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkghttp "PriceCast/pkg/http"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

const DefaultIpeadataURL = "http://www.ipeadata.gov.br/api/odata4"

// IpeadataSource downloads daily series from the Ipeadata OData API.
type IpeadataSource struct {
	client     *pkghttp.Client
	baseURL    string
	target     string
	maxRetries uint64
	maxElapsed time.Duration
	cb         *gobreaker.CircuitBreaker
	l          *applogger.Logger
	m          domrepo.Metrics
}

var _ domrepo.SeriesSource = (*IpeadataSource)(nil)

// IpeadataOption configures IpeadataSource.
type IpeadataOption func(*IpeadataSource)

// WithIpeadataURL overrides the API root.
func WithIpeadataURL(u string) IpeadataOption {
	return func(s *IpeadataSource) { s.baseURL = u }
}

// WithTargetName sets the name reported for the value column.
func WithTargetName(name string) IpeadataOption {
	return func(s *IpeadataSource) { s.target = name }
}

// WithRetry bounds the retry loop for one download.
func WithRetry(maxRetries uint64, maxElapsed time.Duration) IpeadataOption {
	return func(s *IpeadataSource) {
		s.maxRetries = maxRetries
		s.maxElapsed = maxElapsed
	}
}

// WithIpeadataLogger injects a structured logger.
func WithIpeadataLogger(l *applogger.Logger) IpeadataOption {
	return func(s *IpeadataSource) { s.l = l }
}

// WithIpeadataMetrics records download latency and failures.
func WithIpeadataMetrics(m domrepo.Metrics) IpeadataOption {
	return func(s *IpeadataSource) { s.m = m }
}

// NewIpeadataSource creates a source. After five consecutive failed
// downloads the breaker rejects calls for a minute.
func NewIpeadataSource(client *pkghttp.Client, opts ...IpeadataOption) *IpeadataSource {
	s := &IpeadataSource{
		client:     client,
		baseURL:    DefaultIpeadataURL,
		target:     "Price",
		maxRetries: 4,
		maxElapsed: time.Minute,
		l:          applogger.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "ipeadata",
		Interval: 0,
		Timeout:  time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	})
	return s
}

type ipeaValue struct {
	Code  string   `json:"SERCODIGO"`
	Date  string   `json:"VALDATA"`
	Value *float64 `json:"VALVALOR"`
}

type ipeaResponse struct {
	Value []ipeaValue `json:"value"`
}

// GetSeries downloads the full history of code. Null values are dropped.
func (s *IpeadataSource) GetSeries(ctx context.Context, code string) (models.Series, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/ValoresSerie(SERCODIGO='%s')", s.baseURL, url.PathEscape(code))

	var body ipeaResponse
	attempt := 0
	op := func() error {
		attempt++
		var resp ipeaResponse
		_, err := s.cb.Execute(func() (interface{}, error) {
			return nil, s.client.GetJSON(ctx, endpoint, nil, &resp)
		})
		if err != nil {
			if !retryable(ctx, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = resp
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = s.maxElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, s.maxRetries), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		s.l.Warn("ipeadata request failed, retrying",
			applogger.String("code", code),
			applogger.Int("attempt", attempt),
			applogger.Duration("wait_ms", wait),
			applogger.Error(err),
		)
	})
	if s.m != nil {
		s.m.RecordSourceFetch("ipeadata", time.Since(start), err)
	}
	if err != nil {
		s.l.Error("ipeadata get_series failed",
			applogger.String("code", code),
			applogger.Int("attempts", attempt),
			applogger.Error(err),
		)
		return models.Series{}, fmt.Errorf("ipeadata %s: %w", code, err)
	}

	points := make([]models.PricePoint, 0, len(body.Value))
	for _, v := range body.Value {
		if v.Value == nil {
			continue
		}
		d, ok := util.ParseDate(v.Date)
		if !ok {
			return models.Series{}, fmt.Errorf("ipeadata %s: parse date %q", code, v.Date)
		}
		points = append(points, models.PricePoint{Date: d, Price: *v.Value})
	}
	if len(points) == 0 {
		return models.Series{}, fmt.Errorf("ipeadata %s: %w", code, domrepo.ErrSeriesNotFound)
	}

	s.l.Info("ipeadata get_series ok",
		applogger.String("code", code),
		applogger.Int("rows", len(points)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return models.Series{Code: code, Target: s.target, Points: points}, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
