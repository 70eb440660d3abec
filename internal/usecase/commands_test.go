package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	pkgkafka "PriceCast/pkg/kafka"
)

type stubSyncer struct {
	calls int
	err   error
}

func (s *stubSyncer) Sync(context.Context, string) (models.Series, error) {
	s.calls++
	return models.Series{Points: make([]models.PricePoint, 3)}, s.err
}

func TestCommandHandler_Retrain(t *testing.T) {
	src := &stubSource{series: linearSeries(100)}
	uc, pub, _, mc := newTestUseCase(src)
	defer mc.Close()
	syncer := &stubSyncer{}
	h := NewCommandHandler("pricecast.commands", uc, syncer, nil)

	assert.Equal(t, "pricecast.commands", h.Topic())
	require.NoError(t, h.Handle(context.Background(), []byte(`{"action":"retrain","params":{"lags":3}}`)))
	assert.Zero(t, syncer.calls, "retrain trains on the current mirror")
	require.Len(t, pub.reports, 1)
}

func TestCommandHandler_SyncInvalidatesReports(t *testing.T) {
	src := &stubSource{series: linearSeries(100)}
	uc, _, _, mc := newTestUseCase(src)
	defer mc.Close()

	_, err := uc.Latest(context.Background(), models.ForecastParams{})
	require.NoError(t, err)

	h := NewCommandHandler("t", uc, &stubSyncer{}, nil)
	require.NoError(t, h.Handle(context.Background(), []byte(`{"action":"sync"}`)))

	_, err = uc.Latest(context.Background(), models.ForecastParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCommandHandler_NonRetryable(t *testing.T) {
	uc, _, _, mc := newTestUseCase(&stubSource{series: linearSeries(5)})
	defer mc.Close()
	h := NewCommandHandler("t", uc, nil, nil)

	for _, body := range []string{
		`not json`,
		`{"action":"explode"}`,
		`{"action":"retrain"}`,
	} {
		err := h.Handle(context.Background(), []byte(body))
		assert.ErrorIs(t, err, pkgkafka.ErrNoRetry, body)
	}
}

func TestCommandHandler_SyncFailureIsRetryable(t *testing.T) {
	uc, _, _, mc := newTestUseCase(&stubSource{series: linearSeries(100)})
	defer mc.Close()
	h := NewCommandHandler("t", uc, &stubSyncer{err: errors.New("ipeadata down")}, nil)

	err := h.Handle(context.Background(), []byte(`{"action":"sync"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, pkgkafka.ErrNoRetry)
}
