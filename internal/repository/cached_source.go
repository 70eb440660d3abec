package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
)

// CachedSource reads series from a local mirror and refreshes the mirror
// from upstream when it is missing or stale.
type CachedSource struct {
	upstream domrepo.SeriesSource
	mirror   domrepo.SeriesStore
	maxStale time.Duration
	now      func() time.Time
	l        *applogger.Logger
}

var _ domrepo.SeriesSource = (*CachedSource)(nil)

// NewCachedSource creates a mirror-first source. A mirror whose last
// observation is older than maxStale is refreshed; maxStale <= 0 always
// refreshes.
func NewCachedSource(upstream domrepo.SeriesSource, mirror domrepo.SeriesStore, maxStale time.Duration, l *applogger.Logger) *CachedSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedSource{upstream: upstream, mirror: mirror, maxStale: maxStale, now: time.Now, l: l}
}

func (c *CachedSource) GetSeries(ctx context.Context, code string) (models.Series, error) {
	cached, mErr := c.mirror.GetSeries(ctx, code)
	if mErr == nil && c.fresh(cached) {
		return cached, nil
	}
	if mErr != nil {
		c.l.Debug("mirror miss", applogger.String("code", code), applogger.Error(mErr))
	}

	fresh, err := c.Sync(ctx, code)
	if err == nil {
		return fresh, nil
	}
	if mErr == nil {
		c.l.Warn("upstream failed, serving stale mirror",
			applogger.String("code", code),
			applogger.Int("rows", cached.Len()),
			applogger.Error(err),
		)
		return cached, nil
	}
	return models.Series{}, err
}

// Sync downloads code from upstream and writes it to the mirror. A failed
// mirror write is logged and does not fail the download.
func (c *CachedSource) Sync(ctx context.Context, code string) (models.Series, error) {
	s, err := c.upstream.GetSeries(ctx, code)
	if err != nil {
		return models.Series{}, fmt.Errorf("sync %s: %w", code, err)
	}
	if err := c.mirror.SaveSeries(ctx, s); err != nil {
		c.l.Error("mirror write failed", applogger.String("code", code), applogger.Error(err))
	}
	return s, nil
}

func (c *CachedSource) fresh(s models.Series) bool {
	if c.maxStale <= 0 || len(s.Points) == 0 {
		return false
	}
	last := s.Points[len(s.Points)-1].Date
	return c.now().Sub(last) <= c.maxStale
}

// MemorySeriesStore is an in-process SeriesStore.
type MemorySeriesStore struct {
	mu     sync.RWMutex
	series map[string]models.Series
}

var _ domrepo.SeriesStore = (*MemorySeriesStore)(nil)

func NewMemorySeriesStore() *MemorySeriesStore {
	return &MemorySeriesStore{series: make(map[string]models.Series)}
}

func (m *MemorySeriesStore) Init(context.Context) error   { return nil }
func (m *MemorySeriesStore) Health(context.Context) error { return nil }

func (m *MemorySeriesStore) GetSeries(_ context.Context, code string) (models.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.series[code]
	if !ok {
		return models.Series{}, fmt.Errorf("memory %s: %w", code, domrepo.ErrSeriesNotFound)
	}
	s.Points = append([]models.PricePoint(nil), s.Points...)
	return s, nil
}

func (m *MemorySeriesStore) SaveSeries(_ context.Context, s models.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Points = append([]models.PricePoint(nil), s.Points...)
	m.series[s.Code] = s
	return nil
}
