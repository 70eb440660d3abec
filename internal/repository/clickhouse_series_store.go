package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkgch "PriceCast/pkg/clickhouse"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// SeriesTable is the ClickHouse mirror of downloaded series.
const SeriesTable = "pricecast.series_daily"

// SeriesSchema creates the mirror table. ReplacingMergeTree keeps the latest
// row per (code, d) so re-syncing a series is idempotent.
var SeriesSchema = []string{
	`CREATE DATABASE IF NOT EXISTS pricecast`,
	`CREATE TABLE IF NOT EXISTS ` + SeriesTable + ` (
        code String,
        d Date,
        value Float64,
        target LowCardinality(String),
        synced_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(synced_at)
    ORDER BY (code, d)`,
}

// CHSeriesStore implements SeriesStore backed by ClickHouse.
type CHSeriesStore struct {
	db *sql.DB
	ch *pkgch.Client
	l  *applogger.Logger
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)

func NewCHSeriesStore(ch *pkgch.Client) *CHSeriesStore {
	return &CHSeriesStore{db: ch.DB(), ch: ch, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSeriesStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, SeriesSchema)
}

func (s *CHSeriesStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHSeriesStore) GetSeries(ctx context.Context, code string) (models.Series, error) {
	start := time.Now()
	const q = `
        SELECT d, argMax(value, synced_at) AS v, argMax(target, synced_at) AS t
        FROM ` + SeriesTable + `
        WHERE code = ?
        GROUP BY d
        ORDER BY d ASC
    `
	rows, err := s.db.QueryContext(ctx, q, code)
	if err != nil {
		s.l.Error("clickhouse get_series query error",
			applogger.String("code", code),
			applogger.Error(err),
		)
		return models.Series{}, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	out := models.Series{Code: code}
	for rows.Next() {
		var (
			p      models.PricePoint
			target string
		)
		if err := rows.Scan(&p.Date, &p.Price, &target); err != nil {
			s.l.Error("clickhouse get_series scan error",
				applogger.String("code", code),
				applogger.Error(err),
			)
			return models.Series{}, fmt.Errorf("scan point: %w", err)
		}
		p.Date = util.Day(p.Date)
		out.Target = target
		out.Points = append(out.Points, p)
	}
	if err := rows.Err(); err != nil {
		return models.Series{}, fmt.Errorf("rows: %w", err)
	}
	if len(out.Points) == 0 {
		return models.Series{}, fmt.Errorf("clickhouse %s: %w", code, domrepo.ErrSeriesNotFound)
	}
	s.l.Info("clickhouse get_series ok",
		applogger.String("code", code),
		applogger.Int("rows", len(out.Points)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// SaveSeries writes every point of series as one insert block.
func (s *CHSeriesStore) SaveSeries(ctx context.Context, series models.Series) error {
	if series.Code == "" {
		return errors.New("save series: empty code")
	}
	pts := series.Points
	err := s.ch.InsertBatch(ctx, "INSERT INTO "+SeriesTable+" (code, d, value, target)", len(pts),
		func(i int) []any {
			return []any{series.Code, pts[i].Date, pts[i].Price, series.Target}
		})
	if err != nil {
		s.l.Error("clickhouse save_series error",
			applogger.String("code", series.Code),
			applogger.Int("rows", len(pts)),
			applogger.Error(err),
		)
		return fmt.Errorf("save series: %w", err)
	}
	s.l.Info("clickhouse save_series ok",
		applogger.String("code", series.Code),
		applogger.Int("rows", len(pts)),
	)
	return nil
}
