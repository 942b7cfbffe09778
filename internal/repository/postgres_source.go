package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"Shootdown/internal/domain/models"
	domrepo "Shootdown/internal/domain/repository"
	applogger "Shootdown/pkg/logger"
	"Shootdown/pkg/util"
)

// pgQuerier is satisfied by *pgxpool.Pool and pgxmock pools.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const (
	pgResidualsQuery = `
        WITH latest AS (
            SELECT date::text AS date, time::int AS time, start::float8 AS start,
                   net::float8 AS net, bullbear::text AS bullbear,
                   ROW_NUMBER() OVER (PARTITION BY time, start, bullbear ORDER BY id DESC) AS rn
            FROM cbbc
            WHERE date = $1 AND time = ANY($2)
        )
        SELECT date, time, start, net, bullbear
        FROM latest
        WHERE rn = 1
        ORDER BY time, start`

	pgOHLCQuery = `
        SELECT content::text
        FROM ohlc
        WHERE date = $1
        ORDER BY id DESC
        LIMIT 1`

	pgRecentDatesQuery = `
        SELECT DISTINCT date::text
        FROM ohlc
        ORDER BY 1 DESC
        LIMIT $1`
)

// PostgresSource reads exposure rows from table cbbc and reference
// prices from table ohlc.
type PostgresSource struct {
	db pgQuerier
	l  *applogger.Logger
}

func NewPostgresSource(db pgQuerier) *PostgresSource {
	return &PostgresSource{db: db}
}

// SetLogger injects a structured logger.
func (s *PostgresSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *PostgresSource) Residuals(ctx context.Context, date string) ([]models.ExposureRecord, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, pgResidualsQuery, date, domrepo.Snapshots())
	if err != nil {
		s.logError("postgres residuals query error", date, err)
		return nil, fmt.Errorf("query residuals: %w", err)
	}
	defer rows.Close()

	out := make([]models.ExposureRecord, 0, 256)
	for rows.Next() {
		var r models.ExposureRecord
		var dir string
		if err := rows.Scan(&r.Date, &r.Time, &r.Start, &r.Net, &dir); err != nil {
			s.logError("postgres residuals scan error", date, err)
			return nil, fmt.Errorf("scan residual: %w", err)
		}
		r.Direction = models.Direction(dir)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.logError("postgres residuals rows error", date, err)
		return nil, fmt.Errorf("rows: %w", err)
	}

	if s.l != nil {
		s.l.Debug("postgres residuals ok",
			applogger.String("date", date),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *PostgresSource) OHLC(ctx context.Context, date string) (models.OHLC, error) {
	var content string
	err := s.db.QueryRow(ctx, pgOHLCQuery, date).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OHLC{}, fmt.Errorf("ohlc for %s: %w", date, domrepo.ErrNotFound)
	}
	if err != nil {
		s.logError("postgres ohlc query error", date, err)
		return models.OHLC{}, fmt.Errorf("query ohlc: %w", err)
	}
	return ParseOHLCContent(content)
}

func (s *PostgresSource) RecentDates(ctx context.Context, limit int) ([]int, error) {
	rows, err := s.db.Query(ctx, pgRecentDatesQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()

	out := make([]int, 0, limit)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		if v, ok := util.TradingDateValue(d); ok {
			out = append(out, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *PostgresSource) Health(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool when the source owns one.
func (s *PostgresSource) Close() error {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

func (s *PostgresSource) logError(msg, date string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("date", date), applogger.Error(err))
	}
}
