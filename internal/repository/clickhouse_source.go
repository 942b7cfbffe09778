package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Shootdown/internal/domain/models"
	domrepo "Shootdown/internal/domain/repository"
	pkgch "Shootdown/pkg/clickhouse"
	applogger "Shootdown/pkg/logger"
	"Shootdown/pkg/util"
)

// CHSource reads exposure and price rows from ClickHouse. Duplicate
// exposure rows collapse to the highest id via argMax.
type CHSource struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHSource(ch *pkgch.Client) *CHSource {
	return newCHSource(ch.DB(), ch.Database())
}

func newCHSource(db *sql.DB, database string) *CHSource {
	return &CHSource{db: db, database: database}
}

// SetLogger injects a structured logger.
func (s *CHSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSource) table(name string) string {
	if s.database == "" {
		return name
	}
	return s.database + "." + name
}

func (s *CHSource) Residuals(ctx context.Context, date string) ([]models.ExposureRecord, error) {
	start := time.Now()
	const qtpl = `
        SELECT date, toInt32(time) AS t, start, argMax(net, id) AS net, bullbear
        FROM %s
        WHERE date = ? AND time IN (?, ?)
        GROUP BY date, time, start, bullbear
        ORDER BY t ASC, start ASC
    `
	q := fmt.Sprintf(qtpl, s.table("cbbc"))
	rows, err := s.db.QueryContext(ctx, q, date, domrepo.SnapshotOpen, domrepo.SnapshotClose)
	if err != nil {
		s.logError("clickhouse residuals query error", date, err)
		return nil, fmt.Errorf("query residuals: %w", err)
	}
	defer rows.Close()

	out := make([]models.ExposureRecord, 0, 256)
	for rows.Next() {
		var r models.ExposureRecord
		var t int32
		var dir string
		if err := rows.Scan(&r.Date, &t, &r.Start, &r.Net, &dir); err != nil {
			s.logError("clickhouse residuals scan error", date, err)
			return nil, fmt.Errorf("scan residual: %w", err)
		}
		r.Time = int(t)
		r.Direction = models.Direction(dir)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.logError("clickhouse residuals rows error", date, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse residuals ok",
			applogger.String("date", date),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHSource) OHLC(ctx context.Context, date string) (models.OHLC, error) {
	const qtpl = `
        SELECT open, high, low, close
        FROM %s
        WHERE date = ?
        ORDER BY id DESC
        LIMIT 1
    `
	var o models.OHLC
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(qtpl, s.table("ohlc")), date).
		Scan(&o.Open, &o.High, &o.Low, &o.Close)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OHLC{}, fmt.Errorf("ohlc for %s: %w", date, domrepo.ErrNotFound)
	}
	if err != nil {
		s.logError("clickhouse ohlc query error", date, err)
		return models.OHLC{}, fmt.Errorf("query ohlc: %w", err)
	}
	return o, nil
}

func (s *CHSource) RecentDates(ctx context.Context, limit int) ([]int, error) {
	const qtpl = `
        SELECT DISTINCT date
        FROM %s
        ORDER BY date DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table("ohlc")), limit)
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
	return out, rows.Err()
}

func (s *CHSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSource) Close() error {
	return nil // Managed by pkg
}

func (s *CHSource) logError(msg, date string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("date", date), applogger.Error(err))
	}
}
