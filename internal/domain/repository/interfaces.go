package repository

import (
	"context"
	"errors"
	"time"

	"Shootdown/internal/domain/models"
)

// ErrNotFound is returned when a source has no row for the requested date.
var ErrNotFound = errors.New("not found")

type ExposureSource interface {
	// Residuals returns the latest record per (time, start, direction) for
	// date (YYYYMMDD), ordered by time then start. No rows is an empty slice.
	Residuals(ctx context.Context, date string) ([]models.ExposureRecord, error)
}

type PriceSource interface {
	OHLC(ctx context.Context, date string) (models.OHLC, error)
}

type DateCatalog interface {
	// RecentDates returns up to limit trading dates with data, newest first.
	RecentDates(ctx context.Context, limit int) ([]int, error)
}

// Source bundles everything the residual value view is built from.
type Source interface {
	ExposureSource
	PriceSource
	DateCatalog
	Health(ctx context.Context) error
	Close() error
}

type ViewCache interface {
	Get(ctx context.Context, date string) (*models.View, bool, error)
	Set(ctx context.Context, date string, v *models.View, ttl time.Duration) error
	Invalidate(ctx context.Context, date string) error
	InvalidateAll(ctx context.Context) error
}

type ViewPublisher interface {
	Publish(ctx context.Context, date string, v *models.View) error
	Close() error
}

type Metrics interface {
	RecordViewComputed(source string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordCache(result string)
	RecordLastClose(price float64)
}
