package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"Shootdown/internal/cbbc"
	"Shootdown/internal/domain/models"
	domrepo "Shootdown/internal/domain/repository"
	applogger "Shootdown/pkg/logger"
	"Shootdown/pkg/util"
)

var (
	ErrInvalidDate = errors.New("invalid trading date")
	ErrNoData      = errors.New("no residual value data")
)

// viewLocker is implemented by caches that can serialize recomputes.
type viewLocker interface {
	Lock(ctx context.Context, date string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, date string) error
}

const recomputeLockTTL = 30 * time.Second

// ResidualViewUseCase builds residual value views from the configured source.
type ResidualViewUseCase struct {
	source  domrepo.Source
	cache   domrepo.ViewCache
	pub     domrepo.ViewPublisher
	metrics domrepo.Metrics
	l       *applogger.Logger

	cacheTTL time.Duration
	timeout  time.Duration
}

type Option func(*ResidualViewUseCase)

// WithViewCache caches computed views for ttl.
func WithViewCache(c domrepo.ViewCache, ttl time.Duration) Option {
	return func(uc *ResidualViewUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

// WithPublisher publishes every freshly computed view.
func WithPublisher(p domrepo.ViewPublisher) Option {
	return func(uc *ResidualViewUseCase) { uc.pub = p }
}

func WithLogger(l *applogger.Logger) Option {
	return func(uc *ResidualViewUseCase) { uc.l = l }
}

// WithSourceTimeout bounds each source fetch.
func WithSourceTimeout(d time.Duration) Option {
	return func(uc *ResidualViewUseCase) { uc.timeout = d }
}

func NewResidualViewUseCase(source domrepo.Source, metrics domrepo.Metrics, opts ...Option) *ResidualViewUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	uc := &ResidualViewUseCase{
		source:  source,
		metrics: metrics,
		l:       applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// View returns the residual value view for date (YYYYMMDD).
func (uc *ResidualViewUseCase) View(ctx context.Context, date string) (*models.View, error) {
	if !util.IsTradingDate(date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	if uc.cache != nil {
		v, ok, err := uc.cache.Get(ctx, date)
		if err != nil {
			uc.l.Warn("view cache get failed", applogger.String("date", date), applogger.Error(err))
		}
		if ok {
			return v, nil
		}
	}

	v, err := uc.compute(ctx, date)
	if err != nil {
		return nil, err
	}
	uc.store(ctx, date, v)
	uc.metrics.RecordViewComputed("request")
	return v, nil
}

// Recompute drops any cached view for date, rebuilds it and republishes it.
// It is a no-op when another worker holds the recompute lock.
func (uc *ResidualViewUseCase) Recompute(ctx context.Context, date string) (*models.View, error) {
	if !util.IsTradingDate(date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	if lk, ok := uc.cache.(viewLocker); ok {
		acquired, err := lk.Lock(ctx, date, recomputeLockTTL)
		if err != nil {
			return nil, fmt.Errorf("recompute lock: %w", err)
		}
		if !acquired {
			uc.l.Info("recompute already running", applogger.String("date", date))
			return nil, nil
		}
		defer func() {
			if err := lk.Unlock(context.WithoutCancel(ctx), date); err != nil {
				uc.l.Warn("recompute unlock failed", applogger.String("date", date), applogger.Error(err))
			}
		}()
	}

	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, date); err != nil {
			uc.l.Warn("view cache invalidate failed", applogger.String("date", date), applogger.Error(err))
		}
	}

	v, err := uc.compute(ctx, date)
	if err != nil {
		return nil, err
	}
	uc.store(ctx, date, v)
	uc.metrics.RecordViewComputed("recompute")
	return v, nil
}

// InvalidateAll drops every cached view so the next reads recompute from the
// source.
func (uc *ResidualViewUseCase) InvalidateAll(ctx context.Context) error {
	if uc.cache == nil {
		return nil
	}
	if err := uc.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate views: %w", err)
	}
	uc.l.Info("view cache cleared")
	return nil
}

// DateOptions lists up to limit recent trading dates for the date picker.
func (uc *ResidualViewUseCase) DateOptions(ctx context.Context, limit int) (*models.DateOptions, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	dates, err := uc.source.RecentDates(ctx, limit)
	if err != nil {
		uc.metrics.RecordError("fetch_dates")
		return nil, fmt.Errorf("recent dates: %w", err)
	}

	out := &models.DateOptions{
		DateLabel: make([]string, 0, len(dates)),
		DateValue: make([]int, 0, len(dates)),
	}
	for _, d := range dates {
		label := util.DateLabel(d)
		if label == "" {
			continue
		}
		out.DateLabel = append(out.DateLabel, label)
		out.DateValue = append(out.DateValue, d)
	}
	return out, nil
}

// Health reports whether the source is reachable.
func (uc *ResidualViewUseCase) Health(ctx context.Context) error {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	return uc.source.Health(ctx)
}

func (uc *ResidualViewUseCase) compute(ctx context.Context, date string) (*models.View, error) {
	start := time.Now()
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	var (
		records []models.ExposureRecord
		ohlc    models.OHLC
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = uc.source.Residuals(gctx, date)
		if err != nil {
			uc.metrics.RecordError("fetch_residuals")
			return fmt.Errorf("fetch residuals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ohlc, err = uc.source.OHLC(gctx, date)
		if errors.Is(err, domrepo.ErrNotFound) {
			return fmt.Errorf("%w for %s", ErrNoData, date)
		}
		if err != nil {
			uc.metrics.RecordError("fetch_ohlc")
			return fmt.Errorf("fetch ohlc: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		uc.l.Error("residual view fetch failed", applogger.String("date", date), applogger.Error(err))
		return nil, err
	}

	v, err := cbbc.Compute(records, ohlc.High, ohlc.Low, ohlc.Close)
	if err != nil {
		uc.metrics.RecordError("compute")
		uc.l.Error("residual view compute failed", applogger.String("date", date), applogger.Error(err))
		return nil, fmt.Errorf("compute view: %w", err)
	}

	elapsed := time.Since(start)
	uc.metrics.RecordLatency("view_compute", elapsed.Seconds())
	uc.metrics.RecordLastClose(ohlc.Close)
	uc.l.Info("residual view computed",
		applogger.String("date", date),
		applogger.Int("records", len(records)),
		applogger.Float64("hsi_close", ohlc.Close),
		applogger.Duration("duration_ms", elapsed),
	)
	return &v, nil
}

// store caches and publishes v. Failures are logged and counted only.
func (uc *ResidualViewUseCase) store(ctx context.Context, date string, v *models.View) {
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, date, v, uc.cacheTTL); err != nil {
			uc.metrics.RecordError("cache_set")
			uc.l.Warn("view cache set failed", applogger.String("date", date), applogger.Error(err))
		}
	}
	if uc.pub != nil {
		if err := uc.pub.Publish(ctx, date, v); err != nil {
			uc.metrics.RecordError("publish")
			uc.l.Warn("view publish failed", applogger.String("date", date), applogger.Error(err))
		}
	}
}

func (uc *ResidualViewUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.timeout)
}

type nopMetrics struct{}

func (nopMetrics) RecordViewComputed(string)     {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordCache(string)            {}
func (nopMetrics) RecordLastClose(float64)       {}
