package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Shootdown/internal/cbbc"
	"Shootdown/internal/domain/models"
	domrepo "Shootdown/internal/domain/repository"
)

type fakeSource struct {
	records      []models.ExposureRecord
	ohlc         models.OHLC
	dates        []int
	residualsErr error
	ohlcErr      error
	residualHits int
	ohlcHits     int
}

func (f *fakeSource) Residuals(context.Context, string) ([]models.ExposureRecord, error) {
	f.residualHits++
	return f.records, f.residualsErr
}

func (f *fakeSource) OHLC(context.Context, string) (models.OHLC, error) {
	f.ohlcHits++
	return f.ohlc, f.ohlcErr
}

func (f *fakeSource) RecentDates(_ context.Context, limit int) ([]int, error) {
	if len(f.dates) > limit {
		return f.dates[:limit], nil
	}
	return f.dates, nil
}

func (f *fakeSource) Health(context.Context) error { return nil }
func (f *fakeSource) Close() error                 { return nil }

type fakeCache struct {
	mu      sync.Mutex
	views   map[string]*models.View
	locked  map[string]bool
	setErr  error
	invalid []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: map[string]*models.View{}, locked: map[string]bool{}}
}

func (c *fakeCache) Get(_ context.Context, date string) (*models.View, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[date]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, date string, v *models.View, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.views[date] = v
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, date)
	c.invalid = append(c.invalid, date)
	return nil
}

func (c *fakeCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = map[string]*models.View{}
	c.invalid = append(c.invalid, "*")
	return nil
}

func (c *fakeCache) Lock(_ context.Context, date string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked[date] {
		return false, nil
	}
	c.locked[date] = true
	return true, nil
}

func (c *fakeCache) Unlock(_ context.Context, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locked, date)
	return nil
}

type fakePublisher struct {
	dates []string
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, date string, _ *models.View) error {
	p.dates = append(p.dates, date)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeMetrics struct {
	mu       sync.Mutex
	computed []string
	errors   []string
	close    float64
}

func (m *fakeMetrics) RecordViewComputed(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.computed = append(m.computed, source)
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *fakeMetrics) RecordLatency(string, float64) {}
func (m *fakeMetrics) RecordCache(string)            {}
func (m *fakeMetrics) RecordLastClose(price float64) { m.close = price }

func sampleSource() *fakeSource {
	return &fakeSource{
		records: []models.ExposureRecord{
			{Time: 2330, Start: 19875, Net: 100.4, Direction: models.DirectionBear},
			{Time: 929, Start: 19950, Net: 50, Direction: models.DirectionBear},
			{Time: 2330, Start: 19000, Net: -250.5, Direction: models.DirectionBull},
			{Time: 2330, Start: cbbc.StartNoCBBCUpper, Net: 19800, Direction: models.DirectionBull},
		},
		ohlc:  models.OHLC{Open: 19800, High: 20150, Low: 19700, Close: 19875},
		dates: []int{20260114, 20260113, 20260112, 20260109},
	}
}

func TestViewComputesCachesAndPublishes(t *testing.T) {
	src := sampleSource()
	c := newFakeCache()
	pub := &fakePublisher{}
	m := &fakeMetrics{}
	uc := NewResidualViewUseCase(src, m, WithViewCache(c, time.Minute), WithPublisher(pub), WithSourceTimeout(time.Second))

	v, err := uc.View(context.Background(), "20260114")
	require.NoError(t, err)
	assert.Equal(t, int64(150), v.Bear.Net[0])
	assert.Equal(t, int64(-250), v.Bull.Net[5])
	assert.Equal(t, 1, v.BullMax)
	assert.Equal(t, 2, v.BearCall)
	assert.Equal(t, 19875.0, v.HSIClose)

	again, err := uc.View(context.Background(), "20260114")
	require.NoError(t, err)
	assert.Same(t, v, again)

	assert.Equal(t, 1, src.residualHits)
	assert.Equal(t, 1, src.ohlcHits)
	assert.Equal(t, []string{"20260114"}, pub.dates)
	assert.Equal(t, []string{"request"}, m.computed)
	assert.Equal(t, 19875.0, m.close)
}

func TestViewRejectsInvalidDate(t *testing.T) {
	uc := NewResidualViewUseCase(sampleSource(), nil)
	for _, d := range []string{"", "2026-01-14", "20261332", "abc"} {
		_, err := uc.View(context.Background(), d)
		assert.ErrorIs(t, err, ErrInvalidDate, "date %q", d)
	}
}

func TestViewMissingPricesIsNoData(t *testing.T) {
	src := sampleSource()
	src.ohlcErr = domrepo.ErrNotFound
	pub := &fakePublisher{}
	uc := NewResidualViewUseCase(src, nil, WithPublisher(pub))

	_, err := uc.View(context.Background(), "20260101")
	assert.ErrorIs(t, err, ErrNoData)
	assert.Empty(t, pub.dates)
}

func TestViewSourceErrorPropagates(t *testing.T) {
	src := sampleSource()
	boom := errors.New("db down")
	src.residualsErr = boom
	m := &fakeMetrics{}
	uc := NewResidualViewUseCase(src, m)

	_, err := uc.View(context.Background(), "20260114")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoData)
	assert.Contains(t, m.errors, "fetch_residuals")
}

func TestViewInvalidPricesFailCompute(t *testing.T) {
	src := sampleSource()
	src.ohlc.Close = math.Inf(1)
	m := &fakeMetrics{}
	uc := NewResidualViewUseCase(src, m)

	_, err := uc.View(context.Background(), "20260114")
	assert.ErrorIs(t, err, cbbc.ErrInvalidPrice)
	assert.Contains(t, m.errors, "compute")
}

func TestViewEmptyRecords(t *testing.T) {
	src := sampleSource()
	src.records = nil
	src.ohlc = models.OHLC{High: 20000, Low: 20000, Close: 20000}
	uc := NewResidualViewUseCase(src, nil)

	v, err := uc.View(context.Background(), "20260114")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Max)
	assert.Equal(t, cbbc.NotFound, v.BullMax)
}

func TestViewCacheAndPublishFailuresAreBestEffort(t *testing.T) {
	c := newFakeCache()
	c.setErr = errors.New("redis down")
	pub := &fakePublisher{err: errors.New("kafka down")}
	m := &fakeMetrics{}
	uc := NewResidualViewUseCase(sampleSource(), m, WithViewCache(c, time.Minute), WithPublisher(pub))

	v, err := uc.View(context.Background(), "20260114")
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.ElementsMatch(t, []string{"cache_set", "publish"}, m.errors)
}

func TestRecomputeRefreshesCache(t *testing.T) {
	src := sampleSource()
	c := newFakeCache()
	pub := &fakePublisher{}
	m := &fakeMetrics{}
	uc := NewResidualViewUseCase(src, m, WithViewCache(c, time.Minute), WithPublisher(pub))

	first, err := uc.View(context.Background(), "20260114")
	require.NoError(t, err)

	src.records = nil
	v, err := uc.Recompute(context.Background(), "20260114")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.NotSame(t, first, v)
	assert.Equal(t, int64(0), v.Max)

	cached, ok, err := c.Get(context.Background(), "20260114")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, v, cached)

	assert.Equal(t, []string{"20260114"}, c.invalid)
	assert.Equal(t, []string{"20260114", "20260114"}, pub.dates)
	assert.Equal(t, []string{"request", "recompute"}, m.computed)
	assert.Empty(t, c.locked)
}

func TestRecomputeSkipsWhenLocked(t *testing.T) {
	src := sampleSource()
	c := newFakeCache()
	c.locked["20260114"] = true
	uc := NewResidualViewUseCase(src, nil, WithViewCache(c, time.Minute))

	v, err := uc.Recompute(context.Background(), "20260114")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Zero(t, src.residualHits)
}

func TestInvalidateAllClearsViews(t *testing.T) {
	c := newFakeCache()
	c.views["20260113"] = &models.View{}
	c.views["20260114"] = &models.View{}
	uc := NewResidualViewUseCase(sampleSource(), nil, WithViewCache(c, time.Minute))

	require.NoError(t, uc.InvalidateAll(context.Background()))
	assert.Empty(t, c.views)
	assert.Equal(t, []string{"*"}, c.invalid)

	require.NoError(t, NewResidualViewUseCase(sampleSource(), nil).InvalidateAll(context.Background()))
}

func TestDateOptions(t *testing.T) {
	uc := NewResidualViewUseCase(sampleSource(), nil)

	got, err := uc.DateOptions(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-14", "2026-01-13", "2026-01-12"}, got.DateLabel)
	assert.Equal(t, []int{20260114, 20260113, 20260112}, got.DateValue)
}

func TestDateOptionsSkipsBadValues(t *testing.T) {
	src := sampleSource()
	src.dates = []int{20260114, 123}
	uc := NewResidualViewUseCase(src, nil)

	got, err := uc.DateOptions(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []int{20260114}, got.DateValue)
	assert.Equal(t, []string{"2026-01-14"}, got.DateLabel)
}
