package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Shootdown/internal/domain/models"
	domrepo "Shootdown/internal/domain/repository"
)

const sampleFixture = `
dates:
  "20260114":
    ohlc: [19820, 20150, 19700, 19875]
    records:
      - {time: 2330, start: 20000, net: 12.5, bullbear: bear}
      - {time: 929, start: 19950, net: 50, bullbear: bear}
      - {time: 1200, start: 19900, net: 7, bullbear: bear}
      - {time: 2330, start: 19800, net: -3, bullbear: bull}
  "20260112":
    ohlc: [19710, 19760, 19520, 19603]
  "20260113":
    records:
      - {time: 2330, start: 19700, net: 1, bullbear: bull}
`

func TestSampleSourceResiduals(t *testing.T) {
	src, err := ParseSampleSource([]byte(sampleFixture))
	require.NoError(t, err)

	got, err := src.Residuals(context.Background(), "20260114")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, models.ExposureRecord{Date: "20260114", Time: 929, Start: 19950, Net: 50, Direction: models.DirectionBear}, got[0])
	assert.Equal(t, 19800.0, got[1].Start)
	assert.Equal(t, 20000.0, got[2].Start)

	got, err = src.Residuals(context.Background(), "20250101")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSampleSourceOHLC(t *testing.T) {
	src, err := ParseSampleSource([]byte(sampleFixture))
	require.NoError(t, err)

	o, err := src.OHLC(context.Background(), "20260114")
	require.NoError(t, err)
	assert.Equal(t, models.OHLC{Open: 19820, High: 20150, Low: 19700, Close: 19875}, o)

	_, err = src.OHLC(context.Background(), "20260113")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
	_, err = src.OHLC(context.Background(), "20250101")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestSampleSourceRecentDates(t *testing.T) {
	src, err := ParseSampleSource([]byte(sampleFixture))
	require.NoError(t, err)

	got, err := src.RecentDates(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{20260114, 20260113}, got)

	got, err = src.RecentDates(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []int{20260114, 20260113, 20260112}, got)
}

func TestParseSampleSourceRejects(t *testing.T) {
	_, err := ParseSampleSource([]byte("dates:\n  \"2026-01-14\": {}\n"))
	assert.Error(t, err)

	_, err = ParseSampleSource([]byte("dates:\n  \"20260114\":\n    ohlc: [1, 2]\n"))
	assert.ErrorIs(t, err, ErrMalformedOHLC)
}

func TestNewSampleSourceLoadsBundledFixture(t *testing.T) {
	src, err := NewSampleSource("../../config/sample_data.yaml")
	require.NoError(t, err)

	dates, err := src.RecentDates(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{20260114, 20260113, 20260112}, dates)
}
