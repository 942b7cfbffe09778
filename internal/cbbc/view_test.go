package cbbc

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Shootdown/internal/domain/models"
)

func TestBearLabels(t *testing.T) {
	labels := BearLabels(BuildRanges(19875).Bear)
	require.Len(t, labels, BucketCount)
	assert.Equal(t, "19,875 - 19,999", labels[0])
	assert.Equal(t, "20,000 - 20,099", labels[1])
	assert.Equal(t, "21,300 - 21,399", labels[14])
}

func TestBullLabels(t *testing.T) {
	labels := BullLabels(BuildRanges(19875).Bull)
	require.Len(t, labels, BucketCount)
	assert.Equal(t, "18,450 - 18,549", labels[0])
	assert.Equal(t, "19,750 - 19,849", labels[13])
	assert.Equal(t, "19,850 - 19,875", labels[14])
}

func TestComputeView(t *testing.T) {
	records := []models.ExposureRecord{
		bear(2330, 19875, 100.4),
		bear(929, 19950, 50),
		bear(2330, 20000, -30.5),
		bull(2330, 19860, 20),
		bull(2330, 19000, -250.5),
		bull(2330, StartNoCBBCUpper, 19800),
		bear(2330, StartNoCBBCLower, -120),
	}

	v, err := Compute(records, 20150, 19700, 19875)
	require.NoError(t, err)

	assert.Equal(t, int64(150), v.Bear.Net[0])
	assert.Equal(t, int64(-30), v.Bear.Net[1])
	assert.Equal(t, int64(20), v.Bull.Net[14])
	assert.Equal(t, int64(-250), v.Bull.Net[5])
	assert.Equal(t, int64(250), v.Max)

	assert.Equal(t, 0, v.BearMin)
	assert.Equal(t, 1, v.BullMax)
	assert.Equal(t, 2, v.BearCall)
	assert.Equal(t, 2, v.BullCall)
	assert.Equal(t, 19875.0, v.HSIClose)

	assert.Len(t, v.Bear.RangeLabel, BucketCount)
	assert.Len(t, v.Bull.RangeLabel, BucketCount)
}

func TestComputeEmptyRecords(t *testing.T) {
	v, err := Compute(nil, 20000, 20000, 20000)
	require.NoError(t, err)

	assert.Equal(t, make([]int64, BucketCount), v.Bear.Net)
	assert.Equal(t, make([]int64, BucketCount), v.Bull.Net)
	assert.Equal(t, int64(0), v.Max)
	// Missing sentinels count as 0, which lies below every bull edge.
	assert.Equal(t, 0, v.BearMin)
	assert.Equal(t, NotFound, v.BullMax)
	assert.Equal(t, 0, v.BearCall)
	assert.Equal(t, 0, v.BullCall)
}

func TestComputeMarkersOutOfRange(t *testing.T) {
	v, err := Compute(nil, 1e9, 0, 19875)
	require.NoError(t, err)
	assert.Equal(t, NotFound, v.BearCall)
	assert.Equal(t, NotFound, v.BullCall)
}

func TestComputeInvalidInput(t *testing.T) {
	_, err := Compute(nil, math.NaN(), 0, 20000)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = Compute(nil, 0, 0, math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = Compute([]models.ExposureRecord{bear(2330, math.NaN(), 1)}, 0, 0, 20000)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = Compute([]models.ExposureRecord{bull(2330, 19000, math.Inf(-1))}, 0, 0, 20000)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestComputeRejectsUnknownDirection(t *testing.T) {
	for _, dir := range []models.Direction{"BEAR", "Bull", ""} {
		records := []models.ExposureRecord{
			bear(2330, 20010, 1),
			{Time: 2330, Start: 20010, Net: 5, Direction: dir},
		}
		_, err := Compute(records, 20100, 19900, 20000)
		assert.ErrorIs(t, err, ErrMalformedRecord, "direction %q", dir)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	records := []models.ExposureRecord{
		bear(2330, 20010, 12.5),
		bull(2330, 19990, -7.25),
	}
	a, err := Compute(records, 20100, 19900, 20000)
	require.NoError(t, err)
	b, err := Compute(records, 20100, 19900, 20000)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestViewJSONShape(t *testing.T) {
	v, err := Compute(nil, 20000, 20000, 20000)
	require.NoError(t, err)

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{"bear", "bull", "bear_min", "bull_max", "bear_call", "bull_call", "max", "hsi_close"} {
		assert.Contains(t, m, key)
	}
	assert.Contains(t, m["bear"], "range_label")
	assert.Contains(t, m["bear"], "net")
}
