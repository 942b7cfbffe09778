package cbbc

import (
	"github.com/shopspring/decimal"

	"Shootdown/internal/domain/models"
)

// Aggregate sums Net per bucket for records of the given direction with
// Time <= cutoff and Start inside the bucket's half-open range. Sums are
// exact and rounded half to even, so a float64 running total that lands
// next to .5 may round the other way than this does.
func Aggregate(records []models.ExposureRecord, edges []float64, dir models.Direction, cutoff int) []int64 {
	n := len(edges) - 1
	if n <= 0 {
		return nil
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		from, to := edges[i], edges[i+1]
		sum := decimal.Zero
		for _, r := range records {
			if r.Direction != dir || r.Time > cutoff {
				continue
			}
			if r.Start >= from && r.Start < to {
				sum = sum.Add(decimal.NewFromFloat(r.Net))
			}
		}
		out[i] = sum.RoundBank(0).IntPart()
	}
	return out
}

// sentinelNet returns the Net of the first record whose Start equals code,
// or 0 when there is none.
func sentinelNet(records []models.ExposureRecord, code float64) float64 {
	for _, r := range records {
		if r.Start == code {
			return r.Net
		}
	}
	return 0
}

func maxAbs(sides ...[]int64) int64 {
	var m int64
	for _, side := range sides {
		for _, v := range side {
			if v < 0 {
				v = -v
			}
			if v > m {
				m = v
			}
		}
	}
	return m
}
