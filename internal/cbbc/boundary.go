package cbbc

// Start codes of the sentinel records bounding the no-CBBC zone.
const (
	StartNoCBBCUpper = 4
	StartNoCBBCLower = 5
)

// FirstMatch returns the first bucket index in [0, BucketCount) for which
// pred holds, or NotFound.
func FirstMatch(pred func(i int) bool) int {
	for i := 0; i < BucketCount; i++ {
		if pred(i) {
			return i
		}
	}
	return NotFound
}

// BearPosition scans bear buckets outward from the close for the first one
// whose displayed upper bound lies above threshold.
func BearPosition(threshold float64, bear []float64) int {
	return FirstMatch(func(i int) bool {
		return threshold < bear[i+1]-1
	})
}

// BullPosition scans bull buckets downward from the close for the first one
// whose lower edge lies below threshold. Bull edges are stored lowest first,
// hence the mirrored index.
func BullPosition(threshold float64, bull []float64) int {
	return FirstMatch(func(i int) bool {
		return threshold > bull[BucketCount-1-i]
	})
}
