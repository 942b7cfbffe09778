// Package cbbc turns residual CBBC exposure records into the bucketed
// bear/bull view drawn around the index close.
//
// Everything here is a pure function of its inputs; there is no package
// state besides constants, so callers may compute views for different
// dates concurrently.
package cbbc

import (
	"math"
	"slices"
)

const (
	// Step is the width of one price bucket in index points.
	Step = 100
	// BucketCount is the number of buckets per direction.
	BucketCount = 15
	// TimeCutoff is the end-of-day snapshot code; later records are ignored.
	TimeCutoff = 2330
	// NotFound is the marker position returned when no bucket matches.
	NotFound = BucketCount
)

// Ranges holds BucketCount+1 edges per side. Bucket i spans [edges[i], edges[i+1]).
// Bear edges start at the close and walk up; bull edges end at the close
// and are stored lowest first.
type Ranges struct {
	Bear []float64
	Bull []float64
}

// BuildRanges computes both edge sequences for a close price.
//
// The first bear edge is the step-aligned price above the close, skipping
// one extra step when the close sits in the upper half of its step. The
// first bull edge reuses the bear remainder in its second branch, so it is
// not always step-aligned.
func BuildRanges(hsiClose float64) Ranges {
	remainder := floorMod(hsiClose, Step)

	var up float64
	if remainder < Step/2 {
		up = Step - remainder
	} else {
		up = 2*Step - remainder
	}
	bear := make([]float64, 0, BucketCount+1)
	bear = append(bear, hsiClose, math.RoundToEven(hsiClose+up))
	for len(bear) < BucketCount+1 {
		bear = append(bear, bear[len(bear)-1]+Step)
	}

	bullRemainder := Step - remainder
	var down float64
	if bullRemainder < Step/2 {
		down = -bullRemainder
	} else {
		down = -remainder - Step
	}
	bull := make([]float64, 0, BucketCount+1)
	bull = append(bull, hsiClose, math.RoundToEven(hsiClose+down))
	for len(bull) < BucketCount+1 {
		bull = append(bull, bull[len(bull)-1]-Step)
	}
	slices.Reverse(bull)

	return Ranges{Bear: bear, Bull: bull}
}

// floorMod returns x mod m with the sign of m.
func floorMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}
